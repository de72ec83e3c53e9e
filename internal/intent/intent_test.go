package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCalendarCreate(t *testing.T) {
	got := DetectCalendar("Schedule a meeting with: bob@example.com on tomorrow")
	assert.True(t, got.HasIntent)
	assert.Equal(t, CalendarActionCreate, got.Action)
	assert.Equal(t, "tomorrow", got.Date)
	assert.Contains(t, got.Attendees, "bob@example.com")
}

func TestDetectCalendarTitleFallback(t *testing.T) {
	got := DetectCalendar("schedule dentist visit on friday")
	assert.True(t, got.HasIntent)
	assert.Equal(t, "dentist visit", got.Title)
	assert.Equal(t, "friday", got.Date)
}

func TestDetectCalendarList(t *testing.T) {
	got := DetectCalendar("what's on my calendar this week?")
	assert.True(t, got.HasIntent)
	assert.Equal(t, CalendarActionList, got.Action)
}

func TestDetectCalendarNone(t *testing.T) {
	assert.False(t, DetectCalendar("how was your day").HasIntent)
}

func TestDetectGmailListBuildsQuery(t *testing.T) {
	got := DetectGmail("check my email for unread messages from alice@example.com")
	assert.True(t, got.HasIntent)
	assert.Equal(t, GmailActionList, got.Action)
	assert.True(t, got.Filters.Unread)
	assert.Equal(t, "alice@example.com", got.Filters.From)
	assert.Equal(t, "is:unread from:alice@example.com", got.Filters.Query)
}

func TestDetectGmailListSubject(t *testing.T) {
	got := DetectGmail("show emails regarding: invoices")
	assert.True(t, got.HasIntent)
	assert.Equal(t, "invoices", got.Filters.Subject)
	assert.Equal(t, `subject:"invoices"`, got.Filters.Query)
}

func TestDetectGmailRead(t *testing.T) {
	got := DetectGmail("read email message: 18f2abc9")
	assert.True(t, got.HasIntent)
	assert.Equal(t, GmailActionRead, got.Action)
	assert.Equal(t, "18f2abc9", got.MessageID)
}

func TestDetectGmailMarkRead(t *testing.T) {
	got := DetectGmail("mark as read, id: 18f2abc9")
	assert.Equal(t, GmailActionMarkRead, got.Action)
	assert.Equal(t, "18f2abc9", got.MessageID)
}

func TestDetectGmailListWinsOverRead(t *testing.T) {
	// "check email" and "read email" both present; list is checked first
	got := DetectGmail("check email then read email")
	assert.Equal(t, GmailActionList, got.Action)
}

func TestDetectDocsCreate(t *testing.T) {
	got := DetectDocs("create document titled: Roadmap")
	assert.True(t, got.HasIntent)
	assert.Equal(t, DocsActionCreate, got.Action)
	assert.Equal(t, "Roadmap", got.Title)
}

func TestDetectDocsCreateTitleFallback(t *testing.T) {
	got := DetectDocs("make a doc with: notes")
	assert.True(t, got.HasIntent)
	assert.Equal(t, "a doc", got.Title)
}

func TestDetectDocsRead(t *testing.T) {
	got := DetectDocs("read document 1AbC_dEf-9")
	assert.Equal(t, DocsActionRead, got.Action)
	assert.Equal(t, "1AbC_dEf-9", got.DocumentID)
}

func TestDetectDocsAppend(t *testing.T) {
	got := DetectDocs("append to document 1AbC containing: hello")
	assert.Equal(t, DocsActionAppend, got.Action)
	assert.Equal(t, "1AbC", got.DocumentID)
	assert.Equal(t, "hello", got.Content)
}

func TestDetectorsAreIndependent(t *testing.T) {
	msg := "check email and what's on my calendar and create document"
	assert.True(t, DetectCalendar(msg).HasIntent)
	assert.True(t, DetectGmail(msg).HasIntent)
	assert.True(t, DetectDocs(msg).HasIntent)
}
