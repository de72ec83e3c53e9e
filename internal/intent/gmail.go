package intent

import (
	"regexp"
	"strings"
)

// Gmail actions
const (
	GmailActionList     = "list"
	GmailActionRead     = "read"
	GmailActionMarkRead = "markRead"
)

// GmailFilters narrows a list action. Query is the assembled Gmail search
// string ("is:unread from:x subject:\"y\"").
type GmailFilters struct {
	Unread  bool
	From    string
	Subject string
	Query   string
}

// GmailIntent is the structured interpretation of a mail request
type GmailIntent struct {
	HasIntent bool
	Action    string
	Filters   GmailFilters
	MessageID string
}

var gmailListKeywords = []string{
	"check email", "check emails", "check my email", "show emails",
	"show messages", "list emails", "unread emails", "new emails",
	"emails from", "messages from",
}

var gmailReadKeywords = []string{
	"read email", "read message", "show email", "open email", "view email",
}

var gmailMarkReadKeywords = []string{
	"mark as read", "mark read", "read it",
}

var (
	gmailFromRe    = regexp.MustCompile(`(?i)(?:from|by)\s+([\w.@-]+@[\w.@-]+)`)
	gmailSubjectRe = regexp.MustCompile(`(?i)(?:subject|about|regarding):\s*(.+?)(?:\s|$)`)
	gmailIDRe      = regexp.MustCompile(`(?i)(?:id|message)[:\s]+([a-zA-Z0-9]+)`)
)

// DetectGmail reports whether the message asks for a mail action. List beats
// read beats markRead when keywords overlap.
func DetectGmail(message string) GmailIntent {
	lower := strings.ToLower(message)

	for _, kw := range gmailListKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		filters := GmailFilters{
			Unread:  strings.Contains(lower, "unread") || strings.Contains(lower, "new"),
			From:    firstGroup(gmailFromRe, message),
			Subject: firstGroup(gmailSubjectRe, message),
		}
		var parts []string
		if filters.Unread {
			parts = append(parts, "is:unread")
		}
		if filters.From != "" {
			parts = append(parts, "from:"+filters.From)
		}
		if filters.Subject != "" {
			parts = append(parts, `subject:"`+filters.Subject+`"`)
		}
		filters.Query = strings.Join(parts, " ")
		return GmailIntent{HasIntent: true, Action: GmailActionList, Filters: filters}
	}

	for _, kw := range gmailReadKeywords {
		if strings.Contains(lower, kw) {
			return GmailIntent{
				HasIntent: true,
				Action:    GmailActionRead,
				MessageID: firstGroup(gmailIDRe, message),
			}
		}
	}

	for _, kw := range gmailMarkReadKeywords {
		if strings.Contains(lower, kw) {
			return GmailIntent{
				HasIntent: true,
				Action:    GmailActionMarkRead,
				MessageID: firstGroup(gmailIDRe, message),
			}
		}
	}

	return GmailIntent{}
}
