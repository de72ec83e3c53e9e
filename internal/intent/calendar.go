// Package intent holds the pure keyword/regex detectors that map free-text
// user messages to structured side-effecting action requests. Deliberately
// brittle pattern matching, no NLP: the detectors fire independently and the
// orchestrator processes fired intents in a fixed order.
package intent

import (
	"regexp"
	"strings"
)

// Calendar actions
const (
	CalendarActionCreate = "create"
	CalendarActionList   = "list"
)

// CalendarIntent is the structured interpretation of a calendar request
type CalendarIntent struct {
	HasIntent bool
	Action    string
	Title     string
	Date      string
	Time      string
	Location  string
	Attendees []string
	Notes     string
}

var calendarCreateKeywords = []string{
	"schedule", "book", "create event", "add to calendar",
	"set up meeting", "plan", "appointment",
}

var calendarListKeywords = []string{
	"show calendar", "what's on my calendar", "upcoming events",
	"list events", "calendar",
}

var (
	calTitleRe     = regexp.MustCompile(`(?i)(?:title|event|meeting|appointment|called|named):\s*(.+?)(?:\s+(?:at|on|when|with)|$)`)
	calTimeRe      = regexp.MustCompile(`(?i)(?:at|on|when|for):\s*([\d:]+(?:\s*(?:am|pm))?)`)
	calDateRe      = regexp.MustCompile(`(?i)(?:on|for)\s+(today|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d{1,2}/\d{1,2}/\d{2,4})`)
	calLocationRe  = regexp.MustCompile(`(?i)(?:at|in|location):\s*(.+?)(?:\s+(?:at|on|when)|$)`)
	calAttendeesRe = regexp.MustCompile(`(?i)(?:with|attendees?):\s*([\w\s,@.]+)`)
	calNotesRe     = regexp.MustCompile(`(?i)(?:notes?|description|details?):\s*(.+?)(?:\s+(?:at|on|when)|$)`)
	calSplitRe     = regexp.MustCompile(`(?i)(?:schedule|book|create|add|set up)`)
	calStopRe      = regexp.MustCompile(`(?i)\s(?:at|on|when|with|for)\s`)
)

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// DetectCalendar reports whether the message asks for a calendar action and
// extracts whatever event fields the patterns can find.
func DetectCalendar(message string) CalendarIntent {
	lower := strings.ToLower(message)

	for _, kw := range calendarCreateKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		intent := CalendarIntent{
			HasIntent: true,
			Action:    CalendarActionCreate,
			Title:     firstGroup(calTitleRe, message),
			Time:      firstGroup(calTimeRe, message),
			Date:      firstGroup(calDateRe, message),
			Location:  firstGroup(calLocationRe, message),
			Notes:     firstGroup(calNotesRe, message),
		}
		if raw := firstGroup(calAttendeesRe, message); raw != "" {
			for _, part := range regexp.MustCompile(`[,\s]+`).Split(raw, -1) {
				if part != "" {
					intent.Attendees = append(intent.Attendees, part)
				}
			}
		}
		if intent.Title == "" {
			// Fall back to the text between the action keyword and the
			// first preposition
			if parts := calSplitRe.Split(message, 2); len(parts) == 2 {
				tail := parts[1]
				if loc := calStopRe.FindStringIndex(tail); loc != nil {
					tail = tail[:loc[0]]
				}
				intent.Title = strings.TrimSpace(tail)
			}
		}
		return intent
	}

	for _, kw := range calendarListKeywords {
		if strings.Contains(lower, kw) {
			return CalendarIntent{HasIntent: true, Action: CalendarActionList}
		}
	}

	return CalendarIntent{}
}
