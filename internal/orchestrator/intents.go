package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wyldephyre/jessica-core/internal/intent"
	"github.com/wyldephyre/jessica-core/internal/provider"
)

// firedIntents collects the detector outputs for one message
type firedIntents struct {
	calendar intent.CalendarIntent
	gmail    intent.GmailIntent
	docs     intent.DocsIntent
}

func (f firedIntents) any() bool {
	return f.calendar.HasIntent || f.gmail.HasIntent || f.docs.HasIntent
}

func detectIntents(message string) firedIntents {
	return firedIntents{
		calendar: intent.DetectCalendar(message),
		gmail:    intent.DetectGmail(message),
		docs:     intent.DetectDocs(message),
	}
}

// processIntents executes the fired intents in the fixed order
// calendar -> gmail -> docs, routing each through the tool registry so the
// intents and the LLM tool loop share one execution path. Failures land in
// the returned actions, never abort the turn.
func (o *Orchestrator) processIntents(ctx context.Context, userID string, fired firedIntents) []Action {
	var actions []Action

	if fired.calendar.HasIntent {
		actions = append(actions, o.runIntentTool(ctx, userID, "calendar", fired.calendar.Action, o.calendarCall(fired.calendar)))
	}
	if fired.gmail.HasIntent {
		actions = append(actions, o.runIntentTool(ctx, userID, "gmail", fired.gmail.Action, gmailCall(fired.gmail)))
	}
	if fired.docs.HasIntent {
		actions = append(actions, o.runIntentTool(ctx, userID, "docs", fired.docs.Action, docsCall(fired.docs)))
	}

	return actions
}

func (o *Orchestrator) runIntentTool(ctx context.Context, userID, service, action string, call provider.ToolCall) Action {
	out := Action{Service: service, Action: action}
	if call.Name == "" {
		out.Error = "not enough detail to act on this request"
		return out
	}

	result := o.tools.Execute(ctx, userID, call)
	if result.IsError {
		o.logger.Warn("intent side effect failed", "service", service, "action", action)
		out.Error = result.Content
		return out
	}
	out.Result = json.RawMessage(result.Content)
	return out
}

func (o *Orchestrator) calendarCall(in intent.CalendarIntent) provider.ToolCall {
	switch in.Action {
	case intent.CalendarActionCreate:
		start := resolveWhen(o.now(), in.Date, in.Time)
		title := in.Title
		if title == "" {
			title = "New event"
		}
		input := map[string]any{
			"title":     title,
			"startTime": start.Format(time.RFC3339),
			"endTime":   start.Add(time.Hour).Format(time.RFC3339),
		}
		if in.Location != "" {
			input["location"] = in.Location
		}
		if in.Notes != "" {
			input["description"] = in.Notes
		}
		if len(in.Attendees) > 0 {
			attendees := make([]any, len(in.Attendees))
			for i, a := range in.Attendees {
				attendees[i] = a
			}
			input["attendees"] = attendees
		}
		return provider.ToolCall{Name: "calendar_createEvent", Input: input}
	case intent.CalendarActionList:
		return provider.ToolCall{Name: "calendar_listEvents", Input: map[string]any{
			"timeMin":    o.now().Format(time.RFC3339),
			"maxResults": 10,
		}}
	}
	return provider.ToolCall{}
}

func gmailCall(in intent.GmailIntent) provider.ToolCall {
	switch in.Action {
	case intent.GmailActionList:
		return provider.ToolCall{Name: "gmail_listMessages", Input: map[string]any{
			"query":      in.Filters.Query,
			"maxResults": 10,
		}}
	case intent.GmailActionRead:
		if in.MessageID == "" {
			return provider.ToolCall{}
		}
		return provider.ToolCall{Name: "gmail_getMessage", Input: map[string]any{"messageId": in.MessageID}}
	case intent.GmailActionMarkRead:
		if in.MessageID == "" {
			return provider.ToolCall{}
		}
		return provider.ToolCall{Name: "gmail_markRead", Input: map[string]any{"messageId": in.MessageID}}
	}
	return provider.ToolCall{}
}

func docsCall(in intent.DocsIntent) provider.ToolCall {
	switch in.Action {
	case intent.DocsActionCreate:
		return provider.ToolCall{Name: "docs_createDocument", Input: map[string]any{"title": in.Title}}
	case intent.DocsActionRead:
		if in.DocumentID == "" {
			return provider.ToolCall{}
		}
		return provider.ToolCall{Name: "docs_getDocument", Input: map[string]any{"documentId": in.DocumentID}}
	case intent.DocsActionAppend:
		if in.DocumentID == "" || in.Content == "" {
			return provider.ToolCall{}
		}
		return provider.ToolCall{Name: "docs_appendText", Input: map[string]any{
			"documentId": in.DocumentID,
			"text":       in.Content,
		}}
	}
	return provider.ToolCall{}
}

// actionInstructions tells the model which side effects already happened so
// it reports them instead of promising to do them.
func actionInstructions(actions []Action, memCtx string) string {
	var lines []string
	if memCtx != "" {
		lines = append(lines, "Memory context namespace: "+memCtx)
	}
	for _, a := range actions {
		if a.Error != "" {
			lines = append(lines, fmt.Sprintf("A %s %s action was attempted on the user's behalf but failed: %s. Let the user know.", a.Service, a.Action, a.Error))
		} else {
			lines = append(lines, fmt.Sprintf("A %s %s action was already performed on the user's behalf. Result: %s. Summarize it for the user; do not offer to do it again.", a.Service, a.Action, string(a.Result)))
		}
	}
	return strings.Join(lines, "\n")
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// resolveWhen turns the loose date/time strings the detector extracts into a
// concrete start time. Unparseable input falls back to the next hour.
func resolveWhen(now time.Time, dateStr, timeStr string) time.Time {
	day := now
	switch lower := strings.ToLower(strings.TrimSpace(dateStr)); {
	case lower == "" || lower == "today":
		// keep today
	case lower == "tomorrow":
		day = now.AddDate(0, 0, 1)
	default:
		if wd, ok := weekdays[lower]; ok {
			delta := (int(wd) - int(now.Weekday()) + 7) % 7
			if delta == 0 {
				delta = 7
			}
			day = now.AddDate(0, 0, delta)
		} else if t, err := parseSlashDate(lower, now); err == nil {
			day = t
		}
	}

	hour, minute, ok := parseClock(timeStr)
	if !ok {
		// default: top of the next hour
		next := now.Add(time.Hour)
		hour, minute = next.Hour(), 0
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
}

func parseSlashDate(s string, now time.Time) (time.Time, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("not a slash date: %s", s)
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("not a slash date: %s", s)
	}
	if year < 100 {
		year += 2000
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), nil
}

func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}

	meridiem := ""
	if strings.HasSuffix(s, "am") || strings.HasSuffix(s, "pm") {
		meridiem = s[len(s)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}

	hm := strings.SplitN(s, ":", 2)
	hour, err := strconv.Atoi(hm[0])
	if err != nil {
		return 0, 0, false
	}
	if len(hm) == 2 {
		minute, err = strconv.Atoi(hm[1])
		if err != nil {
			return 0, 0, false
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	if meridiem == "pm" && hour < 12 {
		hour += 12
	}
	if meridiem == "am" && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}
