package tools

import (
	"context"

	"github.com/wyldephyre/jessica-core/internal/googleapi"
)

// TokenSource resolves a valid access token for an account. Satisfied by
// token.Service.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID, provider, variant string) (string, error)
}

// GoogleDeps are the clients the Workspace tools call through
type GoogleDeps struct {
	Tokens   TokenSource
	Calendar *googleapi.CalendarClient
	Gmail    *googleapi.GmailClient
	Docs     *googleapi.DocsClient
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// RegisterGoogleTools wires the Workspace capabilities into the registry.
// Every handler resolves the caller's Google token first, so an expired or
// missing connection surfaces as a tool error the model can relay.
func RegisterGoogleTools(r *Registry, deps GoogleDeps) {
	r.MustRegister(Tool{
		Name:        "calendar_createEvent",
		Description: "Create a Google Calendar event. Times are RFC3339 timestamps.",
		InputSchema: objectSchema(map[string]any{
			"title":       stringProp("Event title"),
			"startTime":   stringProp("Event start, RFC3339"),
			"endTime":     stringProp("Event end, RFC3339"),
			"description": stringProp("Optional event description"),
			"location":    stringProp("Optional location"),
			"attendees": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Optional attendee email addresses",
			},
		}, "title", "startTime", "endTime"),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			return deps.Calendar.CreateEvent(ctx, accessToken, "primary", &googleapi.CalendarEvent{
				Title:       stringArg(input, "title"),
				StartTime:   stringArg(input, "startTime"),
				EndTime:     stringArg(input, "endTime"),
				Description: stringArg(input, "description"),
				Location:    stringArg(input, "location"),
				Attendees:   stringSliceArg(input, "attendees"),
			})
		},
	})

	r.MustRegister(Tool{
		Name:        "calendar_listEvents",
		Description: "List upcoming Google Calendar events.",
		InputSchema: objectSchema(map[string]any{
			"timeMin":    stringProp("Earliest event time, RFC3339"),
			"timeMax":    stringProp("Latest event time, RFC3339"),
			"maxResults": map[string]any{"type": "integer", "description": "Maximum events to return"},
		}),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			return deps.Calendar.ListEvents(ctx, accessToken, "primary", googleapi.EventListParams{
				TimeMin:    stringArg(input, "timeMin"),
				TimeMax:    stringArg(input, "timeMax"),
				MaxResults: intArg(input, "maxResults"),
			})
		},
	})

	r.MustRegister(Tool{
		Name:        "gmail_listMessages",
		Description: "List Gmail messages matching a search query.",
		InputSchema: objectSchema(map[string]any{
			"query":      stringProp("Gmail search query, e.g. is:unread from:x@y.com"),
			"maxResults": map[string]any{"type": "integer", "description": "Maximum messages to return"},
		}),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			return deps.Gmail.ListMessages(ctx, accessToken, googleapi.GmailListParams{
				Query:      stringArg(input, "query"),
				MaxResults: intArg(input, "maxResults"),
			})
		},
	})

	r.MustRegister(Tool{
		Name:        "gmail_getMessage",
		Description: "Read one Gmail message including its body.",
		InputSchema: objectSchema(map[string]any{
			"messageId": stringProp("Gmail message id"),
		}, "messageId"),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			return deps.Gmail.GetMessage(ctx, accessToken, stringArg(input, "messageId"))
		},
	})

	r.MustRegister(Tool{
		Name:        "gmail_markRead",
		Description: "Mark a Gmail message as read.",
		InputSchema: objectSchema(map[string]any{
			"messageId": stringProp("Gmail message id"),
		}, "messageId"),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			if err := deps.Gmail.MarkRead(ctx, accessToken, stringArg(input, "messageId")); err != nil {
				return nil, err
			}
			return map[string]any{"marked": true}, nil
		},
	})

	r.MustRegister(Tool{
		Name:        "docs_createDocument",
		Description: "Create a new Google Doc.",
		InputSchema: objectSchema(map[string]any{
			"title": stringProp("Document title"),
		}, "title"),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			return deps.Docs.CreateDocument(ctx, accessToken, stringArg(input, "title"))
		},
	})

	r.MustRegister(Tool{
		Name:        "docs_getDocument",
		Description: "Read a Google Doc's text content.",
		InputSchema: objectSchema(map[string]any{
			"documentId": stringProp("Document id"),
		}, "documentId"),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			return deps.Docs.GetDocument(ctx, accessToken, stringArg(input, "documentId"))
		},
	})

	r.MustRegister(Tool{
		Name:        "docs_appendText",
		Description: "Append text to the end of a Google Doc.",
		InputSchema: objectSchema(map[string]any{
			"documentId": stringProp("Document id"),
			"text":       stringProp("Text to append"),
		}, "documentId", "text"),
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			accessToken, err := deps.Tokens.GetValidAccessToken(ctx, userID, "google", "")
			if err != nil {
				return nil, err
			}
			if err := deps.Docs.AppendText(ctx, accessToken, stringArg(input, "documentId"), stringArg(input, "text")); err != nil {
				return nil, err
			}
			return map[string]any{"appended": true}, nil
		},
	})
}
