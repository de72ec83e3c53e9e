package googleapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// GmailMessage is the canonical message summary shape
type GmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Subject  string `json:"subject,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Date     string `json:"date,omitempty"`
	Unread   bool   `json:"unread"`
}

// GmailMessageDetail adds the decoded body to a message summary
type GmailMessageDetail struct {
	GmailMessage
	Body string `json:"body,omitempty"`
}

// GmailListParams filters a message listing
type GmailListParams struct {
	Query      string // Gmail search query, e.g. "is:unread from:x@y.com"
	MaxResults int
}

// GmailClient is a stateless Gmail v1 adapter
type GmailClient struct {
	baseURL string
}

// NewGmailClient creates a Gmail adapter; empty baseURL means production
func NewGmailClient(baseURL string) *GmailClient {
	if baseURL == "" {
		baseURL = defaultGmailBase
	}
	return &GmailClient{baseURL: baseURL}
}

type gmailWireMessage struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	Snippet  string   `json:"snippet"`
	LabelIDs []string `json:"labelIds"`
	Payload  *struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Body *struct {
			Data string `json:"data"`
		} `json:"body"`
		Parts []struct {
			MimeType string `json:"mimeType"`
			Body     *struct {
				Data string `json:"data"`
			} `json:"body"`
		} `json:"parts"`
	} `json:"payload"`
}

func (m *gmailWireMessage) header(name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (m *gmailWireMessage) summary() GmailMessage {
	unread := false
	for _, label := range m.LabelIDs {
		if label == "UNREAD" {
			unread = true
			break
		}
	}
	return GmailMessage{
		ID:       m.ID,
		ThreadID: m.ThreadID,
		Snippet:  m.Snippet,
		Subject:  m.header("Subject"),
		From:     m.header("From"),
		To:       m.header("To"),
		Date:     m.header("Date"),
		Unread:   unread,
	}
}

func (m *gmailWireMessage) textBody() string {
	if m.Payload == nil {
		return ""
	}
	decode := func(data string) string {
		if data == "" {
			return ""
		}
		decoded, err := base64.URLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	if m.Payload.Body != nil {
		if body := decode(m.Payload.Body.Data); body != "" {
			return body
		}
	}
	for _, part := range m.Payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil {
			if body := decode(part.Body.Data); body != "" {
				return body
			}
		}
	}
	return ""
}

// ListMessages returns message summaries matching the query. Each summary
// costs one metadata fetch on top of the list call, mirroring the original
// adapter.
func (c *GmailClient) ListMessages(ctx context.Context, accessToken string, params GmailListParams) ([]GmailMessage, error) {
	q := url.Values{}
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	q.Set("maxResults", strconv.Itoa(maxResults))

	endpoint := fmt.Sprintf("%s/users/me/messages?%s", c.baseURL, q.Encode())

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := doJSON(ctx, "gmail", http.MethodGet, endpoint, accessToken, nil, &list); err != nil {
		return nil, err
	}

	messages := make([]GmailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		detail, err := c.fetchMessage(ctx, accessToken, ref.ID, "metadata")
		if err != nil {
			return nil, err
		}
		messages = append(messages, detail.summary())
	}
	return messages, nil
}

// GetMessage fetches a full message including its plain-text body
func (c *GmailClient) GetMessage(ctx context.Context, accessToken, messageID string) (*GmailMessageDetail, error) {
	wire, err := c.fetchMessage(ctx, accessToken, messageID, "full")
	if err != nil {
		return nil, err
	}
	return &GmailMessageDetail{
		GmailMessage: wire.summary(),
		Body:         wire.textBody(),
	}, nil
}

func (c *GmailClient) fetchMessage(ctx context.Context, accessToken, messageID, format string) (*gmailWireMessage, error) {
	q := url.Values{}
	q.Set("format", format)
	if format == "metadata" {
		for _, h := range []string{"Subject", "From", "To", "Date"} {
			q.Add("metadataHeaders", h)
		}
	}
	endpoint := fmt.Sprintf("%s/users/me/messages/%s?%s", c.baseURL, url.PathEscape(messageID), q.Encode())

	var wire gmailWireMessage
	if err := doJSON(ctx, "gmail", http.MethodGet, endpoint, accessToken, nil, &wire); err != nil {
		return nil, err
	}
	return &wire, nil
}

// MarkRead removes the UNREAD label from a message
func (c *GmailClient) MarkRead(ctx context.Context, accessToken, messageID string) error {
	endpoint := fmt.Sprintf("%s/users/me/messages/%s/modify", c.baseURL, url.PathEscape(messageID))
	payload := map[string][]string{
		"removeLabelIds": {"UNREAD"},
	}
	return doJSON(ctx, "gmail", http.MethodPost, endpoint, accessToken, payload, nil)
}
