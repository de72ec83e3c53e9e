package googleapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Document is the canonical document shape
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// DocsClient is a stateless Docs v1 adapter
type DocsClient struct {
	baseURL string
}

// NewDocsClient creates a Docs adapter; empty baseURL means production
func NewDocsClient(baseURL string) *DocsClient {
	if baseURL == "" {
		baseURL = defaultDocsBase
	}
	return &DocsClient{baseURL: baseURL}
}

type docsWireDocument struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Body       *struct {
		Content []struct {
			EndIndex  int `json:"endIndex"`
			Paragraph *struct {
				Elements []struct {
					TextRun *struct {
						Content string `json:"content"`
					} `json:"textRun"`
				} `json:"elements"`
			} `json:"paragraph"`
		} `json:"content"`
	} `json:"body"`
}

func (d *docsWireDocument) text() string {
	if d.Body == nil {
		return ""
	}
	var sb strings.Builder
	for _, el := range d.Body.Content {
		if el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe.TextRun != nil {
				sb.WriteString(pe.TextRun.Content)
			}
		}
	}
	return sb.String()
}

// endIndex returns the insertion point for an append: just before the
// trailing newline of the last structural element.
func (d *docsWireDocument) endIndex() int {
	if d.Body == nil || len(d.Body.Content) == 0 {
		return 1
	}
	last := d.Body.Content[len(d.Body.Content)-1]
	if last.EndIndex <= 1 {
		return 1
	}
	return last.EndIndex - 1
}

// CreateDocument creates an empty document with the given title
func (c *DocsClient) CreateDocument(ctx context.Context, accessToken, title string) (*Document, error) {
	endpoint := c.baseURL + "/documents"
	payload := map[string]string{"title": title}

	var wire docsWireDocument
	if err := doJSON(ctx, "docs", http.MethodPost, endpoint, accessToken, payload, &wire); err != nil {
		return nil, err
	}
	return &Document{ID: wire.DocumentID, Title: wire.Title}, nil
}

// GetDocument fetches a document and flattens its body to plain text
func (c *DocsClient) GetDocument(ctx context.Context, accessToken, documentID string) (*Document, error) {
	endpoint := fmt.Sprintf("%s/documents/%s", c.baseURL, url.PathEscape(documentID))

	var wire docsWireDocument
	if err := doJSON(ctx, "docs", http.MethodGet, endpoint, accessToken, nil, &wire); err != nil {
		return nil, err
	}
	return &Document{ID: wire.DocumentID, Title: wire.Title, Body: wire.text()}, nil
}

// AppendText inserts text at the end of the document. This is a
// read-before-write (fetch end index, then insert at it) with no
// transactional guarantee: two concurrent appends can race and interleave.
// Accepted limitation carried over from the original adapter.
func (c *DocsClient) AppendText(ctx context.Context, accessToken, documentID, text string) error {
	getEndpoint := fmt.Sprintf("%s/documents/%s", c.baseURL, url.PathEscape(documentID))

	var wire docsWireDocument
	if err := doJSON(ctx, "docs", http.MethodGet, getEndpoint, accessToken, nil, &wire); err != nil {
		return err
	}

	updateEndpoint := fmt.Sprintf("%s/documents/%s:batchUpdate", c.baseURL, url.PathEscape(documentID))
	payload := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"insertText": map[string]interface{}{
					"location": map[string]int{"index": wire.endIndex()},
					"text":     "\n" + text,
				},
			},
		},
	}
	return doJSON(ctx, "docs", http.MethodPost, updateEndpoint, accessToken, payload, nil)
}
