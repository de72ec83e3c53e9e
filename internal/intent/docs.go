package intent

import (
	"regexp"
	"strings"
)

// Docs actions
const (
	DocsActionCreate = "create"
	DocsActionRead   = "read"
	DocsActionAppend = "append"
)

// DocsIntent is the structured interpretation of a document request
type DocsIntent struct {
	HasIntent  bool
	Action     string
	DocumentID string
	Title      string
	Content    string
}

var docsCreateKeywords = []string{
	"create document", "create doc", "new document", "new doc",
	"make a document", "make a doc",
}

var docsReadKeywords = []string{
	"read document", "read doc", "show document", "show doc",
	"open document", "view document",
}

var docsAppendKeywords = []string{
	"add to document", "add to doc", "append to document", "append to doc",
	"write to document", "write to doc", "update document", "update doc",
}

var (
	docsTitleRe       = regexp.MustCompile(`(?i)(?:called|named|titled|title):\s*(.+?)(?:\s|$)`)
	docsIDRe          = regexp.MustCompile(`(?i)(?:id|document)[:\s]+([a-zA-Z0-9_-]+)`)
	docsContentRe     = regexp.MustCompile(`(?i)(?:that says|with|containing|content):\s*(.+?)(?:\s|$)`)
	docsCreateSplitRe = regexp.MustCompile(`(?i)(?:create|new|make)`)
	docsTitleStopRe   = regexp.MustCompile(`(?i)(?:with|containing|that says)`)
	docsAppendSplitRe = regexp.MustCompile(`(?i)(?:add|append|write|update)`)
	docsContentStopRe = regexp.MustCompile(`(?i)(?:to|document|doc)`)
)

// DetectDocs reports whether the message asks for a document action
func DetectDocs(message string) DocsIntent {
	lower := strings.ToLower(message)

	for _, kw := range docsCreateKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		title := firstGroup(docsTitleRe, message)
		if title == "" {
			if parts := docsCreateSplitRe.Split(message, 2); len(parts) == 2 {
				title = strings.TrimSpace(docsTitleStopRe.Split(parts[1], 2)[0])
			}
		}
		if title == "" {
			title = "Untitled Document"
		}
		return DocsIntent{HasIntent: true, Action: DocsActionCreate, Title: title}
	}

	for _, kw := range docsReadKeywords {
		if strings.Contains(lower, kw) {
			return DocsIntent{
				HasIntent:  true,
				Action:     DocsActionRead,
				DocumentID: firstGroup(docsIDRe, message),
			}
		}
	}

	for _, kw := range docsAppendKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		content := firstGroup(docsContentRe, message)
		if content == "" {
			if parts := docsAppendSplitRe.Split(message, 2); len(parts) == 2 {
				if rest := docsContentStopRe.Split(parts[1], 3); len(rest) >= 3 {
					content = strings.TrimSpace(rest[2])
				}
			}
		}
		return DocsIntent{
			HasIntent:  true,
			Action:     DocsActionAppend,
			DocumentID: firstGroup(docsIDRe, message),
			Content:    content,
		}
	}

	return DocsIntent{}
}
