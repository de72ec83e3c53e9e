// Package googleapi wraps the Google Workspace REST APIs (Calendar v3,
// Gmail v1, Docs v1) behind narrow, stateless adapters. Each call is a
// single round trip: no retries, no caching, no batching. Downstream HTTP
// failures are classified into canonical error kinds before they leave this
// package.
package googleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultCalendarBase = "https://www.googleapis.com/calendar/v3"
	defaultGmailBase    = "https://gmail.googleapis.com/gmail/v1"
	defaultDocsBase     = "https://docs.googleapis.com/v1"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// doJSON issues one authenticated request and decodes the JSON response
// into out (skipped when out is nil). Non-2xx statuses are classified.
func doJSON(ctx context.Context, service, method, url, accessToken string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", service, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", service, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return classifyStatus(service, resp.StatusCode, string(raw), resp.Header)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", service, err)
	}
	return nil
}
