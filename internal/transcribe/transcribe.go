// Package transcribe proxies audio uploads to the Whisper backend.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

// Result is the Whisper backend's transcription payload
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments,omitempty"`
}

// Segment is one timed slice of the transcript
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Config holds proxy settings
type Config struct {
	URL         string
	MaxUploadMB int
	Timeout     time.Duration
}

// Service forwards audio to the Whisper backend and relays the transcript
type Service struct {
	url        string
	maxBytes   int64
	httpClient *http.Client
}

// NewService creates the transcription proxy
func NewService(cfg Config) *Service {
	maxMB := cfg.MaxUploadMB
	if maxMB == 0 {
		maxMB = 25
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Service{
		url:        cfg.URL,
		maxBytes:   int64(maxMB) << 20,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// MaxBytes is the upload size limit in bytes
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Transcribe streams one audio file to the backend. audio must already be
// length-capped by the caller; the size check here is the authoritative one.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (*Result, error) {
	if s.url == "" {
		return nil, apperr.Config("transcription backend URL is not configured")
	}
	if filename == "" {
		return nil, apperr.Validation("no audio file provided")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	// Read one byte past the limit to distinguish at-limit from over-limit
	n, err := io.Copy(part, io.LimitReader(audio, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading audio upload: %w", err)
	}
	if n == 0 {
		return nil, apperr.Validation("audio file is empty")
	}
	if n > s.maxBytes {
		return nil, apperr.Validation("audio file exceeds the %dMB upload limit", s.maxBytes>>20)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperr.External("whisper", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.FromStatus("whisper", resp.StatusCode, string(raw))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription response: %w", err)
	}
	return &result, nil
}

// Health pings the backend's health endpoint
func (s *Service) Health(ctx context.Context) error {
	if s.url == "" {
		return apperr.Config("transcription backend URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.External("whisper", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.External("whisper", fmt.Errorf("health returned %d", resp.StatusCode))
	}
	return nil
}
