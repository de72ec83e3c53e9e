package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

// GeminiConfig holds Google Generative AI client configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // empty means production
}

// GeminiClient talks to the Google Generative Language API. Used for quick
// lookups and document tasks; no function calling.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini client
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *GeminiClient) Name() string        { return "gemini" }
func (c *GeminiClient) SupportsTools() bool { return false }

func (c *GeminiClient) Health() error {
	if c.apiKey == "" {
		return apperr.Config("GOOGLE_AI_API_KEY is not configured")
	}
	return nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Chat sends one generateContent call. Gemini has no separate system role
// here, so the system prompt is prepended to the first user turn.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := c.Health(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var contents []geminiContent
	for i, m := range req.Messages {
		text := m.Content
		if i == 0 && req.System != "" {
			text = req.System + "\n\n" + text
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: text}}})
	}

	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("encoding gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.External("gemini", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.FromStatus("gemini", resp.StatusCode, string(raw))
	}

	var wireResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}
	if len(wireResp.Candidates) == 0 || len(wireResp.Candidates[0].Content.Parts) == 0 {
		return nil, apperr.External("gemini", fmt.Errorf("no candidates in response"))
	}

	return &ChatResponse{
		Content:    wireResp.Candidates[0].Content.Parts[0].Text,
		Model:      model,
		StopReason: StopEnd,
		Usage: Usage{
			InputTokens:  wireResp.UsageMetadata.PromptTokenCount,
			OutputTokens: wireResp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}
