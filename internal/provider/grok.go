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

// GrokConfig holds xAI client configuration
type GrokConfig struct {
	APIKey  string
	Model   string
	BaseURL string // empty means production
}

// GrokClient talks to the xAI OpenAI-compatible chat completions API.
// Routed to for research and current-information tasks.
type GrokClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGrokClient creates a Grok client
func NewGrokClient(cfg GrokConfig) *GrokClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	return &GrokClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *GrokClient) Name() string        { return "grok" }
func (c *GrokClient) SupportsTools() bool { return false }

func (c *GrokClient) Health() error {
	if c.apiKey == "" {
		return apperr.Config("XAI_API_KEY is not configured")
	}
	return nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends one chat completions call
func (c *GrokClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := c.Health(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(openAIRequest{Model: model, Messages: messages, MaxTokens: 2048})
	if err != nil {
		return nil, fmt.Errorf("encoding grok request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating grok request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.External("grok", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.FromStatus("grok", resp.StatusCode, string(raw))
	}

	var wireResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decoding grok response: %w", err)
	}
	if len(wireResp.Choices) == 0 {
		return nil, apperr.External("grok", fmt.Errorf("no choices in response"))
	}

	return &ChatResponse{
		Content:    wireResp.Choices[0].Message.Content,
		Model:      wireResp.Model,
		StopReason: StopEnd,
		Usage: Usage{
			InputTokens:  wireResp.Usage.PromptTokens,
			OutputTokens: wireResp.Usage.CompletionTokens,
		},
	}, nil
}
