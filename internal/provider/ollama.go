package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

// OllamaConfig holds local engine configuration
type OllamaConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// OllamaClient talks to a local Ollama instance. The default lane for
// standard tasks; no function calling, no API key.
type OllamaClient struct {
	url        string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates a local engine client
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		url:        cfg.URL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) Name() string        { return "local" }
func (c *OllamaClient) SupportsTools() bool { return false }

func (c *OllamaClient) Health() error {
	if c.url == "" {
		return apperr.Config("local engine URL is not configured")
	}
	return nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Chat sends one generate call. Ollama's generate endpoint takes a flat
// prompt, so the system prompt and conversation are concatenated.
func (c *OllamaClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := c.Health(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var sb strings.Builder
	if req.System != "" {
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	body, err := json.Marshal(ollamaRequest{Model: model, Prompt: sb.String(), Stream: false})
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.External("local", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.FromStatus("local", resp.StatusCode, string(raw))
	}

	var wireResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	return &ChatResponse{
		Content:    wireResp.Response,
		Model:      model,
		StopReason: StopEnd,
		Usage: Usage{
			InputTokens:  wireResp.PromptEvalCount,
			OutputTokens: wireResp.EvalCount,
		},
	}, nil
}
