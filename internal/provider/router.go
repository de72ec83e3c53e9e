package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wyldephyre/jessica-core/internal/config"
)

// Routing keyword sets for the three-tier router. Checked in order:
// research beats reasoning beats document lookup.
var (
	researchKeywords = []string{
		"research", "look up", "find out", "what's happening", "current",
		"news", "latest", "search", "investigate", "dig into",
	}
	reasoningKeywords = []string{
		"analyze", "strategy", "plan", "complex", "detailed", "comprehensive",
		"deep dive", "break down", "explain thoroughly", "compare", "evaluate",
		"business decision", "architecture", "design",
	}
	documentKeywords = []string{
		"summarize", "document", "pdf", "file", "extract", "quick lookup",
		"definition", "what is", "explain briefly",
	}
)

// Routing describes why a request landed on a provider
type Routing struct {
	Provider string `json:"provider"`
	Tier     int    `json:"tier"`
	Reason   string `json:"reason"`
}

// Route picks a provider for the message. An explicit directive is tier 2
// and always wins; otherwise keyword detection picks a specialist, falling
// back to the local engine for standard tasks.
func Route(message, directive string) Routing {
	switch directive {
	case "claude":
		return Routing{Provider: "claude", Tier: 2, Reason: "User requested Claude"}
	case "grok":
		return Routing{Provider: "grok", Tier: 2, Reason: "User requested Grok"}
	case "gemini":
		return Routing{Provider: "gemini", Tier: 2, Reason: "User requested Gemini"}
	case "local":
		return Routing{Provider: "local", Tier: 2, Reason: "User requested local processing"}
	}

	lower := strings.ToLower(message)
	for _, kw := range researchKeywords {
		if strings.Contains(lower, kw) {
			return Routing{Provider: "grok", Tier: 1, Reason: "Research task detected - using Grok for web access"}
		}
	}
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return Routing{Provider: "claude", Tier: 1, Reason: "Complex reasoning detected - using Claude"}
		}
	}
	for _, kw := range documentKeywords {
		if strings.Contains(lower, kw) {
			return Routing{Provider: "gemini", Tier: 1, Reason: "Document/lookup task - using Gemini"}
		}
	}
	return Routing{Provider: "local", Tier: 1, Reason: "Standard task - using local engine"}
}

// Registry constructs provider clients lazily, once per process, so SDK
// handles are reused across requests. Tests substitute fakes through Put.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
	build   map[string]func() Client
}

// NewRegistry creates a registry with factories for the configured providers
func NewRegistry(cfg *config.ProvidersConfig) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		build: map[string]func() Client{
			"claude": func() Client {
				return NewClaudeClient(ClaudeConfig{
					APIKey:    cfg.Claude.APIKey,
					Model:     cfg.Claude.Model,
					MaxTokens: cfg.Claude.MaxTokens,
				})
			},
			"gemini": func() Client {
				return NewGeminiClient(GeminiConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
			},
			"grok": func() Client {
				return NewGrokClient(GrokConfig{APIKey: cfg.Grok.APIKey, Model: cfg.Grok.Model})
			},
			"local": func() Client {
				return NewOllamaClient(OllamaConfig{
					URL:     cfg.Local.URL,
					Model:   cfg.Local.Model,
					Timeout: cfg.Local.LocalTimeout(),
				})
			},
		},
	}
}

// Get returns the memoized client for the provider name
func (r *Registry) Get(name string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[name]; ok {
		return client, nil
	}
	build, ok := r.build[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	client := build()
	r.clients[name] = client
	return client, nil
}

// Put registers a client under a name, replacing any factory. For tests.
func (r *Registry) Put(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
}

// Names lists the routable provider names
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for name := range r.clients {
		seen[name] = true
		names = append(names, name)
	}
	for name := range r.build {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}
