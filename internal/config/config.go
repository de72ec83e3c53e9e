package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full jessica-core configuration, loaded from YAML with
// environment variable overrides for secrets.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Google     GoogleConfig     `yaml:"google"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Memory     MemoryConfig     `yaml:"memory"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// FrontendURL is where OAuth callbacks redirect the browser back to
	FrontendURL string `yaml:"frontend_url"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GoogleConfig holds the Google OAuth application credentials
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

// ProvidersConfig holds per-LLM-provider settings
type ProvidersConfig struct {
	Claude ClaudeConfig `yaml:"claude"`
	Gemini GeminiConfig `yaml:"gemini"`
	Grok   GrokConfig   `yaml:"grok"`
	Local  LocalConfig  `yaml:"local"`
}

// ClaudeConfig holds Anthropic API settings
type ClaudeConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// GeminiConfig holds Google Generative AI settings
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// GrokConfig holds xAI API settings
type GrokConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// LocalConfig holds the local Ollama engine settings
type LocalConfig struct {
	URL            string `yaml:"url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MemoryConfig selects and configures the memory backend
type MemoryConfig struct {
	Provider string `yaml:"provider"` // mem0, local, letta
	Mem0     struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		UserID  string `yaml:"user_id"`
	} `yaml:"mem0"`
	Local struct {
		Path string `yaml:"path"`
	} `yaml:"local"`
}

// TranscribeConfig holds the Whisper backend settings
type TranscribeConfig struct {
	URL          string `yaml:"url"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	TimeoutSecs  int    `yaml:"timeout_seconds"`
}

// SchedulerConfig controls the token refresh sweep
type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RefreshSpec string `yaml:"refresh_spec"`
}

// Load reads configuration from a YAML file and applies environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = "http://localhost:3000"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Providers.Claude.Model == "" {
		c.Providers.Claude.Model = "claude-3-5-sonnet-20241022"
	}
	if c.Providers.Claude.MaxTokens == 0 {
		c.Providers.Claude.MaxTokens = 2048
	}
	if c.Providers.Gemini.Model == "" {
		c.Providers.Gemini.Model = "gemini-1.5-flash"
	}
	if c.Providers.Grok.Model == "" {
		c.Providers.Grok.Model = "grok-beta"
	}
	if c.Providers.Local.URL == "" {
		c.Providers.Local.URL = "http://localhost:11434"
	}
	if c.Providers.Local.Model == "" {
		c.Providers.Local.Model = "dolphin-llama3:8b"
	}
	if c.Providers.Local.TimeoutSeconds == 0 {
		c.Providers.Local.TimeoutSeconds = 120
	}
	if c.Memory.Provider == "" {
		c.Memory.Provider = "local"
	}
	if c.Memory.Mem0.BaseURL == "" {
		c.Memory.Mem0.BaseURL = "https://api.mem0.ai/v1"
	}
	if c.Memory.Local.Path == "" {
		c.Memory.Local.Path = "jessica-memory.db"
	}
	if c.Transcribe.URL == "" {
		c.Transcribe.URL = "http://localhost:5000"
	}
	if c.Transcribe.MaxUploadMB == 0 {
		c.Transcribe.MaxUploadMB = 25
	}
	if c.Transcribe.TimeoutSecs == 0 {
		c.Transcribe.TimeoutSecs = 60
	}
	if c.Scheduler.RefreshSpec == "" {
		c.Scheduler.RefreshSpec = "@every 10m"
	}
}

// applyEnvOverrides lets secrets come from the environment rather than the
// YAML file, so the file can be committed without credentials.
func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GOOGLE_CLIENT_ID", &c.Google.ClientID},
		{"GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret},
		{"GOOGLE_REDIRECT_URI", &c.Google.RedirectURI},
		{"ANTHROPIC_API_KEY", &c.Providers.Claude.APIKey},
		{"GOOGLE_AI_API_KEY", &c.Providers.Gemini.APIKey},
		{"XAI_API_KEY", &c.Providers.Grok.APIKey},
		{"MEM0_API_KEY", &c.Memory.Mem0.APIKey},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"REDIS_PASSWORD", &c.Redis.Password},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks startup-critical settings. Provider API keys are checked
// lazily at first use instead, so a deployment with only one provider
// configured still starts.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	switch c.Memory.Provider {
	case "mem0", "local", "letta":
	default:
		return fmt.Errorf("unknown memory provider: %s", c.Memory.Provider)
	}
	if c.Providers.Claude.APIKey == "" &&
		c.Providers.Gemini.APIKey == "" &&
		c.Providers.Grok.APIKey == "" &&
		c.Providers.Local.URL == "" {
		return fmt.Errorf("no AI providers configured - at least one API key required")
	}
	return nil
}

// LocalTimeout returns the local engine HTTP timeout
func (c *LocalConfig) LocalTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the transcription upload limit in bytes
func (c *TranscribeConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Timeout returns the transcription HTTP timeout
func (c *TranscribeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}
