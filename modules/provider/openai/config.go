package openai

import (
	"errors"
	"time"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultAPIKeysEnv = "OPENAI_API_KEY"
	defaultMaxTokens  = 4096
	defaultTimeout    = 120 * time.Second
)

// Config holds settings for the provider.openai module. It works with any
// service implementing the OpenAI chat completions interface (Groq,
// Mistral, DeepSeek, OpenRouter, vLLM, ...) via base_url.
type Config struct {
	// APIKeys is the credential pool rotated round-robin across requests.
	// When empty, keys are read from the environment variable named by
	// APIKeysEnv (comma-separated).
	APIKeys    []string `yaml:"api_keys"`
	APIKeysEnv string   `yaml:"api_keys_env"`

	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	// Headers are extra HTTP headers sent with every request, for
	// compatible services that need them (e.g. OpenRouter attribution).
	Headers map[string]string `yaml:"headers"`

	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	TopP        *float64      `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.APIKeysEnv == "" {
		c.APIKeysEnv = defaultAPIKeysEnv
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	if c.Model == "" {
		return errors.New("provider.openai: model must not be empty")
	}
	if c.MaxTokens < 0 {
		return errors.New("provider.openai: max_tokens must not be negative")
	}
	return nil
}
