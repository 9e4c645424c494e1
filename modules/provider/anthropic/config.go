package anthropic

import "time"

// defaultModel is the model used when none is specified.
const defaultModel = "claude-sonnet-4-5-20250929"

// defaultTimeout bounds a full Messages API round trip.
const defaultTimeout = 120 * time.Second

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	// APIKeys is the credential pool, rotated round-robin per request.
	// A single-element list is the common case.
	APIKeys []string `yaml:"api_keys"`

	// APIKeysEnv names an environment variable holding a comma-separated
	// credential list, used when APIKeys is empty. Defaults to
	// ANTHROPIC_API_KEY.
	APIKeysEnv string `yaml:"api_keys_env"`

	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeysEnv == "" {
		c.APIKeysEnv = "ANTHROPIC_API_KEY"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}
