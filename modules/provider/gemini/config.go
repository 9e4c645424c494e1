package gemini

import "time"

// defaultModel is the model used when none is specified.
const defaultModel = "gemini-2.5-flash"

// defaultBaseURL is the Generative Language API endpoint.
const defaultBaseURL = "https://generativelanguage.googleapis.com"

// defaultTimeout bounds a single generateContent round trip. Generation can
// take a while on long prompts, so this is deliberately generous.
const defaultTimeout = 120 * time.Second

// Generation defaults. High topK and untempered temperature match the
// conversational register the prompt template is written for.
const (
	defaultTemperature     = 1.0
	defaultMaxOutputTokens = 80000
	defaultTopP            = 1.0
	defaultTopK            = 200
)

// Config holds the YAML-decoded configuration for the Gemini provider.
type Config struct {
	// APIKeys is the credential pool. Keys are rotated round-robin, one
	// per request, so quota draws evenly across the pool.
	APIKeys []string `yaml:"api_keys"`

	// APIKeysEnv names an environment variable holding a comma-separated
	// credential list, used when APIKeys is empty.
	APIKeysEnv string `yaml:"api_keys_env"`

	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TopP            float64 `yaml:"top_p"`
	TopK            int     `yaml:"top_k"`
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxOutputTokens
	}
	if c.TopP == 0 {
		c.TopP = defaultTopP
	}
	if c.TopK == 0 {
		c.TopK = defaultTopK
	}
}
