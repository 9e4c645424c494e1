// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for remora.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Relay configures the conversation relay core.
	Relay RelayConfig `yaml:"relay"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// RelayConfig holds settings for the conversation relay core.
type RelayConfig struct {
	// MemoryLimit bounds the number of transcript entries kept per
	// conversation. Oldest entries are evicted first.
	MemoryLimit int `yaml:"memory_limit"`

	// SnapshotEvery triggers a transcript snapshot after this many
	// processed events.
	SnapshotEvery int `yaml:"snapshot_every"`

	// SnapshotSchedule is an optional cron expression for time-based
	// snapshot flushes (e.g. "*/10 * * * *").
	SnapshotSchedule string `yaml:"snapshot_schedule"`

	// PromptPath is the path to the prompt template file.
	PromptPath string `yaml:"prompt_path"`

	// QuoteMaxLength bounds the reply-quote fragment embedded in
	// transcript lines. Defaults to 50.
	QuoteMaxLength int `yaml:"quote_max_length"`

	// TypingInterval is the delay between liveness (typing) signals while
	// a reply is being generated. Defaults to 4 s.
	TypingInterval time.Duration `yaml:"typing_interval"`

	// Operators lists sender IDs allowed to run operator-gated commands
	// (broadcast, direct send, reload).
	Operators []string `yaml:"operators"`

	// Store selects the transcript store backend: "memory" (gob snapshot
	// files, default) or a registered store module ID such as
	// "store.sqlite".
	Store string `yaml:"store"`

	// Workers is the size of the relay worker pool.
	Workers int `yaml:"workers"`
}

// WithDefaults returns a copy of the relay config with zero values replaced
// by defaults.
func (c RelayConfig) WithDefaults() RelayConfig {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 60
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = 25
	}
	if c.QuoteMaxLength <= 0 {
		c.QuoteMaxLength = 50
	}
	if c.TypingInterval <= 0 {
		c.TypingInterval = 4 * time.Second
	}
	if c.Store == "" {
		c.Store = "memory"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	return c
}
