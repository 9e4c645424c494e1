package sqlite

import "fmt"

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "transcripts.db"
	defaultMemoryLimit = 60
)

// Config holds the SQLite transcript store configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/transcripts.db.
	Path string `yaml:"path"`

	// MemoryLimit bounds the entries kept per conversation. Oldest rows
	// are evicted on insert. Defaults to 60.
	MemoryLimit int `yaml:"memory_limit"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.MemoryLimit == 0 {
		c.MemoryLimit = defaultMemoryLimit
	}
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.MemoryLimit < 0 {
		return fmt.Errorf("sqlite: memory_limit must be non-negative, got %d", c.MemoryLimit)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	return nil
}
