package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quietloop/remora/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, and checks
// that all referenced module IDs exist in the registry. It also enforces
// that exactly the features the relay needs are configured: at least one
// channel module and at least one provider module.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var haveChannel, haveProvider bool
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		switch {
		case strings.HasPrefix(id, "channel."):
			haveChannel = true
		case strings.HasPrefix(id, "provider."):
			haveProvider = true
		}
	}

	if len(cfg.Modules) > 0 {
		if !haveChannel {
			errs = append(errs, errors.New("config: no channel module configured"))
		}
		if !haveProvider {
			errs = append(errs, errors.New("config: no provider module configured"))
		}
	}

	if cfg.Relay.Store != "" && cfg.Relay.Store != "memory" {
		if _, ok := core.GetModule(cfg.Relay.Store); !ok {
			errs = append(errs, fmt.Errorf("config: relay.store references unknown module %q", cfg.Relay.Store))
		}
	}

	return errors.Join(errs...)
}
