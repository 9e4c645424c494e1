// Package anthropic implements the provider.anthropic module, bridging
// remora to the Anthropic Messages API.
package anthropic

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/genai"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module       = (*Anthropic)(nil)
	_ core.Configurable = (*Anthropic)(nil)
	_ core.Provisioner  = (*Anthropic)(nil)
	_ core.Validator    = (*Anthropic)(nil)
	_ genai.Generator   = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module. It implements genai.Generator
// using the official SDK, drawing the API key from a rotating pool per call.
type Anthropic struct {
	config Config
	keys   *genai.KeyRing
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.logger = ctx.Logger

	keys := a.config.APIKeys
	if len(keys) == 0 {
		if raw, ok := os.LookupEnv(a.config.APIKeysEnv); ok {
			for _, k := range strings.Split(raw, ",") {
				if k = strings.TrimSpace(k); k != "" {
					keys = append(keys, k)
				}
			}
		}
	}

	ring, err := genai.NewKeyRing(keys)
	if err != nil {
		return err
	}
	a.keys = ring

	// The credential is supplied per request so the pool rotates; retries
	// are left to the relay's transient-error handling.
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: a.config.Timeout}),
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	a.client = &client

	a.logger.Info("anthropic provider ready",
		"model", a.config.Model,
		"keys", ring.Size(),
	)
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.config.Model == "" {
		return errors.New("provider.anthropic: model must not be empty")
	}
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return nil
}

// ModelName implements genai.Generator.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}

// Credentials returns the key pool, for registration with the log redactor.
func (a *Anthropic) Credentials() []string {
	if a.keys == nil {
		return nil
	}
	return a.keys.Keys()
}
