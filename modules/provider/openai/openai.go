// Package openai implements the provider.openai module. It speaks the
// OpenAI chat completions protocol and, via base_url, works with any
// compatible service (Groq, Mistral, DeepSeek, OpenRouter, vLLM, ...).
package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/genai"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Interface guards.
var (
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
	_ genai.Generator   = (*Provider)(nil)
)

// Provider is the provider.openai module.
type Provider struct {
	config Config
	keys   *genai.KeyRing
	client *Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	keys := p.config.APIKeys
	if len(keys) == 0 && p.config.APIKeysEnv != "" {
		if raw, ok := os.LookupEnv(p.config.APIKeysEnv); ok {
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
	p.keys = ring

	cfg := p.config
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	p.client = NewClient(cfg, ring, &http.Client{Timeout: cfg.Timeout})

	p.logger.Info("openai provider ready",
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"keys", ring.Size(),
	)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if err := p.config.validate(); err != nil {
		return err
	}
	if p.client == nil {
		return errors.New("provider.openai: client not initialized (Provision not called)")
	}
	return nil
}

// Generate implements genai.Generator.
func (p *Provider) Generate(ctx context.Context, req genai.Request) (genai.Response, error) {
	return p.client.Generate(ctx, req)
}

// ModelName implements genai.Generator.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// Credentials returns the key pool, for registration with the log redactor.
func (p *Provider) Credentials() []string {
	if p.keys == nil {
		return nil
	}
	return p.keys.Keys()
}
