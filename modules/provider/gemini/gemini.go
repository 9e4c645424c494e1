// Package gemini implements the provider.gemini module, bridging remora to
// the Google Generative Language API with round-robin credential rotation.
package gemini

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
	core.RegisterModule(&Gemini{})
}

// Interface guards.
var (
	_ core.Module       = (*Gemini)(nil)
	_ core.Configurable = (*Gemini)(nil)
	_ core.Provisioner  = (*Gemini)(nil)
	_ core.Validator    = (*Gemini)(nil)
	_ genai.Generator   = (*Gemini)(nil)
)

// Gemini is the provider.gemini module. It implements genai.Generator over
// the generateContent REST endpoint, rotating API keys per request.
type Gemini struct {
	config Config
	keys   *genai.KeyRing
	client *Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (g *Gemini) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Gemini{} },
	}
}

// Configure implements core.Configurable.
func (g *Gemini) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gemini) Provision(ctx *core.AppContext) error {
	g.logger = ctx.Logger

	keys := g.config.APIKeys
	if len(keys) == 0 && g.config.APIKeysEnv != "" {
		if raw, ok := os.LookupEnv(g.config.APIKeysEnv); ok {
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
	g.keys = ring

	g.client = NewClient(
		strings.TrimRight(g.config.BaseURL, "/"),
		g.config.Model,
		ring,
		generationConfig{
			Temperature:     g.config.Temperature,
			MaxOutputTokens: g.config.MaxOutputTokens,
			TopP:            g.config.TopP,
			TopK:            g.config.TopK,
		},
		&http.Client{Timeout: g.config.Timeout},
	)

	g.logger.Info("gemini provider ready",
		"model", g.config.Model,
		"keys", ring.Size(),
	)
	return nil
}

// Validate implements core.Validator.
func (g *Gemini) Validate() error {
	if g.config.Model == "" {
		return errors.New("provider.gemini: model must not be empty")
	}
	if g.client == nil {
		return errors.New("provider.gemini: client not initialized (Provision not called)")
	}
	return nil
}

// Generate implements genai.Generator.
func (g *Gemini) Generate(ctx context.Context, req genai.Request) (genai.Response, error) {
	return g.client.Generate(ctx, req)
}

// ModelName implements genai.Generator.
func (g *Gemini) ModelName() string {
	return g.config.Model
}

// Credentials returns the key pool, for registration with the log redactor.
func (g *Gemini) Credentials() []string {
	if g.keys == nil {
		return nil
	}
	return g.keys.Keys()
}
