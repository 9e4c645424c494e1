// Package gateway provides the HTTP surface: health and status endpoints,
// Prometheus metrics, the webhook entry point for channels, and a WebSocket
// stream of relay events. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/relay"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// DispatcherService is the key the webhook dispatcher is registered under,
// so channel modules can attach their receivers.
const DispatcherService = "gateway.webhook_dispatcher"

// RelayService is the key the relay registers itself under.
const RelayService = "relay"

// Interface guards.
var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// RelayControl is the slice of the relay the gateway needs. The relay
// registers itself in the service registry; tests substitute a fake.
type RelayControl interface {
	Status() relay.Status
	Events() *relay.EventHub
	Bans() *relay.BanList
	ReloadPrompts() error
}

// Gateway is the gateway module. It is a leaf: nothing imports it, and its
// relay binding resolves lazily at Start through the service registry.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	dispatcher *WebhookDispatcher
	relay      RelayControl
	startedAt  time.Time
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The dispatcher is registered here
// so channel modules can find it before Start ordering matters.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.dispatcher = NewWebhookDispatcher(g.logger)
	ctx.RegisterService(DispatcherService, g.dispatcher)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. The relay is resolved from the service
// registry; endpoints that need it degrade to 503 when it is absent.
func (g *Gateway) Start() error {
	if svc, ok := g.appCtx.Service(RelayService); ok {
		if rc, ok := svc.(RelayControl); ok {
			g.relay = rc
		}
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Dispatcher returns the webhook dispatcher.
func (g *Gateway) Dispatcher() *WebhookDispatcher {
	return g.dispatcher
}
