package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quietloop/remora/internal/config"
	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/cron"
	"github.com/quietloop/remora/internal/reload"
	"github.com/quietloop/remora/internal/security"
)

const shutdownTimeout = 30 * time.Second

// RunParams carries CLI-level settings into the run loop.
type RunParams struct {
	ConfigPath string
	DataDir    string
	LogLevel   string

	Version string
	Commit  string
	Date    string
}

// Run is the main entry point: it loads the configuration, builds the
// module graph, wires the relay, and blocks until a shutdown signal.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		p, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir, err = DefaultDataDir()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	creds := security.NewCredentialStore()
	redactor := security.NewRedactor()
	logger := newLogger(params.LogLevel, redactor)
	logger.Info("starting remora",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", dataDir)

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.credentials", creds)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("config.path", cfgPath)

	app := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := app.LoadModules(ids); err != nil {
		return err
	}

	w, err := wireRelay(app, appCtx, ids, cfg, logger, dataDir, creds)
	if err != nil {
		return err
	}

	// Everything collected before Start so keys logged during module
	// startup are already masked.
	redactor.SyncCredentials(creds)

	handler := reload.NewHandler(app, logger, dataDir)
	appCtx.RegisterService("reload.handler", handler)

	rc := cfg.Relay.WithDefaults()
	scheduler := cron.NewScheduler(logger)
	if rc.SnapshotSchedule != "" {
		job := &cron.SnapshotJob{
			Flush:        w.relay.Snapshot,
			Logger:       logger,
			ScheduleExpr: rc.SnapshotSchedule,
		}
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
	}

	if err := runGuarded(app, w, logger); err != nil {
		return err
	}
	defer app.Stop()

	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = scheduler.Stop(ctx)
	}()

	watchPaths := []string{cfgPath}
	if rc.PromptPath != "" {
		watchPaths = append(watchPaths, rc.PromptPath)
	}
	watcher := reload.NewWatcher(reload.WatcherConfig{Paths: watchPaths})
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	mainLoop(mainLoopParams{
		cfgPath:    cfgPath,
		promptPath: rc.PromptPath,
		handler:    handler,
		watcher:    watcher,
		wiring:     w,
		logger:     logger,
	})

	logger.Info("shutting down")
	return nil
}

// runGuarded starts the app with a panic guard that writes an emergency
// snapshot to a crash-suffixed path before re-panicking, so in-memory
// transcripts survive even an abrupt startup failure.
func runGuarded(app *core.App, w *wiring, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during startup, writing emergency snapshot", "panic", r)
			if saveErr := w.emergency(); saveErr != nil {
				logger.Error("emergency snapshot failed", "error", saveErr)
			}
			panic(r)
		}
	}()
	return app.Start()
}

type mainLoopParams struct {
	cfgPath    string
	promptPath string
	handler    *reload.Handler
	watcher    *reload.Watcher
	wiring     *wiring
	logger     *slog.Logger
}

// mainLoop blocks until SIGINT or SIGTERM. SIGHUP and config-file changes
// trigger a module reload; prompt-file changes reload only the prompt
// template. A panic anywhere in the loop writes the emergency snapshot.
func mainLoop(p mainLoopParams) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in main loop, writing emergency snapshot", "panic", r)
			if err := p.wiring.emergency(); err != nil {
				p.logger.Error("emergency snapshot failed", "error", err)
			}
			panic(r)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				p.logger.Info("SIGHUP received, reloading configuration")
				reloadAll(p)
			default:
				p.logger.Info("shutdown signal received", "signal", sig.String())
				return
			}
		case ev := <-p.watcher.Events():
			if p.promptPath != "" && ev.Path == p.promptPath {
				p.logger.Info("prompt template changed, reloading", "path", ev.Path)
				if err := p.wiring.relay.ReloadPrompts(); err != nil {
					p.logger.Error("prompt reload failed", "error", err)
				}
				continue
			}
			p.logger.Info("config file changed, reloading", "path", ev.Path)
			reloadAll(p)
		}
	}
}

func reloadAll(p mainLoopParams) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.handler.HandleReload(ctx, p.cfgPath); err != nil {
		p.logger.Error("reload failed, keeping previous configuration", "error", err)
		return
	}
	p.logger.Info("reload complete")
}

// newLogger builds the process logger. Every record passes through the
// redactor so configured credentials never reach the log stream.
func newLogger(level string, redactor *security.Redactor) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath finds the configuration file: $XDG_CONFIG_HOME/remora/
// remora.yaml, then ~/.config/remora/remora.yaml, then ./remora.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "remora", "remora.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "remora", "remora.yaml"))
	}
	candidates = append(candidates, "remora.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched %v)", candidates)
}

// DefaultDataDir returns $XDG_DATA_HOME/remora or ~/.local/share/remora.
func DefaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "remora"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "remora"), nil
}
