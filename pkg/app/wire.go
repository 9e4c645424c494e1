package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/internal/config"
	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/genai"
	"github.com/quietloop/remora/internal/relay"
	"github.com/quietloop/remora/internal/security"
	"github.com/quietloop/remora/internal/transcript"
)

// Snapshot file names under the data directory. The crash files are a
// separate last-resort target so a panic cannot corrupt the periodic
// snapshot it interrupts.
const (
	transcriptFile      = "transcripts.gob"
	banlistFile         = "banlist.gob"
	transcriptCrashFile = "transcripts.crash.gob"
	banlistCrashFile    = "banlist.crash.gob"
)

// storeService is the registry key persistent store modules register under.
const storeService = "store.transcript"

// credentialProvider is implemented by modules that hold secrets which must
// be registered for log redaction.
type credentialProvider interface {
	Credentials() []string
}

// wiring bundles what Run needs back from wireRelay.
type wiring struct {
	relay     *relay.Relay
	emergency func() error
}

// wireRelay discovers channels and the generator among the loaded modules,
// builds the relay with its persistence hooks, wires every channel's inbox,
// and appends the relay to the app lifecycle. Must be called after
// LoadModules and before Start.
func wireRelay(
	app *core.App,
	appCtx *core.AppContext,
	ids []string,
	cfg *config.Config,
	logger *slog.Logger,
	dataDir string,
	creds *security.CredentialStore,
) (*wiring, error) {
	dispatcher := channel.NewDispatcher()
	var channels []channel.Channel
	var generator genai.Generator

	for _, id := range ids {
		mod, ok := app.Module(core.ModuleID(id))
		if !ok {
			continue
		}
		if ch, ok := mod.(channel.Channel); ok {
			// Register under the full module ID (e.g. "channel.telegram")
			// because that is what the channel sets as msg.Channel.
			if err := dispatcher.Register(id, ch); err != nil {
				return nil, fmt.Errorf("registering channel %s: %w", id, err)
			}
			channels = append(channels, ch)
			logger.Info("relay: registered channel", "channel", id)
		}
		if gen, ok := mod.(genai.Generator); ok {
			if generator != nil {
				return nil, fmt.Errorf("relay: multiple provider modules configured")
			}
			generator = gen
			logger.Info("relay: discovered provider", "module", id)
		}
		if cp, ok := mod.(credentialProvider); ok {
			for i, secret := range cp.Credentials() {
				creds.Set(fmt.Sprintf("%s.%d", id, i), secret)
			}
		}
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("relay: at least one channel module is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("relay: a provider module is required")
	}

	rc := cfg.Relay.WithDefaults()
	bans := relay.NewBanList()
	restoreSnapshot(bans, filepath.Join(dataDir, banlistFile), logger)

	store, snapshotFn, emergencyFn, err := resolveStore(appCtx, rc, bans, dataDir, logger)
	if err != nil {
		return nil, err
	}

	r, err := relay.New(relay.Config{
		Relay:      cfg.Relay,
		Store:      store,
		Generator:  generator,
		Dispatcher: dispatcher,
		Bans:       bans,
		Logger:     logger,
		SnapshotFn: snapshotFn,
	})
	if err != nil {
		return nil, err
	}

	for _, ch := range channels {
		ch.SetInbox(r.Submit)
	}

	app.AppendModule(r)
	appCtx.RegisterService("relay", r)

	logger.Info("relay: wired", "channels", len(channels), "store", rc.Store)
	return &wiring{relay: r, emergency: emergencyFn}, nil
}

// resolveStore selects the transcript backend. "memory" is the default:
// a bounded in-process store persisted through gob snapshot files. Any
// other value must name a store module that registered itself as a
// service (e.g. "store.sqlite"), in which case snapshots only cover the
// ban list since the store persists continuously.
func resolveStore(
	appCtx *core.AppContext,
	rc config.RelayConfig,
	bans *relay.BanList,
	dataDir string,
	logger *slog.Logger,
) (transcript.Store, func(context.Context) error, func() error, error) {
	banPath := filepath.Join(dataDir, banlistFile)
	banCrashPath := filepath.Join(dataDir, banlistCrashFile)

	if rc.Store != "memory" {
		svc, ok := appCtx.Service(storeService)
		if !ok {
			return nil, nil, nil, fmt.Errorf("relay: store %q selected but no module registered %q", rc.Store, storeService)
		}
		store, ok := svc.(transcript.Store)
		if !ok {
			return nil, nil, nil, fmt.Errorf("relay: service %q is not a transcript store", storeService)
		}
		snapshotFn := func(context.Context) error {
			return transcript.SaveFile(bans, banPath)
		}
		emergencyFn := func() error {
			return transcript.SaveFile(bans, banCrashPath)
		}
		return store, snapshotFn, emergencyFn, nil
	}

	mem := transcript.NewMemoryStore(rc.MemoryLimit)
	restoreSnapshot(mem, filepath.Join(dataDir, transcriptFile), logger)

	snapshotFn := func(context.Context) error {
		if err := transcript.SaveFile(mem, filepath.Join(dataDir, transcriptFile)); err != nil {
			return err
		}
		return transcript.SaveFile(bans, banPath)
	}
	emergencyFn := func() error {
		err := transcript.SaveFile(mem, filepath.Join(dataDir, transcriptCrashFile))
		if banErr := transcript.SaveFile(bans, banCrashPath); err == nil {
			err = banErr
		}
		return err
	}
	return mem, snapshotFn, emergencyFn, nil
}

// restoreSnapshot loads a gob snapshot if one exists. A corrupt file means
// starting fresh, never a refused startup.
func restoreSnapshot(s transcript.Snapshotter, path string, logger *slog.Logger) {
	err := transcript.LoadFile(s, path)
	switch {
	case err == nil:
	case errors.Is(err, transcript.ErrCorruptSnapshot):
		logger.Warn("snapshot corrupt, starting fresh", "path", path)
	default:
		logger.Warn("snapshot restore failed, starting fresh", "path", path, "error", err)
	}
}
