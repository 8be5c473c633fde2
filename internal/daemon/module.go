// Package daemon wires the bot together with fx and drives its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/dispatch"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/logging"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/plugin"
	"github.com/matheus3301/wppbot/internal/plugins"
	"github.com/matheus3301/wppbot/internal/router"
	"github.com/matheus3301/wppbot/internal/scheduler"
	"github.com/matheus3301/wppbot/internal/session"
	"github.com/matheus3301/wppbot/internal/state"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/store"
	"github.com/matheus3301/wppbot/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session and configuration passed to the module.
type Params struct {
	SessionName string
	Config      *config.Config
	SocketPath  string    // optional override for testing; empty = use default
	PairOutput  io.Writer // where QR codes are drawn; nil = stderr
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideJournal,
			provideState,
			provideParser,
			provideRegistry,
			provideAdapter,
			provideSender,
			provideDispatcher,
			provideRouter,
			provideScheduler,
			provideWatcher,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, p.Config.Validate()
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideJournal depends on the lock so a second daemon fails before
// touching any file.
func provideJournal(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	path := session.JournalPath(p.SessionName)
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("journal ready",
		zap.String("path", path),
		zap.Uint("version", result.Version),
		zap.Bool("migrated", result.Changed))
	return db, nil
}

func provideState(p Params, _ *lock.Lock, cfg *config.Config, logger *zap.Logger) *state.Store {
	return state.New(
		state.NewFileStore(session.StatePath(p.SessionName)),
		state.WithCheckpointEvery(cfg.State.CheckpointEvery),
		state.WithLogger(logger.Named("state")),
	)
}

func provideParser(cfg *config.Config) *command.Parser {
	return command.NewParser(cfg.Bot.Prefixes)
}

func pluginDir(p Params, cfg *config.Config) string {
	if cfg.Plugins.Dir != "" {
		return cfg.Plugins.Dir
	}
	return session.PluginDir(p.SessionName)
}

func provideRegistry(p Params, cfg *config.Config, st *state.Store, logger *zap.Logger) (*plugin.Registry, error) {
	dir := pluginDir(p, cfg)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}
	return plugin.NewRegistry(st, logger.Named("plugins"), plugins.Builtin(), plugin.NewDirSource(dir)), nil
}

func provideAdapter(p Params, _ *lock.Lock, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), session.SessionDBPath(p.SessionName), cfg.Bot.DeviceName, b, logger)
}

func provideSender(db *store.DB, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, adapter, b, logger.Named("outbox"))
}

func provideDispatcher(cfg *config.Config, parser *command.Parser, reg *plugin.Registry, st *state.Store, sender *outbox.Sender, db *store.DB, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(reg, st, sender, dispatch.Config{
		Timeout:      cfg.Bot.HandlerTimeout.Std(),
		NotFound:     cfg.Messages.NotFound,
		HandlerError: cfg.Messages.HandlerError,
		Prefix:       parser.Prefixes()[0],
	},
		dispatch.WithJournal(db),
		dispatch.WithBus(b),
		dispatch.WithLogger(logger.Named("dispatch")),
	)
}

func provideRouter(parser *command.Parser, st *state.Store, d *dispatch.Dispatcher, b *bus.Bus, logger *zap.Logger) *router.Router {
	return router.New(inbound.NewNormalizer(parser), st, d, b, logger.Named("router"))
}

func provideScheduler(logger *zap.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(logger)
}

// provideWatcher returns nil when watching is disabled.
func provideWatcher(p Params, cfg *config.Config, rt *router.Router, d *dispatch.Dispatcher, logger *zap.Logger) *plugin.Watcher {
	if !cfg.Plugins.Watch {
		return nil
	}
	reload := func() {
		err := rt.Submit(func(ctx context.Context) {
			res := d.Reload(ctx)
			logger.Info("plugins reloaded after change",
				zap.Int("loaded", res.Loaded), zap.Int("failed", res.Failed))
		})
		if err != nil {
			logger.Warn("plugin reload not queued", zap.Error(err))
		}
	}
	return plugin.NewWatcher(pluginDir(p, cfg), plugin.DefaultDebounce, reload, logger.Named("watch"))
}

// provideServer takes the lock first: binding removes a stale socket, which
// must never be a running daemon's.
func provideServer(p Params, _ *lock.Lock, m *status.Machine, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	return NewServer(p, m, b, logger.Named("grpc"))
}

type lifecycleParams struct {
	fx.In

	Params     Params
	Config     *config.Config
	Lock       *lock.Lock
	Journal    *store.DB
	State      *state.Store
	Dispatcher *dispatch.Dispatcher
	Router     *router.Router
	Scheduler  *scheduler.Scheduler
	Watcher    *plugin.Watcher
	Adapter    *wa.Adapter
	Server     *Server
	Machine    *status.Machine
	Bus        *bus.Bus
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, in lifecycleParams) {
	logger := in.Logger
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// An unreadable snapshot is moved aside and the bot starts empty.
			_ = in.State.Load(ctx)

			// The router is not running yet, so loading here is race free.
			res := in.Dispatcher.Reload(ctx)
			logger.Info("plugins loaded",
				zap.Int("loaded", res.Loaded), zap.Int("failed", res.Failed), zap.Int("total", res.Total))

			in.Router.Start(runCtx)

			handler := wa.NewEventHandler(in.Bus, in.Machine, logger.Named("wa"))
			in.Adapter.RegisterEventHandler(handler.Handle)

			go func() {
				if err := in.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if every := in.Config.State.FlushInterval.Std(); every > 0 {
				err := in.Scheduler.Every(scheduler.CheckpointJob, every, func() {
					if err := in.Router.Checkpoint("timer"); err != nil {
						logger.Debug("timer checkpoint skipped", zap.Error(err))
					}
				})
				if err != nil {
					return err
				}
			}
			in.Scheduler.Start()

			if in.Watcher != nil {
				if err := in.Watcher.Start(runCtx); err != nil {
					logger.Warn("plugin watcher disabled", zap.Error(err))
				}
			}

			connect(runCtx, in)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = in.Machine.Transition(status.Stopping)
			cancel()
			if in.Watcher != nil {
				in.Watcher.Stop()
			}
			if err := in.Scheduler.Shutdown(); err != nil {
				logger.Warn("scheduler shutdown", zap.Error(err))
			}
			// Runs queued tasks, flushes the state and logs the final summary.
			in.Router.Stop()
			if err := in.Adapter.Close(); err != nil {
				logger.Warn("error closing WhatsApp store", zap.Error(err))
			}
			in.Server.Stop(ctx)
			if err := in.Journal.Close(); err != nil {
				logger.Warn("error closing journal", zap.Error(err))
			}
			if err := in.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// connect reconnects with stored credentials or starts QR pairing.
func connect(ctx context.Context, in lifecycleParams) {
	logger := in.Logger
	if in.Adapter.IsLoggedIn() {
		_ = in.Machine.Transition(status.Connecting)
		go func() {
			if err := in.Adapter.Connect(); err != nil {
				logger.Error("auto-connect failed", zap.Error(err))
				_ = in.Machine.Transition(status.Error)
			}
		}()
		return
	}

	logger.Info("no credentials found, pairing required")
	_ = in.Machine.Transition(status.AuthRequired)
	out := in.Params.PairOutput
	if out == nil {
		out = os.Stderr
	}
	go func() {
		err := in.Adapter.Pair(ctx, out)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
		default:
			logger.Error("pairing failed", zap.Error(err))
			_ = in.Machine.Transition(status.Error)
		}
	}()
}
