// Package dispatch runs a parsed command against the plugin registry and
// answers the user when the command is unknown or fails.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/plugin"
	"github.com/matheus3301/wppbot/internal/state"
	"github.com/matheus3301/wppbot/internal/store"
	"go.uber.org/zap"
)

// Sender delivers a text to a conversation.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// RunRecorder journals command runs.
type RunRecorder interface {
	RecordRun(r *store.CommandRun) error
}

// HandlerError wraps a failure raised by a plugin handler, including a
// recovered panic.
type HandlerError struct {
	Command string
	Err     error
	Panic   bool
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Outcome describes one dispatch. It is published on the bus as
// command.executed.
type Outcome struct {
	RunID    string
	Command  string
	Chat     string
	Sender   string
	Status   string // store.RunOK, store.RunFailed or store.RunNotFound
	Err      error
	Duration time.Duration
}

// Config holds the user-facing texts and limits.
type Config struct {
	// Timeout bounds each handler's context; 0 means no deadline.
	Timeout time.Duration
	// NotFound is sent for unknown commands.
	NotFound string
	// HandlerError is a format string receiving the command name and the
	// error message.
	HandlerError string
	// Prefix is shown in help texts.
	Prefix string
}

// Dispatcher invokes plugin handlers. It is also the plugin.Host handlers
// talk to. Like the registry and the state store it is driven by the router
// goroutine only.
type Dispatcher struct {
	registry *plugin.Registry
	state    *state.Store
	sender   Sender
	cfg      Config
	runs     RunRecorder
	bus      *bus.Bus
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJournal records every dispatch in r.
func WithJournal(r RunRecorder) Option {
	return func(d *Dispatcher) { d.runs = r }
}

// WithBus publishes outcomes and reloads on b.
func WithBus(b *bus.Bus) Option {
	return func(d *Dispatcher) { d.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher.
func New(reg *plugin.Registry, st *state.Store, sender Sender, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		state:    st,
		sender:   sender,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs cmd for rec. Unknown commands get the not-found reply; failing
// handlers get one error reply. Neither case is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *command.Parsed, rec *inbound.Record) Outcome {
	start := d.now()
	out := Outcome{
		RunID:   uuid.NewString(),
		Command: cmd.Name,
		Chat:    rec.From,
		Sender:  rec.Participant,
	}
	log := d.logger.With(
		zap.String("run_id", out.RunID),
		zap.String("command", cmd.Name),
		zap.String("chat", rec.From),
		zap.String("participant", rec.Participant))

	p, ok := d.registry.Lookup(cmd.Name)
	if !ok {
		out.Status = store.RunNotFound
		log.Info("command not found")
		_ = d.Send(ctx, rec.From, d.cfg.NotFound)
		d.finish(&out, cmd, start)
		return out
	}

	d.state.IncrementCommands()
	err := d.invoke(ctx, p, &plugin.Context{Record: rec, Command: cmd, State: d.state, Host: d})
	out.Duration = d.now().Sub(start)
	if err != nil {
		out.Status = store.RunFailed
		out.Err = err
		log.Error("command failed", zap.Error(err), zap.Duration("duration", out.Duration))
		_ = d.Send(ctx, rec.From, fmt.Sprintf(d.cfg.HandlerError, cmd.Name, err.Err.Error()))
	} else {
		out.Status = store.RunOK
		log.Info("command executed", zap.Duration("duration", out.Duration))
	}
	d.finish(&out, cmd, start)
	return out
}

// invoke runs the handler under the configured deadline, turning a panic
// into a *HandlerError.
func (d *Dispatcher) invoke(ctx context.Context, p *plugin.Plugin, pc *plugin.Context) (herr *HandlerError) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("handler panic", zap.String("command", p.Command), zap.ByteString("stack", debug.Stack()))
			herr = &HandlerError{Command: p.Command, Err: fmt.Errorf("panic: %v", r), Panic: true}
		}
	}()
	if err := p.Handler(ctx, pc); err != nil {
		return &HandlerError{Command: p.Command, Err: err}
	}
	return nil
}

func (d *Dispatcher) finish(out *Outcome, cmd *command.Parsed, start time.Time) {
	if out.Duration == 0 {
		out.Duration = d.now().Sub(start)
	}
	if d.runs != nil {
		run := &store.CommandRun{
			ID:         out.RunID,
			Command:    out.Command,
			ChatJID:    out.Chat,
			SenderJID:  out.Sender,
			Args:       strings.Join(cmd.Args, " "),
			Status:     out.Status,
			DurationMs: out.Duration.Milliseconds(),
			StartedAt:  start.UnixMilli(),
		}
		if out.Err != nil {
			run.ErrorMessage = out.Err.Error()
		}
		if err := d.runs.RecordRun(run); err != nil {
			d.logger.Warn("failed to journal command run", zap.Error(err))
		}
	}
	if d.bus != nil {
		d.bus.Emit(bus.KindCommandExecuted, *out)
	}
}
