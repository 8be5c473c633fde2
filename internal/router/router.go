// Package router is the bot's single worker. It consumes inbound batches from
// the bus and control tasks from a queue, one at a time, so the state store,
// the plugin registry and the dispatcher never run concurrently.
package router

import (
	"context"
	"errors"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/dispatch"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/state"
	"go.uber.org/zap"
)

// InboundBuffer is the bus subscription size. A full buffer drops batches,
// which the bus counts.
const InboundBuffer = 1024

// ErrStopped is returned by Submit after the worker has exited.
var ErrStopped = errors.New("router stopped")

// Dispatcher runs a parsed command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd *command.Parsed, rec *inbound.Record) dispatch.Outcome
}

// Task is work run on the router goroutine.
type Task func(ctx context.Context)

// Router is the sequential normalize, record, dispatch, checkpoint pipeline.
type Router struct {
	normalizer *inbound.Normalizer
	state      *state.Store
	dispatcher Dispatcher
	bus        *bus.Bus
	logger     *zap.Logger

	tasks  chan Task
	cancel context.CancelFunc
	done   chan struct{}
	sub    *bus.Subscription
}

// New creates a router. Call Start to begin consuming.
func New(n *inbound.Normalizer, st *state.Store, d Dispatcher, b *bus.Bus, logger *zap.Logger) *Router {
	return &Router{
		normalizer: n,
		state:      st,
		dispatcher: d,
		bus:        b,
		logger:     logger,
		tasks:      make(chan Task, 64),
		done:       make(chan struct{}),
	}
}

// Start subscribes to inbound batches and starts the worker.
func (r *Router) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.sub = r.bus.Open(bus.KindInbound, InboundBuffer)
	go r.loop(ctx)
}

// Stop stops the worker after the current item, then flushes the state.
func (r *Router) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Submit queues t to run on the worker. It blocks while the queue is full.
func (r *Router) Submit(t Task) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.tasks <- t:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Checkpoint queues a state flush.
func (r *Router) Checkpoint(reason string) error {
	return r.Submit(func(ctx context.Context) { r.flush(ctx, reason) })
}

func (r *Router) loop(ctx context.Context) {
	defer close(r.done)
	defer r.sub.Close()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case evt := <-r.sub.C:
			events, ok := evt.Payload.([]inbound.Event)
			if !ok {
				r.logger.Warn("unexpected inbound payload", zap.String("kind", evt.Kind))
				continue
			}
			r.HandleBatch(ctx, events)
		case t := <-r.tasks:
			t(ctx)
		}
	}
}

func (r *Router) shutdown() {
	// Tasks queued before Stop still run, under a fresh context.
	ctx := context.Background()
	r.drain(ctx)
	r.flush(ctx, "shutdown")
	s := r.state.Summary()
	r.logger.Info("router stopped",
		zap.Int64("total_messages", s.TotalMessages),
		zap.Int64("total_commands", s.TotalCommands),
		zap.Int("users", s.TotalUsers),
		zap.Int("groups", s.TotalGroups),
		zap.String("uptime", s.UptimeString()),
		zap.Int64("dropped_batches", r.sub.Dropped()))
}

func (r *Router) drain(ctx context.Context) {
	for {
		select {
		case t := <-r.tasks:
			t(ctx)
		default:
			return
		}
	}
}

// HandleBatch processes events in order.
func (r *Router) HandleBatch(ctx context.Context, events []inbound.Event) {
	for _, evt := range events {
		r.HandleEvent(ctx, evt)
	}
}

// HandleEvent runs one event through the pipeline. Malformed events are
// logged and dropped.
func (r *Router) HandleEvent(ctx context.Context, evt inbound.Event) {
	rec, err := r.normalizer.Normalize(evt)
	if err != nil {
		r.logger.Warn("dropping inbound event", zap.String("id", evt.ID), zap.Error(err))
		return
	}
	r.logRecord(rec)

	r.state.RecordMessage(rec)
	if rec.IsCommand {
		r.dispatcher.Dispatch(ctx, rec.Command, rec)
	}
	if r.state.CheckpointDue() {
		r.flush(ctx, "checkpoint")
	}
}

func (r *Router) logRecord(rec *inbound.Record) {
	fields := []zap.Field{
		zap.String("id", rec.ID),
		zap.String("chat", rec.From),
		zap.String("chat_kind", string(rec.Chat)),
		zap.String("participant", rec.Participant),
		zap.String("push_name", rec.PushName),
		zap.String("type", string(rec.Type)),
	}
	if rec.IsCommand {
		r.logger.Info("command received", append(fields,
			zap.String("command", rec.Command.Prefix+rec.Command.Name),
			zap.Strings("args", rec.Command.Args))...)
		return
	}
	r.logger.Debug("message received", append(fields, zap.Int("text_len", len(rec.Text)))...)
}

func (r *Router) flush(ctx context.Context, reason string) {
	if err := r.state.Flush(ctx); err != nil {
		r.logger.Error("state flush failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	r.bus.Emit(bus.KindStateFlushed, reason)
}
