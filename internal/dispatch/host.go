package dispatch

import (
	"context"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/plugin"
	"github.com/matheus3301/wppbot/internal/state"
	"go.uber.org/zap"
)

var _ plugin.Host = (*Dispatcher)(nil)

// Send delivers text, logging failures. Handlers may ignore the error.
func (d *Dispatcher) Send(ctx context.Context, to, text string) error {
	if err := d.sender.Send(ctx, to, text); err != nil {
		d.logger.Warn("reply not delivered", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}

// Commands lists the registered plugins ordered by command name.
func (d *Dispatcher) Commands() []plugin.Info {
	list := d.registry.List()
	out := make([]plugin.Info, 0, len(list))
	for _, p := range list {
		out = append(out, p.Info())
	}
	return out
}

// Reload rescans every plugin source and checkpoints the new command set.
func (d *Dispatcher) Reload(ctx context.Context) plugin.LoadResult {
	res := d.registry.Load(ctx)
	_ = d.state.Flush(ctx)
	if d.bus != nil {
		d.bus.Emit(bus.KindPluginsLoaded, res)
	}
	return res
}

// Summary reports the state counters plus the registered plugin count.
func (d *Dispatcher) Summary() state.Summary {
	s := d.state.Summary()
	s.TotalPlugins = d.registry.Len()
	return s
}

// Prefix returns the primary command prefix.
func (d *Dispatcher) Prefix() string { return d.cfg.Prefix }
