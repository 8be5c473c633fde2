package plugin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/state"
	"go.uber.org/zap"
)

// LoadError reports one candidate that could not be registered.
type LoadError struct {
	Origin string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load plugin %s: %v", e.Origin, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var (
	// ErrMissingCommand is returned for candidates without a command name.
	ErrMissingCommand = errors.New("missing command name")
	// ErrMissingHandler is returned for candidates without a handler.
	ErrMissingHandler = errors.New("missing handler")
)

// LoadResult counts the outcome of a registry load.
type LoadResult struct {
	Loaded int `json:"loaded"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Catalog receives the persisted view of the registry after each load.
type Catalog interface {
	ReplaceCommands(entries map[string]state.CommandEntry)
}

// Registry maps command names to plugins. It is not safe for concurrent use;
// the router goroutine owns it.
type Registry struct {
	sources []Source
	catalog Catalog
	logger  *zap.Logger
	now     func() time.Time
	plugins map[string]*Plugin
	errs    []error
}

// NewRegistry creates an empty registry over sources. catalog may be nil.
func NewRegistry(catalog Catalog, logger *zap.Logger, sources ...Source) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sources: sources,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
		plugins: make(map[string]*Plugin),
	}
}

// Load clears the registry and rescans every source. A failing candidate is
// skipped and counted; it never stops the others from loading.
func (r *Registry) Load(ctx context.Context) LoadResult {
	clear(r.plugins)
	r.errs = nil
	var res LoadResult
	entries := make(map[string]state.CommandEntry)

	for _, src := range r.sources {
		candidates, err := src.Scan(ctx)
		if err != nil {
			r.logger.Error("plugin source scan failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		for _, cand := range candidates {
			res.Total++
			p, err := build(cand)
			if err != nil {
				res.Failed++
				r.errs = append(r.errs, err)
				r.logger.Warn("plugin skipped", zap.String("origin", cand.Origin), zap.Error(err))
				continue
			}
			if prev, ok := r.plugins[p.Command]; ok {
				r.logger.Warn("plugin command overridden",
					zap.String("command", p.Command),
					zap.String("previous", prev.Origin),
					zap.String("origin", p.Origin))
			}
			r.plugins[p.Command] = p
			info := p.Info()
			entries[p.Command] = state.CommandEntry{
				SourceFile:  p.Origin,
				Description: info.Description,
				Category:    info.Category,
				Usage:       info.Usage,
				LoadedAt:    r.now(),
			}
			res.Loaded++
			r.logger.Debug("plugin loaded", zap.String("command", p.Command), zap.String("origin", p.Origin))
		}
	}

	if r.catalog != nil {
		r.catalog.ReplaceCommands(entries)
	}
	r.logger.Info("plugins loaded",
		zap.Int("loaded", res.Loaded),
		zap.Int("failed", res.Failed),
		zap.Int("total", res.Total),
		zap.Int("registered", len(r.plugins)))
	return res
}

// build runs a candidate constructor, turning errors, panics and invalid
// plugins into a *LoadError.
func build(cand Candidate) (p *Plugin, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = &LoadError{Origin: cand.Origin, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if cand.Build == nil {
		return nil, &LoadError{Origin: cand.Origin, Err: ErrMissingHandler}
	}
	p, err = cand.Build()
	if err != nil {
		return nil, &LoadError{Origin: cand.Origin, Err: err}
	}
	if p == nil {
		return nil, &LoadError{Origin: cand.Origin, Err: ErrMissingHandler}
	}
	p.Command = strings.ToLower(strings.TrimSpace(p.Command))
	if p.Command == "" {
		return nil, &LoadError{Origin: cand.Origin, Err: ErrMissingCommand}
	}
	if p.Handler == nil {
		return nil, &LoadError{Origin: cand.Origin, Err: ErrMissingHandler}
	}
	p.Origin = cand.Origin
	return p, nil
}

// Lookup returns the plugin bound to name. An empty name never matches.
func (r *Registry) Lookup(name string) (*Plugin, bool) {
	if name == "" {
		return nil, false
	}
	p, ok := r.plugins[name]
	return p, ok
}

// List returns the registered plugins ordered by command name.
func (r *Registry) List() []*Plugin {
	out := make([]*Plugin, 0, len(r.plugins))
	for _, name := range slices.Sorted(maps.Keys(r.plugins)) {
		out = append(out, r.plugins[name])
	}
	return out
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.plugins) }

// Errors returns the candidate failures of the last load.
func (r *Registry) Errors() []error { return slices.Clone(r.errs) }
