package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	calls   int
	entries map[string]state.CommandEntry
}

func (c *fakeCatalog) ReplaceCommands(entries map[string]state.CommandEntry) {
	c.calls++
	c.entries = entries
}

func noop(context.Context, *Context) error { return nil }

func okPlugin(name string) Constructor {
	return Constructor{Name: name, New: func() (*Plugin, error) {
		return &Plugin{Command: name, Description: name + " command", Handler: noop}, nil
	}}
}

func mixedSource() *StaticSource {
	return NewStaticSource("builtin",
		okPlugin("ping"),
		okPlugin("menu"),
		Constructor{Name: "nameless", New: func() (*Plugin, error) {
			return &Plugin{Handler: noop}, nil
		}},
		Constructor{Name: "handlerless", New: func() (*Plugin, error) {
			return &Plugin{Command: "broken"}, nil
		}},
		Constructor{Name: "erroring", New: func() (*Plugin, error) {
			return nil, errors.New("missing api key")
		}},
		Constructor{Name: "panicking", New: func() (*Plugin, error) {
			panic("boom")
		}},
	)
}

func TestLoadIsolatesFailures(t *testing.T) {
	cat := &fakeCatalog{}
	r := NewRegistry(cat, zap.NewNop(), mixedSource())

	res := r.Load(context.Background())

	assert.Equal(t, LoadResult{Loaded: 2, Failed: 4, Total: 6}, res)
	assert.Equal(t, 2, r.Len())
	_, ok := r.Lookup("ping")
	assert.True(t, ok)
	_, ok = r.Lookup("broken")
	assert.False(t, ok)

	require.Len(t, r.Errors(), 4)
	var lerr *LoadError
	require.True(t, errors.As(r.Errors()[0], &lerr))
	assert.Equal(t, "builtin/nameless", lerr.Origin)
	assert.True(t, errors.Is(r.Errors()[0], ErrMissingCommand))
	assert.True(t, errors.Is(r.Errors()[1], ErrMissingHandler))

	require.Equal(t, 1, cat.calls)
	assert.Len(t, cat.entries, 2)
	assert.Equal(t, "builtin/ping", cat.entries["ping"].SourceFile)
	assert.Equal(t, DefaultCategory, cat.entries["ping"].Category)
}

func TestLoadIsIdempotent(t *testing.T) {
	cat := &fakeCatalog{}
	r := NewRegistry(cat, zap.NewNop(), mixedSource())

	first := r.Load(context.Background())
	firstList := commandNames(r.List())
	second := r.Load(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, firstList, commandNames(r.List()))
	assert.Equal(t, 2, cat.calls)
	assert.Len(t, cat.entries, 2)
}

func TestLoadLastWins(t *testing.T) {
	first := NewStaticSource("a", okPlugin("ping"))
	second := NewStaticSource("b", Constructor{Name: "pong", New: func() (*Plugin, error) {
		return &Plugin{Command: "PING", Description: "override", Handler: noop}, nil
	}})
	r := NewRegistry(nil, nil, first, second)

	res := r.Load(context.Background())

	assert.Equal(t, LoadResult{Loaded: 2, Failed: 0, Total: 2}, res)
	p, ok := r.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "override", p.Description)
	assert.Equal(t, "b/pong", p.Origin)
}

func TestLookupEmptyName(t *testing.T) {
	r := NewRegistry(nil, nil, NewStaticSource("b", Constructor{Name: "blank", New: func() (*Plugin, error) {
		return &Plugin{Command: " ", Handler: noop}, nil
	}}))
	r.Load(context.Background())

	_, ok := r.Lookup("")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestInfoDefaults(t *testing.T) {
	p := &Plugin{Command: "ping"}
	assert.Equal(t, Info{Command: "ping", Description: "No description", Category: DefaultCategory, Usage: "ping"}, p.Info())
}

type recordingHost struct {
	sent []string
	to   []string
}

func (h *recordingHost) Send(_ context.Context, to, text string) error {
	h.to = append(h.to, to)
	h.sent = append(h.sent, text)
	return nil
}
func (h *recordingHost) Commands() []Info                   { return nil }
func (h *recordingHost) Reload(context.Context) LoadResult { return LoadResult{} }
func (h *recordingHost) Summary() state.Summary             { return state.Summary{} }
func (h *recordingHost) Prefix() string                     { return "#" }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func TestDirSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")
	src := NewDirSource(dir)

	// Missing dir is created and yields nothing.
	cands, err := src.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cands)

	writeFile(t, dir, "hola.toml", `
command = "hola"
description = "Greets the sender"
category = "fun"
reply = "Hola {sender}! ({name} {args})"
`)
	writeFile(t, dir, "broken.toml", `command = "x`)
	writeFile(t, dir, "noreply.toml", `command = "silent"`)
	writeFile(t, dir, "notes.txt", `ignored`)

	r := NewRegistry(nil, nil, src)
	res := r.Load(context.Background())
	assert.Equal(t, LoadResult{Loaded: 1, Failed: 2, Total: 3}, res)

	p, ok := r.Lookup("hola")
	require.True(t, ok)
	assert.Equal(t, "hola.toml", p.Origin)

	host := &recordingHost{}
	parser := command.NewParser([]string{"#"})
	c := &Context{
		Record:  &inbound.Record{From: "120@g.us", Participant: "555@s.whatsapp.net", Timestamp: time.Now()},
		Command: parser.Parse("#hola a b"),
		Host:    host,
	}
	require.NoError(t, p.Handler(context.Background(), c))
	assert.Equal(t, []string{"Hola 555@s.whatsapp.net! (hola a b)"}, host.sent)
	assert.Equal(t, []string{"120@g.us"}, host.to)
}

func TestContextArgs(t *testing.T) {
	c := &Context{Command: command.NewParser([]string{"#"}).Parse("#send me hi")}
	assert.Equal(t, "me", c.Arg(0))
	assert.Equal(t, "hi", c.Arg(1))
	assert.Equal(t, "", c.Arg(5))
	assert.Equal(t, "me hi", c.ArgString())
}

func commandNames(ps []*Plugin) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Command)
	}
	return out
}
