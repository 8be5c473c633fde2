package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Candidate is one plugin a source offers. Build is invoked in isolation by
// the registry.
type Candidate struct {
	Origin string
	Build  func() (*Plugin, error)
}

// Source discovers plugin candidates.
type Source interface {
	Name() string
	Scan(ctx context.Context) ([]Candidate, error)
}

// Constructor builds a compiled-in plugin.
type Constructor struct {
	Name string
	New  func() (*Plugin, error)
}

// StaticSource offers compiled-in plugins.
type StaticSource struct {
	name         string
	constructors []Constructor
}

// NewStaticSource creates a source over constructors. Candidate origins are
// "<name>/<constructor name>".
func NewStaticSource(name string, constructors ...Constructor) *StaticSource {
	return &StaticSource{name: name, constructors: constructors}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Scan(_ context.Context) ([]Candidate, error) {
	out := make([]Candidate, 0, len(s.constructors))
	for _, c := range s.constructors {
		out = append(out, Candidate{Origin: s.name + "/" + c.Name, Build: c.New})
	}
	return out, nil
}

// ReplyExt is the file extension DirSource picks up.
const ReplyExt = ".toml"

// replyFile is the on-disk form of a reply plugin.
type replyFile struct {
	Command     string `toml:"command"`
	Description string `toml:"description"`
	Category    string `toml:"category"`
	Usage       string `toml:"usage"`
	Reply       string `toml:"reply"`
}

// ErrEmptyReply is returned for reply plugins without a reply template.
var ErrEmptyReply = errors.New("empty reply")

// DirSource loads reply plugins from *.toml files in a directory. Each file
// declares a command and a reply template; the placeholders {args}, {name},
// {sender} and {chat} are substituted at run time.
type DirSource struct {
	dir string
}

// NewDirSource creates a source reading dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) Name() string { return d.dir }

// Dir returns the scanned directory.
func (d *DirSource) Dir() string { return d.dir }

// Scan lists the reply files in the directory, creating it when missing.
func (d *DirSource) Scan(ctx context.Context) ([]Candidate, error) {
	if err := os.MkdirAll(d.dir, 0700); err != nil {
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ReplyExt) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(d.dir, name)
		out = append(out, Candidate{
			Origin: name,
			Build:  func() (*Plugin, error) { return loadReplyFile(path) },
		})
	}
	return out, nil
}

func loadReplyFile(path string) (*Plugin, error) {
	var f replyFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if strings.TrimSpace(f.Command) == "" {
		return nil, ErrMissingCommand
	}
	if strings.TrimSpace(f.Reply) == "" {
		return nil, ErrEmptyReply
	}
	tmpl := f.Reply
	return &Plugin{
		Command:     f.Command,
		Description: f.Description,
		Category:    f.Category,
		Usage:       f.Usage,
		Handler: func(ctx context.Context, c *Context) error {
			return c.Reply(ctx, renderReply(tmpl, c))
		},
	}, nil
}

func renderReply(tmpl string, c *Context) string {
	name := ""
	if c.Command != nil {
		name = c.Command.Name
	}
	return strings.NewReplacer(
		"{args}", c.ArgString(),
		"{name}", name,
		"{sender}", c.Record.Participant,
		"{chat}", c.Record.From,
	).Replace(tmpl)
}
