// Package state owns the bot's persisted counters: users, groups, the
// command registry, settings and aggregate stats.
//
// A Store is not safe for concurrent use. The router goroutine is its only
// caller; plugin handlers reach it through that goroutine as well.
package state

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/matheus3301/wppbot/internal/inbound"
	"go.uber.org/zap"
)

// DefaultCheckpointEvery is the number of messages between automatic flushes.
const DefaultCheckpointEvery = 10

// Store holds the in-memory state and flushes it through a Persister.
type Store struct {
	persister       Persister
	logger          *zap.Logger
	now             func() time.Time
	checkpointEvery int64
	doc             *Document
}

// Option configures a Store.
type Option func(*Store)

// WithCheckpointEvery sets the flush interval in messages. Values below 1 disable
// message-count checkpoints.
func WithCheckpointEvery(n int) Option {
	return func(s *Store) { s.checkpointEvery = int64(n) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store with an empty default state. Call Load to restore the
// latest snapshot.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persister:       p,
		logger:          zap.NewNop(),
		now:             time.Now,
		checkpointEvery: DefaultCheckpointEvery,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc = NewDocument(s.now())
	return s
}

// Load restores the latest snapshot. When none exists an empty state is
// created and saved. When the snapshot cannot be read the store falls back to
// an empty state and returns the error for logging; the store stays usable.
func (s *Store) Load(ctx context.Context) error {
	doc, err := s.persister.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		s.doc = NewDocument(s.now())
		s.logger.Info("state initialized")
		return s.Flush(ctx)
	case err != nil:
		s.doc = NewDocument(s.now())
		if q, ok := s.persister.(interface {
			Quarantine(time.Time) (string, error)
		}); ok {
			if dst, qerr := q.Quarantine(s.now()); qerr == nil {
				s.logger.Warn("unreadable state moved aside", zap.String("path", dst))
			}
		}
		s.logger.Error("state load failed, starting empty", zap.Error(err))
		return err
	}
	doc.fill(s.now())
	s.doc = doc
	s.logger.Info("state loaded",
		zap.Int("users", len(doc.Users)),
		zap.Int("groups", len(doc.Groups)),
		zap.Int64("total_messages", doc.Stats.TotalMessages))
	return nil
}

// Flush writes the whole state. On failure the in-memory state is kept for
// the next attempt.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.persister.Save(ctx, s.doc); err != nil {
		s.logger.Error("state flush failed", zap.Error(err))
		return err
	}
	s.logger.Debug("state flushed", zap.Int64("total_messages", s.doc.Stats.TotalMessages))
	return nil
}

// RecordMessage counts rec against the global stats, its sender and, for
// group messages, its group.
func (s *Store) RecordMessage(rec *inbound.Record) {
	now := s.now()
	s.doc.Stats.TotalMessages++

	u, ok := s.doc.Users[rec.Participant]
	if !ok {
		u = &UserRecord{ID: rec.Participant, FirstSeen: now, LastSeen: now}
		s.doc.Users[rec.Participant] = u
	}
	u.MessageCount++
	u.LastSeen = now
	if rec.IsCommand {
		u.CommandCount++
	}

	if rec.Chat != inbound.ChatGroup {
		return
	}
	g, ok := s.doc.Groups[rec.From]
	if !ok {
		g = &GroupRecord{ID: rec.From, FirstSeen: now, Participants: make(ParticipantSet)}
		s.doc.Groups[rec.From] = g
	}
	g.MessageCount++
	g.Participants.Add(rec.Participant)
	g.LastActivity = now
}

// IncrementCommands counts one dispatched command.
func (s *Store) IncrementCommands() {
	s.doc.Stats.TotalCommands++
}

// CheckpointDue reports whether the message count just reached a checkpoint.
func (s *Store) CheckpointDue() bool {
	if s.checkpointEvery < 1 {
		return false
	}
	n := s.doc.Stats.TotalMessages
	return n > 0 && n%s.checkpointEvery == 0
}

// ReplaceCommands swaps the persisted command registry for entries.
func (s *Store) ReplaceCommands(entries map[string]CommandEntry) {
	s.doc.Commands = maps.Clone(entries)
	if s.doc.Commands == nil {
		s.doc.Commands = make(map[string]CommandEntry)
	}
}

// Commands returns a copy of the persisted command registry.
func (s *Store) Commands() map[string]CommandEntry {
	return maps.Clone(s.doc.Commands)
}

// Stats returns the aggregate counters.
func (s *Store) Stats() Stats { return s.doc.Stats }

// User returns a copy of the user record for id.
func (s *Store) User(id string) (UserRecord, bool) {
	u, ok := s.doc.Users[id]
	if !ok {
		return UserRecord{}, false
	}
	return *u, true
}

// Users returns copies of all user records ordered by id.
func (s *Store) Users() []UserRecord {
	out := make([]UserRecord, 0, len(s.doc.Users))
	for _, id := range slices.Sorted(maps.Keys(s.doc.Users)) {
		out = append(out, *s.doc.Users[id])
	}
	return out
}

// Group returns a copy of the group record for id.
func (s *Store) Group(id string) (GroupRecord, bool) {
	g, ok := s.doc.Groups[id]
	if !ok {
		return GroupRecord{}, false
	}
	return copyGroup(g), true
}

// Groups returns copies of all group records ordered by id.
func (s *Store) Groups() []GroupRecord {
	out := make([]GroupRecord, 0, len(s.doc.Groups))
	for _, id := range slices.Sorted(maps.Keys(s.doc.Groups)) {
		out = append(out, copyGroup(s.doc.Groups[id]))
	}
	return out
}

// Setting returns a value from the free-form settings map.
func (s *Store) Setting(key string) (any, bool) {
	v, ok := s.doc.Settings[key]
	return v, ok
}

// SetSetting stores a value in the free-form settings map.
func (s *Store) SetSetting(key string, value any) {
	s.doc.Settings[key] = value
}

func copyGroup(g *GroupRecord) GroupRecord {
	c := *g
	c.Participants = maps.Clone(g.Participants)
	if c.Participants == nil {
		c.Participants = make(ParticipantSet)
	}
	return c
}

// ReadSnapshot opens the state file at path for inspection by another
// process. Nothing is created when the file is missing.
func ReadSnapshot(ctx context.Context, path string) (*Store, error) {
	fs := NewFileStore(path)
	doc, err := fs.Load(ctx)
	if err != nil {
		return nil, err
	}
	s := New(fs)
	doc.fill(s.now())
	s.doc = doc
	return s, nil
}
