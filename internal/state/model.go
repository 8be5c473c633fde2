package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// UserRecord tracks activity for one participant.
type UserRecord struct {
	ID           string    `json:"id"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	MessageCount int64     `json:"messageCount"`
	CommandCount int64     `json:"commandCount"`
}

// GroupRecord tracks activity for one group conversation.
type GroupRecord struct {
	ID           string         `json:"id"`
	FirstSeen    time.Time      `json:"firstSeen"`
	LastActivity time.Time      `json:"lastActivity"`
	MessageCount int64          `json:"messageCount"`
	Participants ParticipantSet `json:"participants"`
}

// CommandEntry describes a loaded plugin in the persisted command registry.
type CommandEntry struct {
	SourceFile  string    `json:"file"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Usage       string    `json:"usage"`
	LoadedAt    time.Time `json:"loadTime"`
}

// Stats are process-lifetime aggregates.
type Stats struct {
	TotalMessages int64     `json:"totalMessages"`
	TotalCommands int64     `json:"totalCommands"`
	StartTime     time.Time `json:"startTime"`
}

// Document is the on-disk shape of the state file.
type Document struct {
	Commands map[string]CommandEntry `json:"commands"`
	Users    map[string]*UserRecord  `json:"users"`
	Groups   map[string]*GroupRecord `json:"groups"`
	Settings map[string]any          `json:"settings"`
	Stats    Stats                   `json:"stats"`
}

// NewDocument returns an empty state started at now.
func NewDocument(now time.Time) *Document {
	return &Document{
		Commands: make(map[string]CommandEntry),
		Users:    make(map[string]*UserRecord),
		Groups:   make(map[string]*GroupRecord),
		Settings: make(map[string]any),
		Stats:    Stats{StartTime: now},
	}
}

// fill replaces nil collections left by partial or legacy files.
func (d *Document) fill(now time.Time) {
	if d.Commands == nil {
		d.Commands = make(map[string]CommandEntry)
	}
	if d.Users == nil {
		d.Users = make(map[string]*UserRecord)
	}
	if d.Groups == nil {
		d.Groups = make(map[string]*GroupRecord)
	}
	if d.Settings == nil {
		d.Settings = make(map[string]any)
	}
	if d.Stats.StartTime.IsZero() {
		d.Stats.StartTime = now
	}
	for id, u := range d.Users {
		if u == nil {
			delete(d.Users, id)
		}
	}
	for id, g := range d.Groups {
		if g == nil {
			delete(d.Groups, id)
			continue
		}
		if g.Participants == nil {
			g.Participants = make(ParticipantSet)
		}
	}
}

// ParticipantSet is an unordered set of participant identifiers. It is
// written as a sorted JSON array.
//
// Decoding also accepts the legacy object form ({"id": ...}), where only the
// keys are kept. That shape was produced by older releases that serialized
// the set as a plain object; it is migrated on load and never written back.
type ParticipantSet map[string]struct{}

// Add inserts id into the set.
func (s ParticipantSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s ParticipantSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s ParticipantSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MarshalJSON writes the set as a sorted array.
func (s ParticipantSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts an array of ids, a legacy object keyed by id, or null.
func (s *ParticipantSet) UnmarshalJSON(data []byte) error {
	set := make(ParticipantSet)
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		for _, id := range ids {
			set.Add(id)
		}
		*s = set
		return nil
	}
	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("participants: expected array or object: %w", err)
	}
	for id := range legacy {
		set.Add(id)
	}
	*s = set
	return nil
}
