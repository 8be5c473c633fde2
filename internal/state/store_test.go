package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPersister keeps the last saved document in memory.
type countingPersister struct {
	saves   int
	last    *Document
	loadErr error
	saveErr error
}

func (p *countingPersister) Load(context.Context) (*Document, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.last == nil {
		return nil, ErrNoSnapshot
	}
	return p.last, nil
}

func (p *countingPersister) Save(_ context.Context, doc *Document) error {
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.last = doc
	return nil
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func normalize(t *testing.T, evt inbound.Event) *inbound.Record {
	t.Helper()
	n := inbound.NewNormalizer(command.NewParser([]string{"#", "-", "!"}))
	rec, err := n.Normalize(evt)
	require.NoError(t, err)
	return rec
}

func groupMessage(t *testing.T, group, sender, text string) *inbound.Record {
	return normalize(t, inbound.Event{ID: "m", ChatID: group, SenderID: sender, Payload: inbound.Text{Body: text}})
}

func directMessage(t *testing.T, from, text string) *inbound.Record {
	return normalize(t, inbound.Event{ID: "m", ChatID: from, Payload: inbound.Text{Body: text}})
}

func TestRecordDirectPlainText(t *testing.T) {
	s := New(&countingPersister{}, WithClock(fixedClock()))

	s.RecordMessage(directMessage(t, "51987654321@s.whatsapp.net", "hello"))

	u, ok := s.User("51987654321@s.whatsapp.net")
	require.True(t, ok)
	assert.EqualValues(t, 1, u.MessageCount)
	assert.EqualValues(t, 0, u.CommandCount)
	assert.EqualValues(t, 1, s.Stats().TotalMessages)
	assert.Empty(t, s.Groups())
}

func TestRecordGroupCommand(t *testing.T) {
	s := New(&countingPersister{}, WithClock(fixedClock()))

	s.RecordMessage(groupMessage(t, "120@g.us", "555@g.us-member", "#ping"))
	s.RecordMessage(groupMessage(t, "120@g.us", "555@g.us-member", "again"))
	s.RecordMessage(groupMessage(t, "120@g.us", "777@s.whatsapp.net", "hi"))

	u, ok := s.User("555@g.us-member")
	require.True(t, ok)
	assert.EqualValues(t, 2, u.MessageCount)
	assert.EqualValues(t, 1, u.CommandCount)

	g, ok := s.Group("120@g.us")
	require.True(t, ok)
	assert.EqualValues(t, 3, g.MessageCount)
	assert.Equal(t, []string{"555@g.us-member", "777@s.whatsapp.net"}, g.Participants.Sorted())
	assert.False(t, g.LastActivity.IsZero())
}

func TestGroupCopyIsDetached(t *testing.T) {
	s := New(&countingPersister{})
	s.RecordMessage(groupMessage(t, "120@g.us", "a@s.whatsapp.net", "hi"))

	g, _ := s.Group("120@g.us")
	g.Participants.Add("intruder@s.whatsapp.net")

	again, _ := s.Group("120@g.us")
	assert.False(t, again.Participants.Has("intruder@s.whatsapp.net"))
}

func TestCheckpointDue(t *testing.T) {
	s := New(&countingPersister{})

	var due []int
	for i := 1; i <= 21; i++ {
		s.RecordMessage(directMessage(t, "1@s.whatsapp.net", "x"))
		if s.CheckpointDue() {
			due = append(due, i)
		}
	}
	assert.Equal(t, []int{10, 20}, due)
}

func TestCheckpointConfigurable(t *testing.T) {
	s := New(&countingPersister{}, WithCheckpointEvery(3))
	for i := 0; i < 3; i++ {
		s.RecordMessage(directMessage(t, "1@s.whatsapp.net", "x"))
	}
	assert.True(t, s.CheckpointDue())

	off := New(&countingPersister{}, WithCheckpointEvery(0))
	off.RecordMessage(directMessage(t, "1@s.whatsapp.net", "x"))
	assert.False(t, off.CheckpointDue())
}

func TestLoadWithoutSnapshotSavesDefault(t *testing.T) {
	p := &countingPersister{}
	s := New(p, WithClock(fixedClock()))

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 1, p.saves)
	assert.Equal(t, fixedClock()(), s.Stats().StartTime)
}

func TestLoadFailureFallsBackToEmpty(t *testing.T) {
	p := &countingPersister{loadErr: errors.New("disk on fire")}
	s := New(p)
	s.RecordMessage(directMessage(t, "1@s.whatsapp.net", "x"))

	err := s.Load(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 0, s.Stats().TotalMessages)
	assert.Empty(t, s.Users())
}

func TestFlushFailureKeepsState(t *testing.T) {
	p := &countingPersister{saveErr: errors.New("read-only fs")}
	s := New(p)
	s.RecordMessage(directMessage(t, "1@s.whatsapp.net", "x"))

	require.Error(t, s.Flush(context.Background()))
	assert.EqualValues(t, 1, s.Stats().TotalMessages)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(NewFileStore(path))
	require.NoError(t, s.Load(context.Background()))

	s.RecordMessage(groupMessage(t, "120@g.us", "b@s.whatsapp.net", "#ping"))
	s.RecordMessage(groupMessage(t, "120@g.us", "a@s.whatsapp.net", "hi"))
	s.RecordMessage(directMessage(t, "c@s.whatsapp.net", "hello"))
	s.IncrementCommands()
	s.ReplaceCommands(map[string]CommandEntry{"ping": {SourceFile: "builtin/ping", Category: "utilities"}})
	require.NoError(t, s.Flush(context.Background()))

	loaded := New(NewFileStore(path))
	require.NoError(t, loaded.Load(context.Background()))

	assert.Equal(t, len(s.Users()), len(loaded.Users()))
	for _, u := range s.Users() {
		got, ok := loaded.User(u.ID)
		require.True(t, ok, u.ID)
		assert.Equal(t, u.MessageCount, got.MessageCount)
		assert.Equal(t, u.CommandCount, got.CommandCount)
		assert.True(t, u.LastSeen.Equal(got.LastSeen))
	}
	g, ok := loaded.Group("120@g.us")
	require.True(t, ok)
	assert.Equal(t, ParticipantSet{"a@s.whatsapp.net": {}, "b@s.whatsapp.net": {}}, g.Participants)
	assert.Equal(t, s.Stats().TotalCommands, loaded.Stats().TotalCommands)
	assert.Contains(t, loaded.Commands(), "ping")
}

func TestFlushWritesSortedParticipants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(NewFileStore(path))
	s.RecordMessage(groupMessage(t, "120@g.us", "z@s.whatsapp.net", "hi"))
	s.RecordMessage(groupMessage(t, "120@g.us", "a@s.whatsapp.net", "hi"))
	require.NoError(t, s.Flush(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw struct {
		Groups map[string]struct {
			Participants []string `json:"participants"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []string{"a@s.whatsapp.net", "z@s.whatsapp.net"}, raw.Groups["120@g.us"].Participants)

	for _, key := range []string{`"commands"`, `"users"`, `"groups"`, `"settings"`, `"stats"`} {
		assert.True(t, strings.Contains(string(data), key), key)
	}

	matches, _ := filepath.Glob(path + ".tmp.*")
	assert.Empty(t, matches, "temp files must not be left behind")
}

func TestLoadLegacyParticipants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{
  "commands": {},
  "users": {"a@s.whatsapp.net": {"id": "a@s.whatsapp.net", "firstSeen": "2024-05-01T10:00:00.000Z", "lastSeen": "2024-05-02T10:00:00.000Z", "messageCount": 4, "commandCount": 1}},
  "groups": {
    "1@g.us": {"id": "1@g.us", "firstSeen": "2024-05-01T10:00:00.000Z", "messageCount": 3, "participants": {}},
    "2@g.us": {"id": "2@g.us", "firstSeen": "2024-05-01T10:00:00.000Z", "messageCount": 2, "participants": {"a@s.whatsapp.net": true, "b@s.whatsapp.net": true}},
    "3@g.us": {"id": "3@g.us", "firstSeen": "2024-05-01T10:00:00.000Z", "messageCount": 1, "participants": ["a@s.whatsapp.net", "a@s.whatsapp.net"]}
  },
  "settings": {},
  "stats": {"totalMessages": 6, "totalCommands": 1, "startTime": "2024-05-01T09:00:00.000Z"}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	s := New(NewFileStore(path))
	require.NoError(t, s.Load(context.Background()))

	g1, _ := s.Group("1@g.us")
	assert.Empty(t, g1.Participants)
	g2, _ := s.Group("2@g.us")
	assert.Equal(t, []string{"a@s.whatsapp.net", "b@s.whatsapp.net"}, g2.Participants.Sorted())
	g3, _ := s.Group("3@g.us")
	assert.Equal(t, []string{"a@s.whatsapp.net"}, g3.Participants.Sorted())

	s.RecordMessage(groupMessage(t, "1@g.us", "c@s.whatsapp.net", "hi"))
	g1, _ = s.Group("1@g.us")
	assert.True(t, g1.Participants.Has("c@s.whatsapp.net"))
	assert.EqualValues(t, 7, s.Stats().TotalMessages)
}

func TestLoadCorruptFileIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := New(NewFileStore(path))
	err := s.Load(context.Background())

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "decode", perr.Op)

	matches, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, matches, 1)
	assert.Empty(t, s.Users())
}

func TestSettings(t *testing.T) {
	s := New(&countingPersister{})
	_, ok := s.Setting("lang")
	assert.False(t, ok)

	s.SetSetting("lang", "es")
	v, ok := s.Setting("lang")
	assert.True(t, ok)
	assert.Equal(t, "es", v)
}

func TestSummary(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start
	s := New(&countingPersister{}, WithClock(func() time.Time { return now }))
	s.RecordMessage(groupMessage(t, "120@g.us", "a@s.whatsapp.net", "#ping"))
	s.IncrementCommands()

	now = start.Add(26*time.Hour + 5*time.Minute + 30*time.Second)
	sum := s.Summary()

	assert.EqualValues(t, 1, sum.TotalMessages)
	assert.EqualValues(t, 1, sum.TotalCommands)
	assert.Equal(t, 1, sum.TotalUsers)
	assert.Equal(t, 1, sum.TotalGroups)
	assert.Equal(t, "26h 5m", sum.UptimeString())
}

func TestReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	_, err := ReadSnapshot(context.Background(), path)
	require.ErrorIs(t, err, ErrNoSnapshot)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "ReadSnapshot must not create the file")

	s := New(NewFileStore(path))
	s.RecordMessage(groupMessage(t, "120@g.us", "a@s.whatsapp.net", "#ping"))
	require.NoError(t, s.Flush(context.Background()))

	snap, err := ReadSnapshot(context.Background(), path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Stats().TotalMessages)
	assert.Len(t, snap.Groups(), 1)
	assert.Equal(t, 1, snap.Summary().TotalUsers)
}
