package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/dispatch"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/plugin"
	"github.com/matheus3301/wppbot/internal/plugins"
	"github.com/matheus3301/wppbot/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memPersister keeps the last saved document as JSON.
type memPersister struct {
	saves int
	last  []byte
}

func (m *memPersister) Load(context.Context) (*state.Document, error) {
	if m.last == nil {
		return nil, state.ErrNoSnapshot
	}
	var doc state.Document
	return &doc, json.Unmarshal(m.last, &doc)
}

func (m *memPersister) Save(_ context.Context, doc *state.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.saves++
	m.last = data
	return nil
}

type sent struct{ to, text string }

type fakeSender struct{ sent []sent }

func (f *fakeSender) Send(_ context.Context, to, text string) error {
	f.sent = append(f.sent, sent{to, text})
	return nil
}

type fixture struct {
	r       *Router
	st      *state.Store
	persist *memPersister
	sender  *fakeSender
	bus     *bus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &memPersister{}
	st := state.New(p)
	reg := plugin.NewRegistry(st, zap.NewNop(), plugins.Builtin())
	reg.Load(context.Background())

	s := &fakeSender{}
	d := dispatch.New(reg, st, s, dispatch.Config{NotFound: "not found", HandlerError: "%s: %s", Prefix: "#"})
	b := bus.New()
	n := inbound.NewNormalizer(command.NewParser([]string{"#", "-", "!"}))
	return &fixture{r: New(n, st, d, b, zap.NewNop()), st: st, persist: p, sender: s, bus: b}
}

func direct(i int, text string) inbound.Event {
	return inbound.Event{
		ID:      "m" + string(rune('a'+i)),
		ChatID:  "5511@s.whatsapp.net",
		Payload: inbound.Text{Body: text},
		SentAt:  time.Now(),
	}
}

func TestCheckpointEveryTenMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		f.r.HandleEvent(ctx, direct(i, "hi"))
	}
	assert.Equal(t, 0, f.persist.saves, "no flush before the 10th message")

	f.r.HandleEvent(ctx, direct(10, "hi"))
	assert.Equal(t, 1, f.persist.saves, "10th message flushes")

	f.r.HandleEvent(ctx, direct(11, "hi"))
	assert.Equal(t, 1, f.persist.saves, "11th message does not flush")

	var doc state.Document
	require.NoError(t, json.Unmarshal(f.persist.last, &doc))
	assert.Equal(t, int64(10), doc.Stats.TotalMessages)
}

func TestGroupPingCommand(t *testing.T) {
	f := newFixture(t)

	f.r.HandleEvent(context.Background(), inbound.Event{
		ID:       "g1",
		ChatID:   "120@g.us",
		SenderID: "555@s.whatsapp.net",
		Payload:  inbound.Text{Body: "#ping"},
		SentAt:   time.Now(),
	})

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "120@g.us", f.sender.sent[0].to)
	assert.Contains(t, f.sender.sent[0].text, "Pong")

	stats := f.st.Stats()
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.Equal(t, int64(1), stats.TotalCommands)

	u, ok := f.st.User("555@s.whatsapp.net")
	require.True(t, ok)
	assert.Equal(t, int64(1), u.MessageCount)
	assert.Equal(t, int64(1), u.CommandCount)

	g, ok := f.st.Group("120@g.us")
	require.True(t, ok)
	assert.Equal(t, int64(1), g.MessageCount)
	assert.True(t, g.Participants.Has("555@s.whatsapp.net"))
}

func TestPlainDirectMessage(t *testing.T) {
	f := newFixture(t)

	f.r.HandleEvent(context.Background(), direct(0, "hello there"))

	assert.Empty(t, f.sender.sent)
	stats := f.st.Stats()
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.Equal(t, int64(0), stats.TotalCommands)
	u, ok := f.st.User("5511@s.whatsapp.net")
	require.True(t, ok)
	assert.Equal(t, int64(0), u.CommandCount)
	assert.Empty(t, f.st.Groups())
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	f.r.HandleEvent(context.Background(), direct(0, "!doesnotexist"))

	assert.Equal(t, []sent{{"5511@s.whatsapp.net", "not found"}}, f.sender.sent)
	assert.Equal(t, int64(0), f.st.Stats().TotalCommands)
	u, _ := f.st.User("5511@s.whatsapp.net")
	assert.Equal(t, int64(1), u.CommandCount)
}

func TestMalformedEventDropped(t *testing.T) {
	f := newFixture(t)

	f.r.HandleEvent(context.Background(), inbound.Event{ID: "x", Payload: inbound.Text{Body: "#ping"}})
	f.r.HandleEvent(context.Background(), inbound.Event{ID: "y", ChatID: "5511@s.whatsapp.net"})

	assert.Empty(t, f.sender.sent)
	assert.Equal(t, int64(0), f.st.Stats().TotalMessages)
}

func TestWorkerConsumesBusAndFlushesOnStop(t *testing.T) {
	f := newFixture(t)
	f.r.Start(context.Background())

	f.bus.Emit(bus.KindInbound, []inbound.Event{direct(0, "a"), direct(1, "b"), direct(2, "-ping")})

	require.Eventually(t, func() bool {
		got := make(chan int64, 1)
		if err := f.r.Submit(func(context.Context) { got <- f.st.Stats().TotalMessages }); err != nil {
			return false
		}
		return <-got == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.r.Checkpoint("timer"))
	f.r.Stop()

	assert.GreaterOrEqual(t, f.persist.saves, 2, "timer checkpoint and shutdown flush")
	var doc state.Document
	require.NoError(t, json.Unmarshal(f.persist.last, &doc))
	assert.Equal(t, int64(3), doc.Stats.TotalMessages)
	assert.Equal(t, int64(1), doc.Stats.TotalCommands)

	assert.ErrorIs(t, f.r.Submit(func(context.Context) {}), ErrStopped)
}
