package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/chat"
	"github.com/Etopia1/UberAppBackend/internal/events"
	"github.com/Etopia1/UberAppBackend/internal/models"
	"github.com/Etopia1/UberAppBackend/internal/registry"
	"github.com/Etopia1/UberAppBackend/internal/repository"
	"github.com/Etopia1/UberAppBackend/internal/router"
)

type fakeConn struct {
	id   string
	user string
	mu   sync.Mutex
	got  []events.Event
}

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return f.user }

func (f *fakeConn) Push(ev events.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	return true
}

func (f *fakeConn) byName(name string) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, ev := range f.got {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}

// statusUpdatesFor filters the global presence broadcasts down to one
// subject; the broadcast reaches every connection, the observer's own
// included.
func (f *fakeConn) statusUpdatesFor(user string) []events.UserStatusUpdate {
	var out []events.UserStatusUpdate
	for _, ev := range f.byName("user_status_update") {
		up := ev.(events.UserStatusUpdate)
		if up.UserID == user {
			out = append(out, up)
		}
	}
	return out
}

type fixture struct {
	tracker *Tracker
	reg     *registry.Registry
	store   *repository.MemoryStore
	engine  *chat.Engine
}

func newFixture(t *testing.T, mirror Mirror) *fixture {
	t.Helper()
	reg := registry.New()
	store := repository.NewMemoryStore()
	rt := router.New(reg, store, zap.NewNop().Sugar())
	return &fixture{
		tracker: NewTracker(reg, rt, store, mirror, zap.NewNop().Sugar()),
		reg:     reg,
		store:   store,
		engine:  chat.NewEngine(store, nil, zap.NewNop().Sugar()),
	}
}

func TestConnectMarksOnlineAndBroadcasts(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	observer := &fakeConn{id: "obs", user: "carol"}
	fx.tracker.Connect(ctx, "carol", observer)

	alice := &fakeConn{id: "a1", user: "alice"}
	fx.tracker.Connect(ctx, "alice", alice)

	updates := observer.statusUpdatesFor("alice")
	require.Len(t, updates, 1)
	assert.True(t, updates[0].IsOnline)

	p, ok := fx.store.GetUserPresence("alice")
	require.True(t, ok)
	assert.True(t, p.IsOnline)
}

func TestReconcileDeliversPendingExactlyOnce(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	// A online, B offline; A sends three messages
	aConn := &fakeConn{id: "a1", user: "A"}
	fx.tracker.Connect(ctx, "A", aConn)

	const n = 3
	sentIDs := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		m, err := fx.engine.Send(ctx, chat.SendInput{SenderID: "A", ReceiverID: "B", Content: "hi"})
		require.NoError(t, err)
		sentIDs[m.ID] = true
	}

	// B's first device connects: every pending message advances
	b1 := &fakeConn{id: "b1", user: "B"}
	fx.tracker.Connect(ctx, "B", b1)

	updates := aConn.byName("message_status_update")
	require.Len(t, updates, n, "exactly one notification per pending message")
	seen := map[string]bool{}
	for _, ev := range updates {
		up := ev.(events.MessageStatusUpdate)
		assert.Equal(t, models.StatusDelivered, up.Status)
		assert.True(t, sentIDs[up.MessageID], "unknown message id %s", up.MessageID)
		assert.False(t, seen[up.MessageID], "duplicate notification for %s", up.MessageID)
		seen[up.MessageID] = true
	}

	pending, err := fx.store.FindPendingMessagesTo(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// second device: no re-reconciliation, no duplicate broadcasts
	b2 := &fakeConn{id: "b2", user: "B"}
	fx.tracker.Connect(ctx, "B", b2)
	assert.Len(t, aConn.byName("message_status_update"), n)
	assert.Len(t, aConn.statusUpdatesFor("B"), 1)
}

func TestDisconnectEdgesAndLastSeen(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	observer := &fakeConn{id: "obs", user: "carol"}
	fx.tracker.Connect(ctx, "carol", observer)

	b1 := &fakeConn{id: "b1", user: "B"}
	b2 := &fakeConn{id: "b2", user: "B"}
	before := time.Now().UTC()
	fx.tracker.Connect(ctx, "B", b1)
	fx.tracker.Connect(ctx, "B", b2)

	fx.tracker.Disconnect(ctx, b1)
	assert.Len(t, observer.statusUpdatesFor("B"), 1, "1->0 edge only: one device left")
	assert.True(t, fx.reg.IsOnline("B"))

	fx.tracker.Disconnect(ctx, b2)
	updates := observer.statusUpdatesFor("B")
	require.Len(t, updates, 2)
	off := updates[1]
	assert.False(t, off.IsOnline)
	require.NotNil(t, off.LastSeen)
	assert.False(t, off.LastSeen.Before(before))

	p, ok := fx.store.GetUserPresence("B")
	require.True(t, ok)
	assert.False(t, p.IsOnline)
}

func TestDisconnectUnknownConnIsNoop(t *testing.T) {
	fx := newFixture(t, nil)
	stray := &fakeConn{id: "x", user: "nobody"}
	fx.tracker.Disconnect(context.Background(), stray)
	_, ok := fx.store.GetUserPresence("nobody")
	assert.False(t, ok)
}

type failingMirror struct{}

func (failingMirror) SetPresence(context.Context, string, bool, time.Time) error {
	return errors.New("redis down")
}

func TestMirrorFailureDoesNotBlockPresence(t *testing.T) {
	fx := newFixture(t, failingMirror{})
	c := &fakeConn{id: "a1", user: "alice"}
	fx.tracker.Connect(context.Background(), "alice", c)

	p, ok := fx.store.GetUserPresence("alice")
	require.True(t, ok)
	assert.True(t, p.IsOnline)
}
