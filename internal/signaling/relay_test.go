package signaling

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

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

func (f *fakeConn) events() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.got...)
}

func setup(t *testing.T) (*Relay, *registry.Registry, *chat.Engine, *repository.MemoryStore) {
	t.Helper()
	reg := registry.New()
	store := repository.NewMemoryStore()
	rt := router.New(reg, store, zap.NewNop().Sugar())
	engine := chat.NewEngine(store, nil, zap.NewNop().Sugar())
	return NewRelay(rt, engine, zap.NewNop().Sugar()), reg, engine, store
}

func TestForwardingCarriesProvenance(t *testing.T) {
	relay, reg, _, _ := setup(t)
	callee := &fakeConn{id: "c1", user: "bob"}
	reg.Register("bob", callee)

	offer := json.RawMessage(`{"sdp":"offer"}`)
	relay.CallInvite("alice", "bob", offer)
	relay.Signal("alice", "bob", json.RawMessage(`{"candidate":"x"}`))
	relay.ToggleMedia("alice", "bob", "video", false)
	relay.VideoFrame("alice", "bob", "ZnJhbWU=")

	got := callee.events()
	require.Len(t, got, 4)
	assert.Equal(t, "alice", got[0].(events.IncomingCall).From)
	assert.Equal(t, "alice", got[1].(events.SignalRelayed).From)
	media := got[2].(events.RemoteMediaStatus)
	assert.Equal(t, "video", media.Kind)
	assert.False(t, media.Enabled)
	assert.Equal(t, "ZnJhbWU=", got[3].(events.VideoFrameRelayed).Frame)
}

func TestAnswerCallLogsCallMessage(t *testing.T) {
	relay, reg, engine, store := setup(t)
	ctx := context.Background()
	callee := &fakeConn{id: "c1", user: "bob"}
	reg.Register("bob", callee)

	// direct conversation exists from an earlier exchange
	first, err := engine.Send(ctx, chat.SendInput{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	require.NoError(t, err)

	relay.AnswerCall(ctx, "alice", "bob", json.RawMessage(`{"sdp":"answer"}`))

	require.Len(t, callee.events(), 1)
	assert.Equal(t, "call_accepted", callee.events()[0].EventName())

	msgs, err := store.ListMessages(ctx, first.ConversationID, 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.KindCall, msgs[1].Kind)
}

func TestAnswerCallRelaysWhenLoggingFails(t *testing.T) {
	relay, reg, _, _ := setup(t)
	callee := &fakeConn{id: "c1", user: "bob"}
	reg.Register("bob", callee)

	// no conversation between the pair: logging fails, relay proceeds
	relay.AnswerCall(context.Background(), "alice", "bob", json.RawMessage(`{}`))
	require.Len(t, callee.events(), 1)
	assert.Equal(t, "call_accepted", callee.events()[0].EventName())
}

func TestEndCallLogsMissedOnly(t *testing.T) {
	relay, reg, engine, store := setup(t)
	ctx := context.Background()
	callee := &fakeConn{id: "c1", user: "bob"}
	reg.Register("bob", callee)
	first, err := engine.Send(ctx, chat.SendInput{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	require.NoError(t, err)

	relay.EndCall(ctx, "alice", "bob", false)
	msgs, err := store.ListMessages(ctx, first.ConversationID, 10, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "answered call end logs nothing")

	relay.EndCall(ctx, "alice", "bob", true)
	msgs, err = store.ListMessages(ctx, first.ConversationID, 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.KindMissedCall, msgs[1].Kind)
	assert.Len(t, callee.events(), 2)
}
