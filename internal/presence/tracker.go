// Package presence derives online/offline state from registry
// transitions and reconciles pending deliveries when a user comes
// back online.
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/events"
	"github.com/Etopia1/UberAppBackend/internal/models"
	"github.com/Etopia1/UberAppBackend/internal/registry"
	"github.com/Etopia1/UberAppBackend/internal/repository"
	"github.com/Etopia1/UberAppBackend/internal/router"
)

// Mirror replicates presence into a shared cache for other instances.
type Mirror interface {
	SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error
}

type Tracker struct {
	reg    *registry.Registry
	rt     *router.Router
	store  repository.Store
	mirror Mirror
	log    *zap.SugaredLogger
}

func NewTracker(reg *registry.Registry, rt *router.Router, store repository.Store, mirror Mirror, log *zap.SugaredLogger) *Tracker {
	return &Tracker{reg: reg, rt: rt, store: store, mirror: mirror, log: log}
}

// Connect registers c under userID. Only the 0->1 edge persists the
// online flag, broadcasts the status change and reconciles pending
// deliveries; an additional device joining an already-online user does
// none of that.
func (t *Tracker) Connect(ctx context.Context, userID string, c registry.Conn) {
	if first := t.reg.Register(userID, c); !first {
		return
	}
	if err := t.store.SetUserPresence(ctx, userID, true, time.Now().UTC()); err != nil {
		t.log.Warnw("persist online status", "user", userID, "err", err)
	}
	t.mirrorPresence(ctx, userID, true, time.Now().UTC())
	t.rt.Broadcast(events.UserStatusUpdate{UserID: userID, IsOnline: true})
	t.reconcile(ctx, userID)
}

// Disconnect handles both explicit disconnects and abrupt connection
// loss. Only the 1->0 edge records last-seen and broadcasts.
func (t *Tracker) Disconnect(ctx context.Context, c registry.Conn) {
	userID, last := t.reg.Unregister(c)
	if userID == "" || !last {
		return
	}
	lastSeen := time.Now().UTC()
	if err := t.store.SetUserPresence(ctx, userID, false, lastSeen); err != nil {
		t.log.Warnw("persist offline status", "user", userID, "err", err)
	}
	t.mirrorPresence(ctx, userID, false, lastSeen)
	t.rt.Broadcast(events.UserStatusUpdate{UserID: userID, IsOnline: false, LastSeen: &lastSeen})
}

// reconcile advances every message still in sent state addressed to
// userID to delivered and notifies each sender. Best-effort: a store
// failure leaves the messages pending for the next connect.
func (t *Tracker) reconcile(ctx context.Context, userID string) {
	pending, err := t.store.FindPendingMessagesTo(ctx, userID)
	if err != nil {
		t.log.Warnw("find pending deliveries", "user", userID, "err", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	ids := make([]string, len(pending))
	for i, m := range pending {
		ids[i] = m.ID
	}
	if err := t.store.MarkDeliveredBatch(ctx, ids, time.Now().UTC()); err != nil {
		t.log.Warnw("mark delivered batch", "user", userID, "err", err)
		return
	}
	for _, m := range pending {
		t.rt.ToUser(m.SenderID, events.MessageStatusUpdate{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			Status:         models.StatusDelivered,
		})
	}
}

func (t *Tracker) mirrorPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	if t.mirror == nil {
		return
	}
	if err := t.mirror.SetPresence(ctx, userID, online, lastSeen); err != nil {
		t.log.Warnw("mirror presence", "user", userID, "err", err)
	}
}
