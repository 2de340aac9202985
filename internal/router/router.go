// Package router fans a single logical event out to every live
// connection of a target user, gated by the block relation.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/events"
	"github.com/Etopia1/UberAppBackend/internal/registry"
)

// BlockChecker answers whether delivery between two users is
// suppressed. Either direction of the block relation suppresses.
type BlockChecker interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

type Router struct {
	reg    *registry.Registry
	blocks BlockChecker
	log    *zap.SugaredLogger
}

func New(reg *registry.Registry, blocks BlockChecker, log *zap.SugaredLogger) *Router {
	return &Router{reg: reg, blocks: blocks, log: log}
}

// Deliver pushes ev to every live connection of toUser unless the
// block relation between fromUser and toUser suppresses it. It reports
// whether the event reached the target's connections. A blocked or
// offline target is not an error: the caller still acks the sender.
func (r *Router) Deliver(ctx context.Context, fromUser, toUser string, ev events.Event) (bool, error) {
	blocked, err := r.blocks.IsBlocked(ctx, fromUser, toUser)
	if err != nil {
		return false, err
	}
	if blocked {
		r.log.Debugw("delivery suppressed", "from", fromUser, "to", toUser, "event", ev.EventName())
		return false, nil
	}
	return r.ToUser(toUser, ev) > 0, nil
}

// ToUser pushes ev to every live connection of toUser with no block
// gate. Used for status updates and acks addressed to a known party.
func (r *Router) ToUser(toUser string, ev events.Event) int {
	n := 0
	for _, c := range r.reg.ConnectionsOf(toUser) {
		if c.Push(ev) {
			n++
		}
	}
	return n
}

// Broadcast pushes ev to every live connection of every user. Presence
// changes go out this way.
func (r *Router) Broadcast(ev events.Event) {
	for _, c := range r.reg.All() {
		c.Push(ev)
	}
}

// ToRoom pushes ev to every connection in a room except the sender's.
func (r *Router) ToRoom(roomID string, except registry.Conn, ev events.Event) {
	for _, c := range r.reg.RoomConns(roomID) {
		if c == except {
			continue
		}
		c.Push(ev)
	}
}
