// Package signaling relays opaque call-control payloads between two
// users' connections. The relay holds no call state; payloads are
// forwarded without interpretation.
package signaling

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/chat"
	"github.com/Etopia1/UberAppBackend/internal/events"
	"github.com/Etopia1/UberAppBackend/internal/models"
	"github.com/Etopia1/UberAppBackend/internal/router"
)

type Relay struct {
	rt     *router.Router
	engine *chat.Engine
	log    *zap.SugaredLogger
}

func NewRelay(rt *router.Router, engine *chat.Engine, log *zap.SugaredLogger) *Relay {
	return &Relay{rt: rt, engine: engine, log: log}
}

func (r *Relay) CallInvite(from, to string, payload json.RawMessage) {
	r.rt.ToUser(to, events.IncomingCall{From: from, Payload: payload})
}

// Signal forwards an SDP offer/answer or ICE candidate.
func (r *Relay) Signal(from, to string, sig json.RawMessage) {
	r.rt.ToUser(to, events.SignalRelayed{From: from, Signal: sig})
}

func (r *Relay) ToggleMedia(from, to, kind string, enabled bool) {
	r.rt.ToUser(to, events.RemoteMediaStatus{From: from, Kind: kind, Enabled: enabled})
}

// VideoFrame forwards a raw frame. Lossy under load: frames a slow
// connection cannot accept are dropped, no retry.
func (r *Relay) VideoFrame(from, to, frame string) {
	r.rt.ToUser(to, events.VideoFrameRelayed{From: from, Frame: frame})
}

// AnswerCall relays the accept signal and logs a call message into the
// pair's direct conversation. Logging failure never fails the relay.
func (r *Relay) AnswerCall(ctx context.Context, from, to string, payload json.RawMessage) {
	r.rt.ToUser(to, events.CallAccepted{From: from, Payload: payload})
	if _, err := r.engine.LogCall(ctx, from, to, models.KindCall); err != nil {
		r.log.Warnw("log call", "from", from, "to", to, "err", err)
	}
}

// EndCall relays call termination, logging a missed_call message when
// the callee never answered.
func (r *Relay) EndCall(ctx context.Context, from, to string, wasMissed bool) {
	r.rt.ToUser(to, events.CallEnded{From: from})
	if !wasMissed {
		return
	}
	if _, err := r.engine.LogCall(ctx, from, to, models.KindMissedCall); err != nil {
		r.log.Warnw("log missed call", "from", from, "to", to, "err", err)
	}
}
