package ws

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/apperr"
	"github.com/Etopia1/UberAppBackend/internal/chat"
	"github.com/Etopia1/UberAppBackend/internal/events"
	"github.com/Etopia1/UberAppBackend/internal/models"
	"github.com/Etopia1/UberAppBackend/internal/presence"
	"github.com/Etopia1/UberAppBackend/internal/registry"
	"github.com/Etopia1/UberAppBackend/internal/repository"
	"github.com/Etopia1/UberAppBackend/internal/router"
	"github.com/Etopia1/UberAppBackend/internal/signaling"
)

// Session dispatches one connection's inbound events. Events are
// processed in arrival order per connection; different connections'
// sessions run independently.
type Session struct {
	conn    registry.Conn
	reg     *registry.Registry
	tracker *presence.Tracker
	engine  *chat.Engine
	relay   *signaling.Relay
	rt      *router.Router
	store   repository.Store
	log     *zap.SugaredLogger

	joined bool
}

func NewSession(conn registry.Conn, reg *registry.Registry, tracker *presence.Tracker, engine *chat.Engine, relay *signaling.Relay, rt *router.Router, store repository.Store, log *zap.SugaredLogger) *Session {
	return &Session{
		conn:    conn,
		reg:     reg,
		tracker: tracker,
		engine:  engine,
		relay:   relay,
		rt:      rt,
		store:   store,
		log:     log,
	}
}

// reject reports a failed action back to the acting connection only.
func (s *Session) reject(event string, err error) {
	reason := "internal error"
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		reason = "not found"
	case errors.Is(err, apperr.ErrForbidden):
		reason = "forbidden"
	case errors.Is(err, apperr.ErrInvalidState):
		reason = "invalid state"
	}
	s.conn.Push(events.MessageError{Event: event, Reason: reason})
}

func (s *Session) handle(raw []byte) {
	name, payload, err := events.Decode(raw)
	if err != nil {
		s.log.Debugw("bad inbound event", "conn", s.conn.ID(), "event", name, "err", err)
		return
	}
	ctx := context.Background()

	switch p := payload.(type) {
	case *events.JoinUserSession:
		s.handleJoin(ctx, p)
	case *events.SendMessage:
		s.handleSend(ctx, p)
	case *events.Typing:
		s.handleTyping(ctx, name, p)
	case *events.EditMessage:
		s.handleEdit(ctx, p)
	case *events.DeleteMessage:
		s.handleDelete(ctx, p)
	case *events.ReactMessage:
		s.handleReact(ctx, p)
	case *events.MarkRead:
		s.handleMarkRead(ctx, p)
	case *events.BlockUser:
		s.handleBlock(ctx, p)
	case *events.CallInvite:
		s.relay.CallInvite(s.conn.UserID(), p.To, p.Payload)
	case *events.WebrtcSignal:
		s.relay.Signal(s.conn.UserID(), p.To, p.Signal)
	case *events.ToggleMedia:
		s.relay.ToggleMedia(s.conn.UserID(), p.To, p.Kind, p.Enabled)
	case *events.VideoFrame:
		s.relay.VideoFrame(s.conn.UserID(), p.To, p.Frame)
	case *events.AnswerCall:
		s.relay.AnswerCall(ctx, s.conn.UserID(), p.To, p.Payload)
	case *events.EndCall:
		s.relay.EndCall(ctx, s.conn.UserID(), p.To, p.WasMissed)
	case *events.JoinRide:
		s.reg.JoinRoom(p.RideID, s.conn)
	case *events.UpdateLocation:
		s.rt.ToRoom(p.RideID, s.conn, events.DriverLocation{RideID: p.RideID, Location: p.Location})
	}
}

func (s *Session) handleJoin(ctx context.Context, p *events.JoinUserSession) {
	if p.UserID != s.conn.UserID() {
		s.reject(events.InJoinUserSession, apperr.ErrForbidden)
		return
	}
	if s.joined {
		return
	}
	s.joined = true
	s.tracker.Connect(ctx, s.conn.UserID(), s.conn)
}

func (s *Session) handleSend(ctx context.Context, p *events.SendMessage) {
	m, err := s.engine.Send(ctx, chat.SendInput{
		ConversationID: p.ConversationID,
		SenderID:       s.conn.UserID(),
		ReceiverID:     p.ReceiverID,
		Content:        p.Content,
		Kind:           p.Kind,
		MediaURL:       p.MediaURL,
		MediaDuration:  p.MediaDuration,
		Location:       p.Location,
		ReplyTo:        p.ReplyTo,
	})
	if err != nil {
		s.reject(events.InSendMessage, err)
		return
	}
	// sender always gets the ack, blocked or not
	s.rt.ToUser(m.SenderID, events.MessageSent{Message: m})

	delivered, err := s.rt.Deliver(ctx, m.SenderID, m.ReceiverID, events.MessageReceived{Message: m})
	if err != nil {
		s.log.Warnw("deliver message", "message", m.ID, "err", err)
		return
	}
	if delivered {
		// receiver was online: advance to delivered right away
		if err := s.store.MarkDeliveredBatch(ctx, []string{m.ID}, time.Now().UTC()); err != nil {
			s.log.Warnw("mark delivered", "message", m.ID, "err", err)
			return
		}
		s.rt.ToUser(m.SenderID, events.MessageStatusUpdate{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			Status:         models.StatusDelivered,
		})
	}
}

func (s *Session) handleTyping(ctx context.Context, name string, p *events.Typing) {
	var ev events.Event = events.UserTyping{UserID: s.conn.UserID()}
	if name == events.InStopTyping {
		ev = events.UserStopTyping{UserID: s.conn.UserID()}
	}
	if _, err := s.rt.Deliver(ctx, s.conn.UserID(), p.ReceiverID, ev); err != nil {
		s.log.Debugw("typing relay", "to", p.ReceiverID, "err", err)
	}
}

func (s *Session) handleEdit(ctx context.Context, p *events.EditMessage) {
	m, err := s.engine.Edit(ctx, p.MessageID, s.conn.UserID(), p.Content)
	if err != nil {
		s.reject(events.InEditMessage, err)
		return
	}
	ev := events.MessageUpdated{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		IsEdited:       true,
	}
	// both parties' devices, so every open view converges
	if _, err := s.rt.Deliver(ctx, m.SenderID, m.ReceiverID, ev); err != nil {
		s.log.Warnw("broadcast edit", "message", m.ID, "err", err)
	}
	s.rt.ToUser(m.SenderID, ev)
}

func (s *Session) handleDelete(ctx context.Context, p *events.DeleteMessage) {
	m, err := s.engine.SoftDelete(ctx, p.MessageID, s.conn.UserID())
	if err != nil {
		s.reject(events.InDeleteMessage, err)
		return
	}
	ev := events.MessageDeleted{MessageID: m.ID, ConversationID: m.ConversationID}
	if _, err := s.rt.Deliver(ctx, m.SenderID, m.ReceiverID, ev); err != nil {
		s.log.Warnw("broadcast delete", "message", m.ID, "err", err)
	}
	s.rt.ToUser(m.SenderID, ev)
}

func (s *Session) handleReact(ctx context.Context, p *events.ReactMessage) {
	m, action, err := s.engine.React(ctx, p.MessageID, s.conn.UserID(), p.Emoji)
	if err != nil {
		s.reject(events.InReactMessage, err)
		return
	}
	ev := events.MessageReaction{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Reactions:      m.Reactions,
		Action:         action,
	}
	other := m.ReceiverID
	if other == s.conn.UserID() {
		other = m.SenderID
	}
	if _, err := s.rt.Deliver(ctx, s.conn.UserID(), other, ev); err != nil {
		s.log.Warnw("broadcast reaction", "message", m.ID, "err", err)
	}
	s.rt.ToUser(s.conn.UserID(), ev)
}

func (s *Session) handleMarkRead(ctx context.Context, p *events.MarkRead) {
	if _, err := s.engine.MarkConversationRead(ctx, p.ConversationID, s.conn.UserID()); err != nil {
		s.reject(events.InMarkRead, err)
		return
	}
	// sync the reader's other devices
	s.rt.ToUser(s.conn.UserID(), events.ConversationRead{
		ConversationID: p.ConversationID,
		ReaderID:       s.conn.UserID(),
	})
}

func (s *Session) handleBlock(ctx context.Context, p *events.BlockUser) {
	if err := s.store.SetBlock(ctx, s.conn.UserID(), p.BlockedID, p.IsBlocked); err != nil {
		s.reject(events.InBlockUser, err)
		return
	}
	s.rt.ToUser(p.BlockedID, events.BlockStatusChanged{By: s.conn.UserID(), IsBlocked: p.IsBlocked})
	s.conn.Push(events.BlockSuccess{BlockedID: p.BlockedID, IsBlocked: p.IsBlocked})
}
