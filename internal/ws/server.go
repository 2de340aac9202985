package ws

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/auth"
	"github.com/Etopia1/UberAppBackend/internal/chat"
	"github.com/Etopia1/UberAppBackend/internal/presence"
	"github.com/Etopia1/UberAppBackend/internal/registry"
	"github.com/Etopia1/UberAppBackend/internal/repository"
	"github.com/Etopia1/UberAppBackend/internal/router"
	"github.com/Etopia1/UberAppBackend/internal/signaling"
)

type Server struct {
	reg     *registry.Registry
	tracker *presence.Tracker
	engine  *chat.Engine
	relay   *signaling.Relay
	rt      *router.Router
	store   repository.Store
	secret  string
	log     *zap.SugaredLogger
}

func NewServer(reg *registry.Registry, tracker *presence.Tracker, engine *chat.Engine, relay *signaling.Relay, rt *router.Router, store repository.Store, jwtSecret string, log *zap.SugaredLogger) *Server {
	return &Server{
		reg:     reg,
		tracker: tracker,
		engine:  engine,
		relay:   relay,
		rt:      rt,
		store:   store,
		secret:  jwtSecret,
		log:     log,
	}
}

// HandleWS authenticates the upgrade (token query param) and runs the
// connection's session until it closes.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		claims, err := auth.ParseAndValidateToken(s.secret, token)
		if err != nil {
			s.log.Debugw("ws auth failed", "err", err)
			_ = conn.Close()
			return
		}

		c := NewConnection(conn, claims.UserID)
		s.log.Infow("ws connected", "user", c.UserID(), "conn", c.ID())
		sess := NewSession(c, s.reg, s.tracker, s.engine, s.relay, s.rt, s.store, s.log)

		go c.writePump()
		c.readPump(sess.handle)
		// abrupt close and clean close leave through the same door
		s.tracker.Disconnect(context.Background(), c)
		s.log.Infow("ws disconnected", "user", c.UserID(), "conn", c.ID())
	}
}
