// Package ws carries the realtime channel: one WebSocket endpoint per
// user, registered into the session registry for the lifetime of the
// connection.
package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"questnotify/internal/eventbus"
	"questnotify/internal/realtime"
	logx "questnotify/pkg/logx"
)

// Authenticator decides whether the request may open a channel for the
// claimed user. Implementations typically check a token or cookie from
// the upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request, userID int64) error
}

// AllowAll accepts every connection. The surrounding deployment is
// expected to terminate auth at the gateway.
type AllowAll struct{}

func (AllowAll) Authenticate(*http.Request, int64) error { return nil }

// SessionEvent is the bus payload for session.* events.
type SessionEvent struct {
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Handler serves "GET /ws/{user_id}".
type Handler struct {
	reg  *realtime.Registry
	auth Authenticator
	log  logx.Logger
	bus  eventbus.Bus
}

func NewHandler(reg *realtime.Registry, auth Authenticator, log logx.Logger, bus eventbus.Bus) *Handler {
	if auth == nil {
		auth = AllowAll{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{reg: reg, auth: auth, log: log, bus: bus}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if err := h.auth.Authenticate(r, userID); err != nil {
		h.log.Warn("channel auth rejected", logx.Int64("user_id", userID), logx.Err(err))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept failed", logx.Int64("user_id", userID), logx.Err(err))
		return
	}

	sess := newSession(userID, conn)
	h.reg.Register(userID, sess)
	h.publish(eventbus.TypeSessionConnected, sess)

	h.readLoop(r.Context(), sess)
}

// readLoop drains client frames until the connection dies. The client
// only ever sends keepalive pings; each text frame is echoed back as
// "pong: <payload>". Notifications flow the other way, pushed by the
// dispatcher through the registered session.
func (h *Handler) readLoop(ctx context.Context, sess *wsSession) {
	defer func() {
		h.reg.Unregister(sess.userID, sess)
		sess.Close("")
		h.publish(eventbus.TypeSessionClosed, sess)
	}()

	for {
		msgType, data, err := sess.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.log.Debug("websocket read ended",
					logx.Int64("user_id", sess.userID),
					logx.String("session_id", sess.id),
					logx.Err(err))
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		reply := append([]byte("pong: "), data...)
		if err := sess.conn.Write(ctx, websocket.MessageText, reply); err != nil {
			return
		}
	}
}

func (h *Handler) publish(typ string, sess *wsSession) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{
		Type: typ,
		Time: time.Now(),
		Data: SessionEvent{UserID: sess.userID, SessionID: sess.id},
	})
}
