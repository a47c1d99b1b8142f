package ws

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// wsSession adapts one accepted WebSocket connection to the realtime
// session contract. Write serialization is handled by the underlying
// connection; Close is idempotent.
type wsSession struct {
	id        string
	userID    int64
	conn      *websocket.Conn
	closeOnce sync.Once
}

func newSession(userID int64, conn *websocket.Conn) *wsSession {
	return &wsSession{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
	}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSession) Close(reason string) {
	s.closeOnce.Do(func() {
		if len(reason) > 120 {
			reason = reason[:120]
		}
		_ = s.conn.Close(websocket.StatusNormalClosure, reason)
	})
}
