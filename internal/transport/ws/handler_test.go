package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"questnotify/internal/eventbus"
	"questnotify/internal/membership"
	"questnotify/internal/notification"
	"questnotify/internal/realtime"
	logx "questnotify/pkg/logx"
)

type denyAll struct{}

func (denyAll) Authenticate(*http.Request, int64) error { return errors.New("no token") }

func newTestServer(t *testing.T, auth Authenticator) (*httptest.Server, *realtime.Registry) {
	t.Helper()
	reg := realtime.NewRegistry(logx.Nop())
	mux := http.NewServeMux()
	mux.Handle("GET /ws/{user_id}", NewHandler(reg, auth, logx.Nop(), eventbus.New()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestChannelPongEcho(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)

	conn := dial(t, srv, "/ws/42")
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "pong: ping" {
		t.Fatalf("echo = %q, want %q", data, "pong: ping")
	}
}

func TestChannelDeliversNotification(t *testing.T) {
	t.Parallel()
	srv, reg := newTestServer(t, nil)
	d := realtime.NewDispatcher(realtime.Config{}, reg, membership.NewMemoryStore(), logx.Nop(), nil)

	conn := dial(t, srv, "/ws/42")
	defer conn.Close(websocket.StatusNormalClosure, "")

	waitFor(t, "session registration", func() bool {
		_, sessions := reg.Stats()
		return sessions == 1
	})

	msg := notification.Message{
		Kind:  notification.KindNewAchievement,
		Title: "Conquista!",
		Body:  "Primeira missão concluída",
		Data:  map[string]any{"achievement_id": 7},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := d.SendToUser(ctx, 42, msg); err != nil || n != 1 {
		t.Fatalf("SendToUser = (%d, %v), want (1, nil)", n, err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var wire struct {
		Type    string         `json:"type"`
		Title   string         `json:"title"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("frame is not a wire object: %v", err)
	}
	if wire.Type != "new_achievement" || wire.Title != "Conquista!" {
		t.Fatalf("unexpected frame: %+v", wire)
	}
}

func TestChannelDisconnectUnregisters(t *testing.T) {
	t.Parallel()
	srv, reg := newTestServer(t, nil)

	conn := dial(t, srv, "/ws/7")
	waitFor(t, "session registration", func() bool {
		users, _ := reg.Stats()
		return users == 1
	})

	conn.Close(websocket.StatusNormalClosure, "")
	waitFor(t, "session removal", func() bool {
		users, _ := reg.Stats()
		return users == 0
	})
}

func TestChannelRejectsBadUserID(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/ws/abc", "/ws/0", "/ws/-5"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestChannelAuthRejected(t *testing.T) {
	t.Parallel()
	srv, reg := newTestServer(t, denyAll{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, srv.URL+"/ws/42", nil)
	if err == nil {
		t.Fatal("dial must fail against a rejecting authenticator")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if users, _ := reg.Stats(); users != 0 {
		t.Fatal("rejected connection must not be registered")
	}
}
