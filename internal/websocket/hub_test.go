package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"blinkfit-backend/internal/blink"
	"blinkfit-backend/internal/middleware"
	"blinkfit-backend/internal/models"
)

type stubSink struct {
	mu     sync.Mutex
	frames [][]blink.Point
	err    error
}

func (s *stubSink) SubmitFrame(ctx context.Context, userID uuid.UUID, landmarks []blink.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, landmarks)
	return s.err
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type hubFixture struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	jwt    *middleware.JWTAuth
	sink   *stubSink
	hub    *Hub
	server *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	jwtAuth := middleware.NewJWTAuth("test-secret")
	sink := &stubSink{}
	hub := NewHub(rdb, jwtAuth, sink)
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &hubFixture{mr: mr, rdb: rdb, jwt: jwtAuth, sink: sink, hub: hub, server: server}
}

func (f *hubFixture) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(userID, "ana")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *hubFixture) waitSubscribed(t *testing.T, userID uuid.UUID) {
	t.Helper()
	channel := channelFor(userID)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.mr.PubSubNumSub(channel)[channel] > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber on %s", channel)
}

func readMessage(t *testing.T, conn *websocket.Conn) models.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestHub_RejectsMissingOrBadToken(t *testing.T) {
	f := newHubFixture(t)
	base := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/"

	for _, url := range []string{base, base + "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("dial %s should fail", url)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %v", url, resp)
		}
	}
}

func TestHub_DeliversPublishedMessages(t *testing.T) {
	f := newHubFixture(t)
	userID := uuid.New()
	conn := f.dial(t, userID)
	f.waitSubscribed(t, userID)

	payload, _ := json.Marshal(map[string]int{"blink_count": 3})
	pub := NewPublisher(f.rdb)
	if err := pub.Publish(context.Background(), userID, models.WSMessage{Type: "blink", Payload: payload}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != "blink" || !strings.Contains(string(msg.Payload), `"blink_count":3`) {
		t.Fatalf("unexpected message: %s %s", msg.Type, msg.Payload)
	}
}

func TestHub_PingAndFrames(t *testing.T) {
	f := newHubFixture(t)
	userID := uuid.New()
	conn := f.dial(t, userID)

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "pong" {
		t.Fatalf("expected pong, got %q", msg.Type)
	}

	frame := map[string]any{"type": "frame", "landmarks": blink.SyntheticFace(0.3, 0.3)}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	// A ping after the frame orders the check behind it.
	conn.WriteJSON(map[string]string{"type": "ping"})
	readMessage(t, conn)
	if f.sink.count() != 1 {
		t.Fatalf("expected one frame delivered, got %d", f.sink.count())
	}
	if got := len(f.sink.frames[0]); got != blink.MeshSize {
		t.Fatalf("frame has %d landmarks, want %d", got, blink.MeshSize)
	}
}

func TestHub_FrameWithoutSession(t *testing.T) {
	f := newHubFixture(t)
	f.sink.err = errors.New("No session is running")
	conn := f.dial(t, uuid.New())

	conn.WriteJSON(map[string]any{"type": "frame", "landmarks": []blink.Point{{X: 1, Y: 1}}})
	msg := readMessage(t, conn)
	if msg.Type != "error" || !strings.Contains(string(msg.Payload), "NO_SESSION") {
		t.Fatalf("unexpected message: %s %s", msg.Type, msg.Payload)
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	f := newHubFixture(t)
	userID := uuid.New()
	conn := f.dial(t, userID)
	f.waitSubscribed(t, userID)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.ConnectionCount(userID) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := f.hub.ConnectionCount(userID); n != 0 {
		t.Fatalf("connection count = %d after close", n)
	}
}
