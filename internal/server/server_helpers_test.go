package server

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codewords/codewords/internal/board"
	"github.com/codewords/codewords/internal/config"
	"github.com/codewords/codewords/internal/protocol"
	"github.com/codewords/codewords/internal/universe"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const wsTimeout = 5 * time.Second

func seededBoard() *board.Board {
	return board.NewWithRand(rand.New(rand.NewPCG(7, 11)))
}

func newTestApp(t *testing.T) (*universe.Universe, *httptest.Server) {
	t.Helper()
	u := universe.New(universe.WithBoardFactory(seededBoard))
	srv := New(u, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	return u, ts
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (s *recordingSink) Send(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSink) Last() protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return nil
	}
	return s.msgs[len(s.msgs)-1]
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}

func messagesOfType[T protocol.Message](s *recordingSink) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []T
	for _, msg := range s.msgs {
		if typed, ok := msg.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(wsTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write websocket message: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) gjson.Result {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	if !gjson.ValidBytes(payload) {
		t.Fatalf("expected json event, got %s", payload)
	}
	return gjson.ParseBytes(payload)
}

// waitForEvent skips events until one of type typ arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, typ string) gjson.Result {
	t.Helper()
	deadline := time.Now().Add(wsTimeout)
	seen := make([]string, 0, 8)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %s; seen=%v", typ, seen)
		}
		event := readEvent(t, conn, remaining)
		if event.Get("type").String() == typ {
			return event
		}
		seen = append(seen, event.Get("type").String())
	}
}

// waitForSnapshot skips events until a snapshot in turn arrives.
func waitForSnapshot(t *testing.T, conn *websocket.Conn, turn protocol.Turn) gjson.Result {
	t.Helper()
	deadline := time.Now().Add(wsTimeout)
	for time.Now().Before(deadline) {
		event := waitForEvent(t, conn, "game_state_snapshot")
		if event.Get("turn").String() == string(turn) {
			return event
		}
	}
	t.Fatalf("timed out waiting for %s snapshot", turn)
	return gjson.Result{}
}

func authenticate(t *testing.T, conn *websocket.Conn, nickname string) string {
	t.Helper()
	sendCommand(t, conn, `{"cmd":"authenticate","nickname":"`+nickname+`"}`)
	event := waitForEvent(t, conn, "authenticated")
	if got := event.Get("nickname").String(); got != nickname {
		t.Fatalf("expected nickname %q, got %q", nickname, got)
	}
	return event.Get("id").String()
}
