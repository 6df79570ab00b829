package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestWebSocketHub_SendsConnectedEnvelopeOnConnect(t *testing.T) {
	hub := NewWebSocketHub(logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != MessageConnection {
		t.Fatalf("expected connection envelope, got %+v", env)
	}
}

func TestWebSocketHub_BroadcastsStageEventsToConnectedClients(t *testing.T) {
	hub := NewWebSocketHub(logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	var connected Envelope
	if err := conn.ReadJSON(&connected); err != nil {
		t.Fatalf("ReadJSON (connected): %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 registered client, got %d", hub.ClientCount())
	}

	hub.NotifyStageStarted(nil, "p1", "v1", "decode")

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != MessageStageStarted || env.StageName != "decode" || env.PipelineID != "p1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWebSocketHub_PingRespondsWithPong(t *testing.T) {
	hub := NewWebSocketHub(logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()

	var connected Envelope
	if err := conn.ReadJSON(&connected); err != nil {
		t.Fatalf("ReadJSON (connected): %v", err)
	}

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Type != MessagePong {
		t.Fatalf("expected pong envelope, got %+v", env)
	}
}
