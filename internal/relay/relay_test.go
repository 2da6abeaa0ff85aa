package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNullRelayAlwaysSucceeds(t *testing.T) {
	var r Publisher = NullRelay{}
	if err := r.Publish(context.Background(), "session.discovered", "anything"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestPublishDiscoveryWithNilPublisherDoesNotPanic(t *testing.T) {
	PublishDiscovery(context.Background(), nil, "/tmp/foo.jsonl")
}

func TestWebSocketRelayPublishesEnvelope(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	relay := NewWebSocketRelay(wsURL)
	defer relay.Close()

	if err := relay.Publish(context.Background(), "session.discovered", map[string]string{"path": "/a/b.jsonl"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-received:
		if !strings.Contains(msg, "session.discovered") || !strings.Contains(msg, "/a/b.jsonl") {
			t.Fatalf("unexpected envelope: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for relay message")
	}
}

func TestWebSocketRelayDialFailureReturnsError(t *testing.T) {
	relay := NewWebSocketRelay("ws://127.0.0.1:1/unreachable")
	if err := relay.Publish(context.Background(), "session.discovered", "x"); err == nil {
		t.Fatalf("expected error dialing an unreachable endpoint")
	}
}
