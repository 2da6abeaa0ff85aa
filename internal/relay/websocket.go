package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ronaldeddings/unified-agent/internal/logging"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// envelope is the wire shape every published message takes: a topic plus an
// arbitrary JSON payload, so a bare ws:// listener can dispatch on topic
// without needing to know every payload type up front.
type envelope struct {
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketRelay publishes envelopes to a single ws:// endpoint. Connection
// is lazy (first Publish call dials) and reconnects on the next Publish
// after a write failure; a down or unreachable endpoint never panics the
// caller: dial and write failures are returned as errors, after waits bounded
// by the dial and write timeouts.
type WebSocketRelay struct {
	url string

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewWebSocketRelay builds a relay targeting url (e.g. "ws://127.0.0.1:8787/relay").
func NewWebSocketRelay(url string) *WebSocketRelay {
	return &WebSocketRelay{url: url}
}

// Publish sends topic/payload as a JSON envelope. Best-effort: a dial or
// write failure is returned to the caller (who is expected to log and
// continue, per C19's discovery-publish contract) but the connection is
// torn down so the next call redials fresh rather than retrying a broken
// socket forever.
func (r *WebSocketRelay) Publish(ctx context.Context, topic string, payload any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.conn == nil {
		if err := r.dialLocked(ctx); err != nil {
			return fmt.Errorf("relay: dial %s: %w", r.url, err)
		}
	}

	env := envelope{Topic: topic, Payload: payload, Timestamp: time.Now()}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: encode envelope: %w", err)
	}

	_ = r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := r.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		_ = r.conn.Close()
		r.conn = nil
		return fmt.Errorf("relay: write to %s: %w", r.url, err)
	}
	return nil
}

func (r *WebSocketRelay) dialLocked(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return err
	}
	r.conn = conn
	return nil
}

// Close closes the underlying connection, if any.
func (r *WebSocketRelay) Close() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// PublishDiscovery is the narrow helper C19's watcher calls: it never
// returns an error to the caller beyond logging it, since a discovery
// publish failure must never slow or stop the poll loop.
func PublishDiscovery(ctx context.Context, p Publisher, path string) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, "session.discovered", map[string]string{"path": path}); err != nil {
		logging.WithError(err).Debugf("relay: publish session.discovered for %s failed", path)
	}
}
