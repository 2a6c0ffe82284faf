package kanban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the relay
	wsWriteWait = 10 * time.Second

	// Envelope type carrying a broadcast Message
	wsBroadcastType = "broadcast"
)

// wsEnvelope matches the relay hub's message format.
type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	User string          `json:"user,omitempty"`
}

// WSChannel is a Channel carried by the server's websocket relay, which hands
// each message to the user's other connections. Delivery is best effort:
// there is no queueing, retry or reconnect.
type WSChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[int]func(Message)
	nextID int

	logger *log.Logger
	done   chan struct{}
}

// WebSocketURL derives the relay endpoint from the server's base URL.
func WebSocketURL(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/ws"
}

// DialWSChannel connects to the relay at wsURL. If logger is nil a default
// logger writing to stderr is used.
func DialWSChannel(ctx context.Context, wsURL, token string, logger *log.Logger) (*WSChannel, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[broadcast] ", log.LstdFlags)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	c := &WSChannel{
		conn:   conn,
		subs:   make(map[int]func(Message)),
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

func (c *WSChannel) Post(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	envelope, err := json.Marshal(wsEnvelope{Type: wsBroadcastType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, envelope)
}

func (c *WSChannel) Subscribe(fn func(Message)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Done is closed once the connection stops reading.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Close says goodbye to the relay and closes the connection.
func (c *WSChannel) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// readPump delivers relayed messages to subscribers. The hub may batch
// several envelopes into one frame separated by newlines.
func (c *WSChannel) readPump() {
	defer close(c.done)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Printf("WebSocket error: %v", err)
			}
			return
		}

		for _, line := range bytes.Split(frame, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var env wsEnvelope
			if err := json.Unmarshal(line, &env); err != nil {
				c.logger.Printf("Error unmarshalling relay message: %v", err)
				continue
			}
			if env.Type != wsBroadcastType {
				continue
			}
			var msg Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				c.logger.Printf("Error unmarshalling broadcast: %v", err)
				continue
			}
			c.deliver(msg)
		}
	}
}

func (c *WSChannel) deliver(msg Message) {
	c.mu.Lock()
	subs := make([]func(Message), 0, len(c.subs))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}
