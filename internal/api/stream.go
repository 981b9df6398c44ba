package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AnalysisEvent describes websocket payloads emitted as analyses finish.
type AnalysisEvent struct {
	Type          string    `json:"type"`
	AnalysisID    string    `json:"analysis_id"`
	JobID         string    `json:"job_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Shape         string    `json:"shape,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	Source        string    `json:"source,omitempty"`
	Degraded      bool      `json:"degraded,omitempty"`
	ErrorStatus   string    `json:"error_status,omitempty"`
	Message       string    `json:"message,omitempty"`
	ElapsedMs     int64     `json:"elapsed_ms,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// AnalysisNotifier keeps track of reviewer websocket clients and fans analysis events
// out to them.
type AnalysisNotifier struct {
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	lastEvent *AnalysisEvent
}

// NewAnalysisNotifier constructs a notifier instance.
func NewAnalysisNotifier() *AnalysisNotifier {
	return &AnalysisNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the most recent event to it.
func (n *AnalysisNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	n.mu.Unlock()

	if last := n.LastEvent(); last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *AnalysisNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the event to all registered clients, dropping any that fail.
func (n *AnalysisNotifier) Broadcast(event AnalysisEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastEvent = &snapshot
	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// Clients returns the number of connected clients.
func (n *AnalysisNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// LastEvent returns a copy of the most recent event, if any.
func (n *AnalysisNotifier) LastEvent() *AnalysisEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastEvent == nil {
		return nil
	}
	event := *n.lastEvent
	return &event
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
