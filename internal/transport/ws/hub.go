package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Monitor message types
const (
	MsgAttemptStarted     MessageType = "attempt_started"
	MsgAttemptSubmitted   MessageType = "attempt_submitted"
	MsgAttemptInvalidated MessageType = "attempt_invalidated"
	MsgProctorEvent       MessageType = "proctor_event"
	MsgCountersUpdated    MessageType = "counters_updated"
	MsgGradesSaved        MessageType = "grades_saved"
)

// Candidate message types
const (
	MsgInvalidated MessageType = "invalidated"
	MsgTimeWarning MessageType = "time_warning"
	MsgError       MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket connections for live proctoring. Staff monitors
// subscribe per test; candidates connect per attempt.
type Hub struct {
	monitorConns   map[string]map[*Connection]bool // testID -> conns
	candidateConns map[string]*Connection          // attemptID -> conn

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	disconnect chan string
}

// Connection represents a WebSocket connection
type Connection struct {
	TestID    string
	AttemptID string // Empty for monitor connections
	IsMonitor bool
	Send      chan []byte
	Hub       *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	TestID     string
	ToMonitors bool
	ToAttempt  string // Target candidate attempt when not for monitors
	Message    *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		monitorConns:   make(map[string]map[*Connection]bool),
		candidateConns: make(map[string]*Connection),
		register:       make(chan *Connection),
		unregister:     make(chan *Connection),
		broadcast:      make(chan *BroadcastMessage, 256),
		disconnect:     make(chan string),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if conn.IsMonitor {
				if h.monitorConns[conn.TestID] == nil {
					h.monitorConns[conn.TestID] = make(map[*Connection]bool)
				}
				h.monitorConns[conn.TestID][conn] = true
				log.Printf("Monitor connected to test %s", conn.TestID)
			} else {
				// A newer connection for the same attempt supersedes the old one
				if existing, ok := h.candidateConns[conn.AttemptID]; ok {
					close(existing.Send)
				}
				h.candidateConns[conn.AttemptID] = conn
				log.Printf("Candidate connected for attempt %s", conn.AttemptID)
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.IsMonitor {
				if conns, ok := h.monitorConns[conn.TestID]; ok && conns[conn] {
					delete(conns, conn)
					close(conn.Send)
					log.Printf("Monitor disconnected from test %s", conn.TestID)
				}
			} else {
				if existing, ok := h.candidateConns[conn.AttemptID]; ok && existing == conn {
					delete(h.candidateConns, conn.AttemptID)
					close(conn.Send)
					log.Printf("Candidate disconnected for attempt %s", conn.AttemptID)
				}
			}
			h.mu.Unlock()

		case attemptID := <-h.disconnect:
			h.mu.Lock()
			if conn, ok := h.candidateConns[attemptID]; ok {
				delete(h.candidateConns, attemptID)
				close(conn.Send)
				log.Printf("Candidate connection closed for attempt %s", attemptID)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)

			if msg.ToMonitors {
				for conn := range h.monitorConns[msg.TestID] {
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			} else if msg.ToAttempt != "" {
				if conn, ok := h.candidateConns[msg.ToAttempt]; ok {
					select {
					case conn.Send <- data:
					default:
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToMonitors sends a message to every monitor of a test
// (implements service.Broadcaster)
func (h *Hub) BroadcastToMonitors(testID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		TestID:     testID,
		ToMonitors: true,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToCandidate sends a message to the candidate of one attempt
// (implements service.Broadcaster)
func (h *Hub) BroadcastToCandidate(attemptID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		ToAttempt: attemptID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// DisconnectAttempt force-closes the candidate connection of an attempt
// (implements service.Broadcaster)
func (h *Hub) DisconnectAttempt(attemptID string) {
	h.disconnect <- attemptID
}
