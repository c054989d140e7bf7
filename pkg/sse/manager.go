package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
)

// Event is a single server-sent event addressed to one user.
type Event struct {
	UserID  string
	Type    string
	Payload interface{}
}

type client struct {
	userID string
	send   chan Event
}

// Manager fans server-sent events out to connected clients per user.
type Manager struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	events     chan Event
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, 256),
	}
}

// Run processes register/unregister/event traffic. Call in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			m.clients[c] = struct{}{}
			m.mu.Unlock()
			log.Printf("[SSE] Client connected (user %s, total %d)", c.userID, m.clientCount())
		case c := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				close(c.send)
			}
			m.mu.Unlock()
			log.Printf("[SSE] Client disconnected (user %s, total %d)", c.userID, m.clientCount())
		case ev := <-m.events:
			m.mu.RLock()
			for c := range m.clients {
				if ev.UserID != "" && c.userID != ev.UserID {
					continue
				}
				select {
				case c.send <- ev:
				default:
					// Slow consumer, drop the event rather than block the hub.
				}
			}
			m.mu.RUnlock()
		}
	}
}

func (m *Manager) clientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// SendToUser queues an event for every connection of the given user.
func (m *Manager) SendToUser(userID string, eventType string, payload interface{}) {
	select {
	case m.events <- Event{UserID: userID, Type: eventType, Payload: payload}:
	default:
		log.Printf("[SSE] Event queue full, dropping %s for user %s", eventType, userID)
	}
}

// Broadcast queues an event for every connected client.
func (m *Manager) Broadcast(eventType string, payload interface{}) {
	select {
	case m.events <- Event{Type: eventType, Payload: payload}:
	default:
		log.Printf("[SSE] Event queue full, dropping broadcast %s", eventType)
	}
}

// ServeHTTP streams events to one authenticated connection until the
// client goes away.
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	cl := &client{userID: userID, send: make(chan Event, 16)}
	m.register <- cl
	defer func() { m.unregister <- cl }()

	c.Writer.Flush()

	for {
		select {
		case ev, ok := <-cl.send:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				log.Printf("[SSE] Failed to marshal payload for %s: %v", ev.Type, err)
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
