package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/carcert/internal/model"
)

// Message is pushed to every connected UI: either an inbox change
// (type inbox_<action>) or a navigation request (type navigate).
type Message struct {
	Type          string               `json:"type"`
	Action        string               `json:"action,omitempty"`
	UnreadCount   int                  `json:"unread_count"`
	Notifications []model.Notification `json:"notifications"`
	Screen        string               `json:"screen,omitempty"`
	Params        map[string]any       `json:"params,omitempty"`
}

// NewInboxMessage builds the feed message for an inbox mutation.
func NewInboxMessage(action string, notifications []model.Notification) Message {
	if notifications == nil {
		notifications = []model.Notification{}
	}
	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	return Message{
		Type:          "inbox_" + action,
		Action:        action,
		UnreadCount:   unread,
		Notifications: notifications,
	}
}

// NewNavigateMessage asks the UI to open screen.
func NewNavigateMessage(screen string, params map[string]any) Message {
	return Message{Type: "navigate", Screen: screen, Params: params}
}

// Hub tracks connected feed clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", n)
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("client disconnected", "clients", n)
	}
}

// Broadcast queues msg for every client. Clients whose buffer is full miss it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "type", msg.Type)
		}
	}
}

// InboxChanged adapts the hub to inbox.ChangeFunc.
func (h *Hub) InboxChanged(action string, notifications []model.Notification) {
	h.Broadcast(NewInboxMessage(action, notifications))
}

// Navigate forwards a navigation request to the UI. It satisfies
// notify.Navigator.
func (h *Hub) Navigate(screen string, params map[string]any) {
	h.Broadcast(NewNavigateMessage(screen, params))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
