package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/notify"
)

// Message is pushed to an owner's open connections after each pass.
type Message struct {
	Type   string          `json:"type"`
	Owner  string          `json:"owner"`
	Items  int             `json:"items"`
	Sent   []notify.Notice `json:"sent,omitempty"`
	Failed []notify.Notice `json:"failed,omitempty"`
	Saved  bool            `json:"saved"`
}

// NewPassMessage summarizes a completed pass.
func NewPassMessage(p inventory.Pass) Message {
	msg := Message{
		Type:  "inventory_pass",
		Owner: p.Owner,
		Items: len(p.Items),
		Sent:  p.Sent,
		Saved: p.SaveErr == nil,
	}
	for _, f := range p.Failed {
		msg.Failed = append(msg.Failed, f.Notice)
	}
	return msg
}

// Hub tracks open connections per owner.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.owner]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.owner] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Calling it twice
// is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.owner]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.owner)
		}
	}
	h.mu.Unlock()
}

// BroadcastTo sends msg to every connection of owner only.
func (h *Hub) BroadcastTo(owner string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[owner] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("websocket buffer full, dropping message", "owner", owner)
		}
	}
}

// PassListener adapts the hub to inventory.Listener.
func (h *Hub) PassListener() inventory.Listener {
	return func(owner string, p inventory.Pass) {
		h.BroadcastTo(owner, NewPassMessage(p))
	}
}

// ClientCount returns the number of connected clients across all owners.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
