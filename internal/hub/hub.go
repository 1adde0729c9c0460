// Package hub tracks live real-time connections and their token
// subscriptions, and fans broadcast events out to interested clients.
package hub

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"meme-aggregator/internal/domain"
	"meme-aggregator/internal/observability"
)

// ID is the opaque handle for one registered connection. Callers never
// touch the underlying socket through the hub.
type ID string

// Sender delivers one encoded frame to a client. Implementations wrap the
// actual websocket connection.
type Sender interface {
	Send(data []byte) error
}

// Hub is the broadcast fan-out. An empty subscription set means the
// connection receives every broadcast.
type Hub struct {
	logger *log.Logger

	mu            sync.RWMutex
	conns         map[ID]Sender
	subscriptions map[ID]map[string]struct{}
}

// New creates an empty Hub.
func New(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(os.Stdout, "[hub] ", log.LstdFlags)
	}
	return &Hub{
		logger:        logger,
		conns:         make(map[ID]Sender),
		subscriptions: make(map[ID]map[string]struct{}),
	}
}

// Register adds a connection with an empty subscription set (all topics)
// and returns its handle.
func (h *Hub) Register(sender Sender) ID {
	id := ID(uuid.NewString())

	h.mu.Lock()
	h.conns[id] = sender
	h.subscriptions[id] = make(map[string]struct{})
	n := len(h.conns)
	h.mu.Unlock()

	observability.UpdateLiveConnections(n)
	h.logger.Printf("client connected (%d live)", n)
	return id
}

// Unregister removes the connection from the registry and drops its
// subscriptions. Safe to call with an already-removed handle.
func (h *Hub) Unregister(id ID) {
	h.mu.Lock()
	delete(h.conns, id)
	delete(h.subscriptions, id)
	n := len(h.conns)
	h.mu.Unlock()

	observability.UpdateLiveConnections(n)
	h.logger.Printf("client disconnected (%d live)", n)
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// HandleMessage dispatches one decoded client frame for the connection.
// Unknown message types are rejected by the decoder.
func (h *Hub) HandleMessage(id ID, data []byte) error {
	msg, err := domain.DecodeClientMessage(data)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscriptions[id]
	if !ok {
		// Already disconnected; nothing to update.
		return nil
	}

	switch msg.Type {
	case domain.MessageSubscribe:
		for _, addr := range msg.Tokens {
			set[addr] = struct{}{}
		}
		h.logger.Printf("client subscribed to %d tokens", len(msg.Tokens))
	case domain.MessageUnsubscribe:
		for _, addr := range msg.Tokens {
			delete(set, addr)
		}
		h.logger.Printf("client unsubscribed from %d tokens", len(msg.Tokens))
	}
	return nil
}

// BroadcastPriceUpdate fans a price update out to every connection whose
// subscription set is empty or contains the address.
func (h *Hub) BroadcastPriceUpdate(address string, token domain.Token) {
	h.broadcast(address, domain.MessagePriceUpdate, domain.NewPriceUpdate(token))
}

// BroadcastVolumeSpike fans a volume spike event out. oldVolume must be
// positive; the scheduler guarantees this.
func (h *Hub) BroadcastVolumeSpike(address string, oldVolume, newVolume float64) {
	h.broadcast(address, domain.MessageVolumeSpike, domain.NewVolumeSpike(address, oldVolume, newVolume))
}

// broadcast delivers payload to all interested connections. A send failure
// on one connection is logged and skipped; it never interrupts delivery to
// the rest.
func (h *Hub) broadcast(address, messageType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("encode %s: %v", messageType, err)
		return
	}

	h.mu.RLock()
	targets := make(map[ID]Sender)
	for id, set := range h.subscriptions {
		_, subscribed := set[address]
		if len(set) == 0 || subscribed {
			targets[id] = h.conns[id]
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for id, sender := range targets {
		if err := sender.Send(data); err != nil {
			observability.RecordBroadcastError()
			h.logger.Printf("send to %s failed: %v", id, err)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		observability.RecordBroadcast(messageType, delivered)
		h.logger.Printf("broadcast %s for %s to %d clients", messageType, address, delivered)
	}
}
