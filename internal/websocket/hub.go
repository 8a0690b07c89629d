package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yourusername/trivia-api/internal/realtime"
)

// Dispatcher is the inbound half of the Transport Bindings (C10): the hub
// decodes only the message envelope, then asks Dispatcher to route the
// payload to the realtime core. Implemented by *realtime.CoreContext.
type Dispatcher interface {
	OnConnect(connectionID string)
	OnDisconnect(connectionID string)
	Dispatch(connectionID, messageType string, raw json.RawMessage) *realtime.CoreError
}

// inboundEnvelope is the wire shape of every inbound client message.
type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// outboundEnvelope is the wire shape of every outbound emission.
type outboundEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub is the single-process client registry (§5 Non-goal: no horizontal
// scale-out, so no sharding). It implements realtime.Transport and owns
// the register/unregister/broadcast serialization directly, with no
// per-shard split.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // connectionId -> Client

	register   chan *Client
	unregister chan *Client

	dispatcher Dispatcher
	pubsub     PubSubProvider
}

// NewHub constructs a Hub without a Dispatcher: the Hub (a Transport) and
// the realtime CoreContext (a Dispatcher) each need a reference to the
// other, so wiring is two-phase — construct the Hub, build CoreContext
// with the Hub as its Transport, then call SetDispatcher (§9 "Cyclic
// service references").
func NewHub(pubsub PubSubProvider) *Hub {
	if pubsub == nil {
		pubsub = &NoOpPubSub{}
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pubsub:     pubsub,
	}
}

// SetDispatcher completes the two-phase wiring described above.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Run processes (un)registration serially; call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ConnectionID] = c
			h.mu.Unlock()
			h.dispatcher.OnConnect(c.ConnectionID)

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c.ConnectionID]
			if ok {
				delete(h.clients, c.ConnectionID)
			}
			h.mu.Unlock()
			if ok {
				h.dispatcher.OnDisconnect(c.ConnectionID)
			}
		}
	}
}

// SendTo implements realtime.Transport: emission to a disconnected
// connection is dropped silently (§4.7).
func (h *Hub) SendTo(connectionID string, event string, payload interface{}) error {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	body, err := json.Marshal(outboundEnvelope{Type: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal outbound %s: %w", event, err)
	}
	if !c.enqueue(body) {
		return fmt.Errorf("send buffer full for conn %s", connectionID)
	}
	return nil
}

// Close implements realtime.Transport.
func (h *Hub) Close(connectionID string, reason string) {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.closeSend()
	c.conn.Close()
}

// handleMessage is the per-connection message handler passed to
// Client.StartPumps; it decodes the envelope and forwards to Dispatcher.
func (h *Hub) handleMessage(message []byte, client *Client) error {
	var env inboundEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Printf("[websocket] malformed envelope from conn %s: %v", client.ConnectionID, err)
		h.SendTo(client.ConnectionID, "error", map[string]string{"code": "INVALID_CONTEXT_PAYLOAD", "message": "malformed message envelope"})
		return nil
	}

	if coreErr := h.dispatcher.Dispatch(client.ConnectionID, env.Type, env.Data); coreErr != nil {
		h.SendTo(client.ConnectionID, "error", coreErr)
	}
	return nil
}

// Connect wraps a freshly-upgraded websocket.Conn into a Client and starts
// its pumps.
func (h *Hub) Connect(conn *websocket.Conn) *Client {
	c := NewClient(h, conn)
	c.StartPumps(h.handleMessage)
	return c
}
