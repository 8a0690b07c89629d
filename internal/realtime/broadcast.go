package realtime

import (
	"log"
	"sync"
	"time"
)

// BroadcastHub emits to filtered subsets, throttles countdown spam, and
// carries heartbeat liveness (C9, §4.7).
type BroadcastHub struct {
	transport Transport
	filter    *SubscriptionFilter
	registry  *SessionRegistry

	countdownThrottle time.Duration

	mu                 sync.Mutex
	lastGlobalCountdown time.Time
}

func NewBroadcastHub(transport Transport, filter *SubscriptionFilter, registry *SessionRegistry, countdownThrottle time.Duration) *BroadcastHub {
	return &BroadcastHub{
		transport:         transport,
		filter:            filter,
		registry:          registry,
		countdownThrottle: countdownThrottle,
	}
}

// EmitTo bypasses subscription filtering — used for connection-scoped
// acks (authenticationConfirmed, lobbyJoined to the joiner, answerQueued...).
func (h *BroadcastHub) EmitTo(connectionID, event string, payload interface{}) {
	if h.transport == nil {
		return
	}
	if err := h.transport.SendTo(connectionID, event, payload); err != nil {
		log.Printf("[BroadcastHub] drop emit %s to %s: %v", event, connectionID, err)
	}
}

// Broadcast honors the §4.4 subscription table: it is delivered to every
// connected session whose context enables `event` (and, when predicate is
// non-nil, which also satisfies predicate).
func (h *BroadcastHub) Broadcast(event string, payload interface{}, predicate func(*Session) bool) {
	for _, sess := range h.registry.All() {
		if !h.filter.IsEnabled(sess.Context, sess.IsAuthenticated, event) {
			continue
		}
		if predicate != nil && !predicate(sess) {
			continue
		}
		h.EmitTo(sess.ConnectionID, event, payload)
	}
}

// BroadcastThrottled applies a per-client window in addition to Broadcast's
// subscription filtering; eventCountdown additionally observes a global
// window (§4.7).
func (h *BroadcastHub) BroadcastThrottled(event string, payload interface{}, perClientWindow time.Duration, predicate func(*Session) bool) {
	now := time.Now()
	for _, sess := range h.registry.All() {
		if !h.filter.IsEnabled(sess.Context, sess.IsAuthenticated, event) {
			continue
		}
		if predicate != nil && !predicate(sess) {
			continue
		}
		if now.Sub(sess.lastCountdownSentAt) < perClientWindow {
			continue
		}
		sess.lastCountdownSentAt = now
		h.EmitTo(sess.ConnectionID, event, payload)
	}
}

// BroadcastCountdown is eventCountdown's dedicated path: a global throttle
// on top of the per-client one (§4.5, §4.7).
func (h *BroadcastHub) BroadcastCountdown(payload interface{}, predicate func(*Session) bool) {
	h.mu.Lock()
	if time.Since(h.lastGlobalCountdown) < h.countdownThrottle {
		h.mu.Unlock()
		return
	}
	h.lastGlobalCountdown = time.Now()
	h.mu.Unlock()

	h.BroadcastThrottled("eventCountdown", payload, h.countdownThrottle, predicate)
}

// Heartbeat emits `heartbeat` to every connected client (§4.3, every 25s).
func (h *BroadcastHub) Heartbeat() {
	for _, sess := range h.registry.All() {
		h.EmitTo(sess.ConnectionID, "heartbeat", map[string]interface{}{"ts": time.Now().Unix()})
	}
}
