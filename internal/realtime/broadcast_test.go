package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, transport Transport, countdownThrottle time.Duration) (*BroadcastHub, *SessionRegistry) {
	t.Helper()
	userRepo := new(MockUserRepo)
	registry := NewSessionRegistry(userRepo, newTestJWT(t), transport, time.Hour, time.Hour)
	hub := NewBroadcastHub(transport, NewSubscriptionFilter(), registry, countdownThrottle)
	registry.SetBroadcastHub(hub)
	return hub, registry
}

func TestBroadcastHub_EmitTo(t *testing.T) {
	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, time.Second)
	registry.OnConnect("conn-1")

	hub.EmitTo("conn-1", "custom", map[string]interface{}{"a": 1})

	require.Contains(t, transport.events("conn-1"), "custom")
}

func TestBroadcastHub_Broadcast_RespectsSubscriptionFilter(t *testing.T) {
	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, time.Second)

	registry.OnConnect("home-client")
	registry.OnConnect("quiz-client")

	quizSess, _ := registry.Get("quiz-client")
	quizSess.IsAuthenticated = true // gameplay events are never delivered to guests
	quizSess.Context = Context{Mode: ModeQuiz, IsInQuiz: true}

	hub.Broadcast("quizQuestion", map[string]interface{}{"q": 1}, nil)

	assert.NotContains(t, transport.events("home-client"), "quizQuestion")
	assert.Contains(t, transport.events("quiz-client"), "quizQuestion")
}

func TestBroadcastHub_Broadcast_Predicate(t *testing.T) {
	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, time.Second)

	registry.OnConnect("a")
	registry.OnConnect("b")
	for _, cid := range []string{"a", "b"} {
		s, _ := registry.Get(cid)
		s.IsAuthenticated = true
		s.Context = Context{Mode: ModeQuiz, IsInQuiz: true}
	}

	hub.Broadcast("quizQuestion", nil, func(s *Session) bool { return s.ConnectionID == "a" })

	assert.Contains(t, transport.events("a"), "quizQuestion")
	assert.NotContains(t, transport.events("b"), "quizQuestion")
}

func TestBroadcastHub_BroadcastCountdown_GlobalThrottle(t *testing.T) {
	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, 50*time.Millisecond)
	registry.OnConnect("conn-1")
	sess, _ := registry.Get("conn-1")
	sess.Context = Context{Mode: ModeOnline, IsInLobby: true}

	hub.BroadcastCountdown(map[string]interface{}{"timeLeft": 10}, nil)
	hub.BroadcastCountdown(map[string]interface{}{"timeLeft": 9}, nil)

	assert.Equal(t, 1, transport.count("eventCountdown"))

	time.Sleep(60 * time.Millisecond)
	hub.BroadcastCountdown(map[string]interface{}{"timeLeft": 8}, nil)
	assert.Equal(t, 2, transport.count("eventCountdown"))
}

func TestBroadcastHub_Heartbeat_ReachesEveryConnection(t *testing.T) {
	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, time.Second)
	registry.OnConnect("a")
	registry.OnConnect("b")

	hub.Heartbeat()

	assert.Contains(t, transport.events("a"), "heartbeat")
	assert.Contains(t, transport.events("b"), "heartbeat")
}
