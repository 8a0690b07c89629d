package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/internal/domain/repository"
)

// Lobby is the in-memory, at-most-one pre-event staging room (§3 "Lobby").
type Lobby struct {
	Event        *entity.Event
	Participants map[string]bool // connectionId set

	cancelCountdown func()
}

// LobbyManager owns at most one open Lobby (C7, §4.5).
type LobbyManager struct {
	mu sync.Mutex

	current *Lobby

	eventRepo repository.EventRepository
	registry  *SessionRegistry
	hub       *BroadcastHub
	engine    *QuizEngine

	lobbyWindowBefore time.Duration
	lobbyWindowAfter  time.Duration
	countdownTick     time.Duration
}

func NewLobbyManager(eventRepo repository.EventRepository, registry *SessionRegistry, hub *BroadcastHub, lobbyWindowBefore, lobbyWindowAfter time.Duration) *LobbyManager {
	return &LobbyManager{
		eventRepo:         eventRepo,
		registry:          registry,
		hub:               hub,
		lobbyWindowBefore: lobbyWindowBefore,
		lobbyWindowAfter:  lobbyWindowAfter,
		countdownTick:     100 * time.Millisecond,
	}
}

// SetQuizEngine wires the engine after construction (§9 explicit CoreContext
// injection in place of a process-wide global).
func (m *LobbyManager) SetQuizEngine(engine *QuizEngine) {
	m.engine = engine
}

// HasOpenLobby reports whether a lobby currently exists.
func (m *LobbyManager) HasOpenLobby() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// OpenLobby attempts to open a lobby for event, honoring every precondition
// in §4.5; a failed precondition is a silent no-op (logged).
func (m *LobbyManager) OpenLobby(event *entity.Event) {
	now := time.Now()

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		log.Printf("[LobbyManager] refusing to open lobby for event %d: a lobby is already open", event.ID)
		return
	}
	if m.engine != nil && m.engine.IsRoundLive() {
		m.mu.Unlock()
		log.Printf("[LobbyManager] refusing to open lobby for event %d: a quiz round is live", event.ID)
		return
	}
	if !now.Before(event.StartAt) || now.Before(event.StartAt.Add(-m.lobbyWindowBefore)) {
		m.mu.Unlock()
		log.Printf("[LobbyManager] refusing to open lobby for event %d: outside the lobby window", event.ID)
		return
	}

	lobby := &Lobby{Event: event, Participants: make(map[string]bool)}
	m.current = lobby
	m.mu.Unlock()

	event.LobbyOpen = true
	if err := m.eventRepo.Update(event); err != nil {
		log.Printf("[LobbyManager] failed to persist lobbyOpen for event %d: %v", event.ID, err)
	}

	log.Printf("[LobbyManager] lobby opened for event %d (startAt=%s)", event.ID, event.StartAt)
	m.hub.Broadcast("lobbyOpened", lobbyStatusPayload(event, 0), nil)

	m.startCountdown(lobby)
}

func lobbyStatusPayload(event *entity.Event, participants int) map[string]interface{} {
	return map[string]interface{}{
		"eventId":      event.ID,
		"theme":        event.Theme,
		"startAt":      event.StartAt,
		"minPlayers":   event.MinPlayers,
		"participants": participants,
	}
}

func (m *LobbyManager) startCountdown(lobby *Lobby) {
	stop := make(chan struct{})
	var once sync.Once
	lobby.cancelCountdown = func() { once.Do(func() { close(stop) }) }

	go func() {
		ticker := time.NewTicker(m.countdownTick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.mu.Lock()
				if m.current != lobby {
					m.mu.Unlock()
					return
				}
				timeLeft := time.Until(lobby.Event.StartAt)
				participants := len(lobby.Participants)
				m.mu.Unlock()

				if timeLeft <= 0 {
					m.handOffOrCancel(lobby)
					return
				}

				m.hub.BroadcastCountdown(map[string]interface{}{
					"timeLeft":     int(timeLeft.Seconds()),
					"participants": participants,
					"minPlayers":   lobby.Event.MinPlayers,
				}, func(s *Session) bool { return s.Context.IsInLobby || s.Context.Mode == ModeHome })
			}
		}
	}()
}

// handOffOrCancel runs when the countdown reaches zero (§4.5).
func (m *LobbyManager) handOffOrCancel(lobby *Lobby) {
	m.mu.Lock()
	if m.current != lobby {
		m.mu.Unlock()
		return
	}
	participants := make([]string, 0, len(lobby.Participants))
	for cid := range lobby.Participants {
		participants = append(participants, cid)
	}
	m.current = nil
	m.mu.Unlock()

	if len(participants) == 0 {
		lobby.Event.IsCompleted = true
		now := time.Now()
		lobby.Event.CompletedAt = &now
		lobby.Event.Winner = entity.EventWinnerNone
		lobby.Event.NextEventCreated = false
		if err := m.eventRepo.Update(lobby.Event); err != nil {
			log.Printf("[LobbyManager] failed to persist cancellation for event %d: %v", lobby.Event.ID, err)
		}
		log.Printf("[LobbyManager] event %d cancelled: empty lobby", lobby.Event.ID)
		m.hub.Broadcast("eventCancelled", map[string]interface{}{
			"eventId":  lobby.Event.ID,
			"required": lobby.Event.MinPlayers,
			"actual":   0,
		}, nil)
		return
	}

	log.Printf("[LobbyManager] handing off event %d to quiz engine with %d participants", lobby.Event.ID, len(participants))
	if m.engine != nil {
		m.engine.StartRound(lobby.Event, participants)
	}
}

// Join adds a connection to the open lobby (§4.5 join). Auth is required
// for online mode — enforced upstream by the subscription filter's
// AuthGate on setContext, so join itself only checks lobby existence.
func (m *LobbyManager) Join(connectionID string) *CoreError {
	m.mu.Lock()
	lobby := m.current
	if lobby == nil {
		m.mu.Unlock()
		return newError(ErrSessionNotFound, "no lobby is currently open")
	}
	lobby.Participants[connectionID] = true
	count := len(lobby.Participants)
	event := lobby.Event
	m.mu.Unlock()

	m.hub.EmitTo(connectionID, "lobbyJoined", lobbyStatusPayload(event, count))
	m.hub.Broadcast("lobbyUpdate", lobbyStatusPayload(event, count), nil)
	return nil
}

// Leave removes a connection from the open lobby (§4.5 leave).
func (m *LobbyManager) Leave(connectionID string) {
	m.mu.Lock()
	lobby := m.current
	if lobby == nil {
		m.mu.Unlock()
		return
	}
	delete(lobby.Participants, connectionID)
	count := len(lobby.Participants)
	event := lobby.Event
	m.mu.Unlock()

	m.hub.EmitTo(connectionID, "lobbyLeft", lobbyStatusPayload(event, count))
	m.hub.Broadcast("lobbyUpdate", lobbyStatusPayload(event, count), nil)
}

// OnEventUpdated handles a mid-lobby event record change: destroy and,
// if timing still permits, recreate preserving participants (§4.5 last bullet).
func (m *LobbyManager) OnEventUpdated(event *entity.Event) {
	m.mu.Lock()
	lobby := m.current
	if lobby == nil || lobby.Event.ID != event.ID {
		m.mu.Unlock()
		return
	}
	if lobby.cancelCountdown != nil {
		lobby.cancelCountdown()
	}
	preserved := lobby.Participants
	m.current = nil
	m.mu.Unlock()

	m.hub.Broadcast("lobbyClosed", map[string]interface{}{"eventId": event.ID, "reason": "event updated"}, nil)

	now := time.Now()
	if now.Before(event.StartAt.Add(m.lobbyWindowAfter)) && now.After(event.StartAt.Add(-m.lobbyWindowBefore)) {
		m.mu.Lock()
		newLobby := &Lobby{Event: event, Participants: preserved}
		m.current = newLobby
		m.mu.Unlock()
		m.startCountdown(newLobby)
	}
}
