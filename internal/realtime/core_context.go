package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/yourusername/trivia-api/internal/domain/repository"
	"github.com/yourusername/trivia-api/pkg/auth"
)

// CoreContext wires every realtime component together explicitly (§9
// "Cyclic service references"): Scheduler and Quiz Engine each hold a
// pointer to the other's collaborator through a setter called here, rather
// than reaching for a package-level global.
type CoreContext struct {
	Sessions   *SessionRegistry
	Filter     *SubscriptionFilter
	Hub        *BroadcastHub
	Lobby      *LobbyManager
	Engine     *QuizEngine
	Scheduler  *Scheduler

	heartbeatInterval time.Duration
}

// Config collects the tunables the realtime core needs at construction
// (§9 Open Questions, mirrored in internal/config.RealtimeConfig).
type Config struct {
	PerQuestionDuration time.Duration
	AdBreakDuration     time.Duration
	LobbyWindowBefore   time.Duration
	LobbyWindowAfter    time.Duration
	HeartbeatInterval   time.Duration
	CountdownThrottle   time.Duration
	ForceLogoutDelay    time.Duration
	RoundTeardownGrace  time.Duration
	FillLookahead       time.Duration
	FillInterval        time.Duration
	IdleEvictAfter      time.Duration
}

// NewCoreContext constructs and wires C4-C10 in dependency order.
func NewCoreContext(
	cfg Config,
	userRepo repository.UserRepository,
	eventRepo repository.EventRepository,
	questionRepo repository.QuestionRepository,
	resultRepo repository.ResultRepository,
	jwtSvc *auth.JWTService,
	transport Transport,
) *CoreContext {
	registry := NewSessionRegistry(userRepo, jwtSvc, transport, cfg.ForceLogoutDelay, cfg.IdleEvictAfter)
	filter := NewSubscriptionFilter()
	hub := NewBroadcastHub(transport, filter, registry, cfg.CountdownThrottle)
	registry.SetBroadcastHub(hub)

	lobby := NewLobbyManager(eventRepo, registry, hub, cfg.LobbyWindowBefore, cfg.LobbyWindowAfter)
	engine := NewQuizEngine(questionRepo, resultRepo, eventRepo, registry, hub, cfg.PerQuestionDuration, cfg.AdBreakDuration, cfg.RoundTeardownGrace)
	lobby.SetQuizEngine(engine)

	scheduler := NewScheduler(eventRepo, lobby, cfg.FillLookahead, cfg.FillInterval, cfg.LobbyWindowAfter)
	scheduler.SetQuizEngine(engine)

	return &CoreContext{
		Sessions:  registry,
		Filter:    filter,
		Hub:       hub,
		Lobby:     lobby,
		Engine:    engine,
		Scheduler: scheduler,

		heartbeatInterval: cfg.HeartbeatInterval,
	}
}

// Start launches the Scheduler and the heartbeat loop.
func (c *CoreContext) Start() error {
	if err := c.Scheduler.Start(); err != nil {
		return err
	}
	go c.heartbeatLoop()
	return nil
}

func (c *CoreContext) heartbeatLoop() {
	interval := c.heartbeatInterval
	if interval <= 0 {
		interval = 25 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	evictTicker := time.NewTicker(60 * time.Second)
	defer evictTicker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Hub.Heartbeat()
		case <-evictTicker.C:
			c.Sessions.EvictIdle()
		}
	}
}

// Stop halts the Scheduler's periodic loops.
func (c *CoreContext) Stop() {
	c.Scheduler.Stop()
}

// OnConnect is the transport-layer entry point for a new connection.
func (c *CoreContext) OnConnect(connectionID string) {
	c.Sessions.OnConnect(connectionID)
}

// OnDisconnect cascades connectionID out of every map that could hold it
// (§5 "Disconnect cascades").
func (c *CoreContext) OnDisconnect(connectionID string) {
	c.Lobby.Leave(connectionID)
	c.Sessions.OnDisconnect(connectionID)
}

// setContextPayload mirrors the inbound `setContext` message body (§4.8).
type setContextPayload struct {
	Mode      string `json:"mode"`
	IsSolo    bool   `json:"isSolo"`
	IsInLobby bool   `json:"isInLobby"`
	IsInQuiz  bool   `json:"isInQuiz"`
}

// Dispatch routes one decoded inbound message to its handling component
// (§4.8's table). raw is the message's `data`/`payload` field, still
// encoded; handlers decode only what they need.
func (c *CoreContext) Dispatch(connectionID, messageType string, raw json.RawMessage) *CoreError {
	c.Sessions.Touch(connectionID)

	switch messageType {
	case "authenticate":
		var p struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return newError(ErrInvalidContextPayload, "malformed authenticate payload")
		}
		return c.Sessions.Authenticate(connectionID, p.Token)

	case "setContext":
		var p setContextPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return newError(ErrInvalidContextPayload, "malformed setContext payload")
		}
		return c.handleSetContext(connectionID, p)

	case "joinLobby":
		return c.Lobby.Join(connectionID)

	case "leaveLobby":
		c.Lobby.Leave(connectionID)
		return nil

	case "joinInProgress":
		return c.Engine.JoinInProgress(connectionID)

	case "submitAnswer":
		var p struct {
			QuestionID uint `json:"questionId"`
			Answer     int  `json:"answer"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return newError(ErrInvalidContextPayload, "malformed submitAnswer payload")
		}
		return c.Engine.SubmitAnswer(connectionID, p.QuestionID, p.Answer)

	case "startSoloQuiz":
		var p struct {
			Theme string `json:"theme"`
		}
		_ = json.Unmarshal(raw, &p)
		questions, err := c.Engine.StartSolo(p.Theme, 10)
		if err != nil {
			return newError(ErrInvalidContextPayload, "failed to build solo quiz")
		}
		c.Hub.EmitTo(connectionID, "soloQuestions", questions)
		return nil

	case "checkEvents":
		go c.Scheduler.fillTick()
		go c.Scheduler.lobbyOpenTick()
		return nil

	case "heartbeat_ack":
		c.Sessions.Touch(connectionID)
		return nil

	default:
		log.Printf("[CoreContext] unknown inbound message type %q from %s", messageType, connectionID)
		return newError(ErrInvalidContextPayload, "unknown message type")
	}
}

// handleSetContext enforces the auth gate, tears down the previous
// context's resources, and installs the new one (§4.4, §5 "Cancellation").
func (c *CoreContext) handleSetContext(connectionID string, p setContextPayload) *CoreError {
	sess, ok := c.Sessions.Get(connectionID)
	if !ok {
		return newError(ErrSessionNotFound, "no session for connection")
	}

	newCtx := Context{
		Mode:      Mode(p.Mode),
		IsSolo:    p.IsSolo,
		IsInLobby: p.IsInLobby,
		IsInQuiz:  p.IsInQuiz,
	}
	switch newCtx.Mode {
	case ModeHome, ModeSolo, ModeOnline, ModeQuiz:
	default:
		return newError(ErrInvalidMode, "unknown context mode")
	}

	if gateErr := AuthGate(newCtx, sess.IsAuthenticated); gateErr != nil {
		return gateErr
	}

	prev := sess.Context
	// quiz mode leaves remove from Quiz Engine only if no round is live;
	// online mode leaves remove from Lobby (§4.4 "previous mode cleanup").
	if prev.Mode == ModeQuiz && newCtx.Mode != ModeQuiz && !c.Engine.IsRoundLive() {
		// nothing to release beyond participant state, which already lives
		// only for the round's lifetime inside the Engine.
	}
	if prev.Mode == ModeOnline && newCtx.Mode != ModeOnline {
		c.Lobby.Leave(connectionID)
	}

	sess.Context = newCtx
	return nil
}
