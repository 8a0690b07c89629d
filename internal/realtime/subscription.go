package realtime

// SubscriptionFilter derives the per-client allowed outbound event set from
// its declared context, per the declarative table in §4.4. Rather than
// hand-maintain per-mode lists, each event is associated with a predicate
// over (mode, isInLobby, isInQuiz, isSolo) — the table below is the single
// authority; Broadcast Hub consults BuildTable/IsEnabled for every emit
// (§9 "Subscription filter duplication").
type SubscriptionFilter struct{}

func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{}
}

// baselineEvents are always enabled regardless of context (§4.4).
var baselineEvents = map[string]bool{
	"connectionStatus":    true,
	"error":               true,
	"forceLogout":         true,
	"heartbeat":           true,
	"connectionError":     true,
	"connectionRecovered": true,
}

// guestWhitelist is the subset of home-mode informational events an
// unauthenticated client may still receive (§4.4 "guest-whitelist").
var guestWhitelist = map[string]bool{
	"userStats":     true,
	"lobbyStatus":   true,
	"nextEvent":     true,
	"lobbyOpened":   true,
	"eventCountdown": true,
	"lobbyClosed":   true,
	"heartbeat":     true,
}

// eventRule decides whether an event is enabled for a given context.
type eventRule func(ctx Context) bool

func watching(ctx Context) bool {
	return ctx.Mode == ModeOnline || ctx.Mode == ModeQuiz
}

var tableRules = map[string]eventRule{
	"userStats": func(ctx Context) bool {
		return ctx.Mode == ModeHome || ctx.Mode == ModeOnline || ctx.Mode == ModeQuiz
	},
	"nextEvent": func(ctx Context) bool { return ctx.Mode == ModeHome },
	"lobbyStatus": func(ctx Context) bool { return ctx.Mode == ModeHome },
	"lobbyOpened": func(ctx Context) bool { return ctx.Mode == ModeHome },
	"eventCountdown": func(ctx Context) bool {
		return (ctx.Mode == ModeOnline && ctx.IsInLobby)
	},
	"lobbyClosed": func(ctx Context) bool {
		return ctx.Mode == ModeOnline && ctx.IsInLobby
	},
	"lobbyJoined":     rulePlayingOrInLobby,
	"lobbyUpdate":     rulePlayingOrInLobby,
	"lobbyLeft":       rulePlayingOrInLobby,
	"eventCancelled":  rulePlayingOrInLobby,
	"autoStartQuiz":   rulePlayingOrInLobby,
	"eventStarted":    rulePlayingOrInLobby,
	"eventCompleted":  rulePlayingOrInLobby,
	"quizQuestion":    ruleInQuiz,
	"timerUpdate":     ruleInQuiz,
	"answerQueued":    ruleInQuiz,
	"playerStats":     ruleInQuiz,
	"adBreakStarted":  ruleInQuiz,
	"adBreakCountdown": ruleInQuiz,
	"adBreakEnded":    ruleInQuiz,
	"immediateWinner": ruleInQuiz,
	"answerResult":    ruleInQuiz,
	"quizCompleted":   ruleInQuiz,
	"soloQuestions": func(ctx Context) bool {
		return ctx.Mode == ModeSolo
	},
}

// rulePlayingOrInLobby matches the table column "online/quiz watching,
// online inLobby, quiz inQuiz" — any (mode=online|quiz) client, watching or
// actively joined (§4.4 table row for lobbyJoined..eventCompleted).
func rulePlayingOrInLobby(ctx Context) bool {
	return watching(ctx)
}

func ruleInQuiz(ctx Context) bool {
	return ctx.Mode == ModeQuiz && ctx.IsInQuiz
}

// BuildTable computes the full enabled-event map for a context, honoring the
// guest whitelist when the session is unauthenticated.
func (f *SubscriptionFilter) BuildTable(ctx Context, authenticated bool) map[string]bool {
	table := make(map[string]bool, len(baselineEvents)+len(tableRules))
	for event := range baselineEvents {
		table[event] = true
	}
	for event, rule := range tableRules {
		if rule(ctx) {
			table[event] = true
		}
	}
	if !authenticated {
		filtered := make(map[string]bool, len(guestWhitelist))
		for event := range table {
			if guestWhitelist[event] || baselineEvents[event] {
				filtered[event] = true
			}
		}
		return filtered
	}
	return table
}

// IsEnabled reports whether the given event may be delivered under ctx.
func (f *SubscriptionFilter) IsEnabled(ctx Context, authenticated bool, event string) bool {
	return f.BuildTable(ctx, authenticated)[event]
}

// AuthGate enforces the §4.4 authorization gate for setContext, returning a
// CoreError when the requested mode requires authentication the session
// doesn't have.
func AuthGate(ctx Context, authenticated bool) *CoreError {
	switch ctx.Mode {
	case ModeHome, ModeSolo:
		return nil
	case ModeOnline:
		if !authenticated {
			return newErrorWithAction(ErrAuthRequiredForOnline, "authentication required for online mode", "LOGIN")
		}
		return nil
	case ModeQuiz:
		if ctx.IsSolo {
			return nil
		}
		if !authenticated {
			return newErrorWithAction(ErrAuthRequiredForMultiplay, "authentication required for multiplayer quiz", "LOGIN")
		}
		return nil
	default:
		return newError(ErrInvalidMode, "unknown context mode")
	}
}
