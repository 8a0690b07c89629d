package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionFilter_BaselineEventsAlwaysEnabled(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeHome}

	for _, event := range []string{"connectionStatus", "error", "forceLogout", "heartbeat"} {
		assert.True(t, f.IsEnabled(ctx, false, event), "event %s should always be enabled", event)
	}
}

func TestSubscriptionFilter_HomeMode(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeHome}

	assert.True(t, f.IsEnabled(ctx, true, "nextEvent"))
	assert.True(t, f.IsEnabled(ctx, true, "lobbyStatus"))
	assert.True(t, f.IsEnabled(ctx, true, "lobbyOpened"))
	assert.False(t, f.IsEnabled(ctx, true, "quizQuestion"))
	assert.False(t, f.IsEnabled(ctx, true, "lobbyJoined"))
}

func TestSubscriptionFilter_OnlineModeInLobby(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeOnline, IsInLobby: true}

	assert.True(t, f.IsEnabled(ctx, true, "eventCountdown"))
	assert.True(t, f.IsEnabled(ctx, true, "lobbyClosed"))
	assert.True(t, f.IsEnabled(ctx, true, "lobbyJoined"))
}

func TestSubscriptionFilter_OnlineModeNotInLobby(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeOnline, IsInLobby: false}

	// eventCountdown/lobbyClosed require IsInLobby even in online mode.
	assert.False(t, f.IsEnabled(ctx, true, "eventCountdown"))
	assert.False(t, f.IsEnabled(ctx, true, "lobbyClosed"))
	// but the watching-column events (lobbyJoined etc) are still enabled.
	assert.True(t, f.IsEnabled(ctx, true, "lobbyJoined"))
	assert.True(t, f.IsEnabled(ctx, true, "eventStarted"))
}

func TestSubscriptionFilter_QuizMode(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeQuiz, IsInQuiz: true}

	assert.True(t, f.IsEnabled(ctx, true, "quizQuestion"))
	assert.True(t, f.IsEnabled(ctx, true, "timerUpdate"))
	assert.True(t, f.IsEnabled(ctx, true, "answerResult"))

	notInQuiz := Context{Mode: ModeQuiz, IsInQuiz: false}
	assert.False(t, f.IsEnabled(notInQuiz, true, "quizQuestion"))
}

func TestSubscriptionFilter_SoloMode(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeSolo, IsSolo: true}

	assert.True(t, f.IsEnabled(ctx, true, "soloQuestions"))
	assert.False(t, f.IsEnabled(ctx, true, "quizQuestion"))
}

func TestSubscriptionFilter_GuestWhitelist(t *testing.T) {
	f := NewSubscriptionFilter()
	ctx := Context{Mode: ModeHome}

	// An unauthenticated guest still gets the informational home-mode set.
	assert.True(t, f.IsEnabled(ctx, false, "nextEvent"))
	assert.True(t, f.IsEnabled(ctx, false, "lobbyStatus"))
	assert.True(t, f.IsEnabled(ctx, false, "heartbeat"))

	// But never anything outside the whitelist, even if the mode would
	// otherwise allow it for an authenticated session.
	onlineCtx := Context{Mode: ModeOnline}
	assert.False(t, f.IsEnabled(onlineCtx, false, "lobbyJoined"))
}

func TestAuthGate(t *testing.T) {
	cases := []struct {
		name          string
		ctx           Context
		authenticated bool
		wantErr       bool
		wantCode      string
	}{
		{"home always allowed", Context{Mode: ModeHome}, false, false, ""},
		{"solo always allowed", Context{Mode: ModeSolo, IsSolo: true}, false, false, ""},
		{"online requires auth", Context{Mode: ModeOnline}, false, true, ErrAuthRequiredForOnline},
		{"online authenticated ok", Context{Mode: ModeOnline}, true, false, ""},
		{"solo quiz bypasses auth", Context{Mode: ModeQuiz, IsSolo: true}, false, false, ""},
		{"multiplayer quiz requires auth", Context{Mode: ModeQuiz, IsSolo: false}, false, true, ErrAuthRequiredForMultiplay},
		{"multiplayer quiz authenticated ok", Context{Mode: ModeQuiz, IsSolo: false}, true, false, ""},
		{"unknown mode rejected", Context{Mode: "bogus"}, true, true, ErrInvalidMode},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthGate(tc.ctx, tc.authenticated)
			if tc.wantErr {
				if assert.NotNil(t, err) {
					assert.Equal(t, tc.wantCode, err.Code)
				}
				return
			}
			assert.Nil(t, err)
		})
	}
}
