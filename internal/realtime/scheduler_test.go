package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/trivia-api/internal/domain/entity"
)

func TestScheduler_DeduplicateAtStartup_KeepsEarliestPerBucket(t *testing.T) {
	eventRepo := new(MockEventRepo)
	bucket := time.Now().Truncate(time.Minute).Add(time.Minute)
	later := entity.Event{ID: 1, StartAt: bucket.Add(40 * time.Second)}
	earlier := entity.Event{ID: 2, StartAt: bucket.Add(5 * time.Second)}
	eventRepo.On("FindUpcomingFromNow", mock.Anything).Return([]entity.Event{later, earlier}, nil)
	eventRepo.On("DeleteBulk", []uint{1}).Return(nil)

	s := NewScheduler(eventRepo, nil, time.Hour, time.Minute, 5*time.Minute)
	s.deduplicateAtStartup()

	eventRepo.AssertCalled(t, "DeleteBulk", []uint{1})
}

func TestScheduler_DeduplicateAtStartup_NoDuplicatesIsNoOp(t *testing.T) {
	eventRepo := new(MockEventRepo)
	eventRepo.On("FindUpcomingFromNow", mock.Anything).Return([]entity.Event{
		{ID: 1, StartAt: time.Now().Add(time.Minute)},
		{ID: 2, StartAt: time.Now().Add(2 * time.Minute)},
	}, nil)

	s := NewScheduler(eventRepo, nil, time.Hour, time.Minute, 5*time.Minute)
	s.deduplicateAtStartup()

	eventRepo.AssertNotCalled(t, "DeleteBulk", mock.Anything)
}

func TestScheduler_FillTick_CreatesOnMissOnly(t *testing.T) {
	eventRepo := new(MockEventRepo)
	// 90s horizon at one-minute intervals => two ensureEventNear calls (now, now+60s).
	eventRepo.On("FindNearMinuteBucket", mock.Anything, time.Minute).Return([]entity.Event{}, nil).Once()
	eventRepo.On("FindNearMinuteBucket", mock.Anything, time.Minute).Return([]entity.Event{{ID: 9}}, nil).Once()
	eventRepo.On("Create", mock.AnythingOfType("*entity.Event")).Return(nil)

	s := NewScheduler(eventRepo, nil, 90*time.Second, time.Minute, 5*time.Minute)
	s.FillTick()

	eventRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestScheduler_LobbyOpenTick_SkipsEventsAlreadyOpenOrCompleted(t *testing.T) {
	eventRepo := new(MockEventRepo)
	due := []entity.Event{
		{ID: 1, LobbyOpen: true},
		{ID: 2, IsCompleted: true},
		{ID: 3, StartAt: time.Now().Add(time.Minute), MinPlayers: 2},
	}
	eventRepo.On("FindInWindow", mock.Anything, mock.Anything).Return(due, nil)
	eventRepo.On("Update", mock.AnythingOfType("*entity.Event")).Return(nil)

	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, time.Second)
	lobby := NewLobbyManager(eventRepo, registry, hub, 5*time.Minute, time.Minute)

	s := NewScheduler(eventRepo, lobby, time.Hour, time.Minute, 5*time.Minute)
	s.LobbyOpenTick()

	require.True(t, lobby.HasOpenLobby())
	require.Equal(t, uint(3), lobby.current.Event.ID)
	lobby.current.cancelCountdown()
}

func TestScheduler_LobbyOpenTick_SkipsWhenRoundLive(t *testing.T) {
	eventRepo := new(MockEventRepo)
	transport := newFakeTransport()
	hub, registry := newTestHub(t, transport, time.Second)
	lobby := NewLobbyManager(eventRepo, registry, hub, 5*time.Minute, time.Minute)

	engine := NewQuizEngine(new(MockQuestionRepo), new(MockResultRepo), eventRepo, registry, hub, time.Second, time.Second, time.Second)
	// Force a live round without going through StartRound's question lookup.
	engine.mu.Lock()
	engine.current = &round{Event: &entity.Event{ID: 1}, stopTimer: make(chan struct{})}
	engine.mu.Unlock()

	s := NewScheduler(eventRepo, lobby, time.Hour, time.Minute, 5*time.Minute)
	s.SetQuizEngine(engine)

	s.LobbyOpenTick()

	eventRepo.AssertNotCalled(t, "FindInWindow", mock.Anything, mock.Anything)
}

func TestScheduler_RolloverTick_CreatesSuccessorAndMarksFlag(t *testing.T) {
	eventRepo := new(MockEventRepo)
	completedAt := time.Now().Add(-30 * time.Second)
	completed := entity.Event{ID: 1, Theme: "t", QuestionCount: 10, MinPlayers: 2, IsCompleted: true, CompletedAt: &completedAt}
	eventRepo.On("FindCompletedSince", mock.Anything, false).Return([]entity.Event{completed}, nil)
	eventRepo.On("Create", mock.AnythingOfType("*entity.Event")).Return(nil)
	eventRepo.On("Update", mock.AnythingOfType("*entity.Event")).Return(nil)

	s := NewScheduler(eventRepo, nil, time.Hour, time.Minute, 5*time.Minute)
	s.rolloverTick()

	eventRepo.AssertCalled(t, "Create", mock.AnythingOfType("*entity.Event"))
	eventRepo.AssertCalled(t, "Update", mock.MatchedBy(func(e *entity.Event) bool {
		return e.ID == 1 && e.NextEventCreated
	}))
}

func TestScheduler_ExpiryTick_CompletesExpiredEvents(t *testing.T) {
	eventRepo := new(MockEventRepo)
	active := []entity.Event{
		{ID: 1, StartAt: time.Now().Add(-time.Hour)},
		{ID: 2, StartAt: time.Now().Add(time.Hour)},
	}
	eventRepo.On("FindActiveOrdered").Return(active, nil)
	eventRepo.On("Update", mock.MatchedBy(func(e *entity.Event) bool { return e.ID == 1 })).Return(nil)

	s := NewScheduler(eventRepo, nil, time.Hour, time.Minute, 5*time.Minute)
	s.expiryTick()

	eventRepo.AssertNumberOfCalls(t, "Update", 1)
}

func TestScheduler_IsRoundLive_NilEngineIsFalse(t *testing.T) {
	eventRepo := new(MockEventRepo)
	s := NewScheduler(eventRepo, nil, time.Hour, time.Minute, 5*time.Minute)
	require.False(t, s.isRoundLive())
}
