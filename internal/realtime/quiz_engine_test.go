package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/trivia-api/internal/domain/entity"
)

func twoQuestions() []entity.Question {
	return []entity.Question{
		{ID: 1, Theme: "t", QuestionText: "q1", Responses: entity.StringArray{"a", "b", "c", "d"}, CorrectResponse: 1},
		{ID: 2, Theme: "t", QuestionText: "q2", Responses: entity.StringArray{"a", "b", "c", "d"}, CorrectResponse: 2},
	}
}

// TimeLeft is tracked in whole seconds (int(Duration.Seconds())), so the
// per-question duration must be at least 1s or every submission is rejected
// as "time expired" the instant the question opens.
func newTestQuizEngine(t *testing.T, questionRepo *MockQuestionRepo, resultRepo *MockResultRepo, eventRepo *MockEventRepo, registry *SessionRegistry, hub *BroadcastHub) *QuizEngine {
	t.Helper()
	return NewQuizEngine(questionRepo, resultRepo, eventRepo, registry, hub, time.Second, time.Second, 10*time.Millisecond)
}

func setupEngineWithSession(t *testing.T, userID uint) (*QuizEngine, *MockQuestionRepo, *MockResultRepo, *MockEventRepo, *SessionRegistry, *fakeTransport, string) {
	t.Helper()
	transport := newFakeTransport()
	userRepo := new(MockUserRepo)
	registry := NewSessionRegistry(userRepo, newTestJWT(t), transport, time.Hour, time.Hour)
	hub := NewBroadcastHub(transport, NewSubscriptionFilter(), registry, time.Millisecond)
	registry.SetBroadcastHub(hub)

	questionRepo := new(MockQuestionRepo)
	resultRepo := new(MockResultRepo)
	eventRepo := new(MockEventRepo)

	cid := "conn-1"
	registry.OnConnect(cid)
	sess, _ := registry.Get(cid)
	sess.UserID = userID
	sess.Username = "alice"
	sess.IsAuthenticated = true
	sess.Context = Context{Mode: ModeQuiz, IsInQuiz: true}

	engine := newTestQuizEngine(t, questionRepo, resultRepo, eventRepo, registry, hub)
	return engine, questionRepo, resultRepo, eventRepo, registry, transport, cid
}

func TestQuizEngine_IsRoundLive(t *testing.T) {
	engine, questionRepo, _, eventRepo, _, _, _ := setupEngineWithSession(t, 1)
	assert.False(t, engine.IsRoundLive())

	event := &entity.Event{ID: 1, Theme: "t", QuestionCount: 2}
	questionRepo.On("GetRandomByTheme", "t", 2).Return(twoQuestions(), nil)
	eventRepo.On("Update", event).Return(nil)

	engine.StartRound(event, []string{"conn-1"})
	defer func() {
		engine.mu.Lock()
		if engine.current != nil {
			engine.current.stop()
		}
		engine.mu.Unlock()
	}()

	assert.True(t, engine.IsRoundLive())
}

func TestQuizEngine_StartRound_FallsBackToRandomQuestionsWhenThemeShort(t *testing.T) {
	engine, questionRepo, _, eventRepo, _, transport, cid := setupEngineWithSession(t, 1)

	event := &entity.Event{ID: 1, Theme: "t", QuestionCount: 2}
	questionRepo.On("GetRandomByTheme", "t", 2).Return([]entity.Question{twoQuestions()[0]}, nil)
	questionRepo.On("GetRandomQuestions", 2).Return(twoQuestions(), nil)
	eventRepo.On("Update", event).Return(nil)

	engine.StartRound(event, []string{cid})
	defer func() {
		engine.mu.Lock()
		if engine.current != nil {
			engine.current.stop()
		}
		engine.mu.Unlock()
	}()

	questionRepo.AssertCalled(t, "GetRandomQuestions", 2)
	assert.Contains(t, transport.events(cid), "eventStarted")
	assert.Contains(t, transport.events(cid), "quizQuestion")
}

func TestQuizEngine_SubmitAnswer_RejectsWhenNoRoundLive(t *testing.T) {
	engine, _, _, _, _, _, cid := setupEngineWithSession(t, 1)

	coreErr := engine.SubmitAnswer(cid, 1, 1)
	require.NotNil(t, coreErr)
	assert.Equal(t, ErrSessionNotFound, coreErr.Code)
}

func TestQuizEngine_SubmitAnswer_FinalQuestionImmediateWin(t *testing.T) {
	engine, questionRepo, resultRepo, eventRepo, _, transport, cid := setupEngineWithSession(t, 9)

	single := []entity.Question{{ID: 1, Theme: "t", QuestionText: "q1", Responses: entity.StringArray{"a", "b", "c", "d"}, CorrectResponse: 1}}
	event := &entity.Event{ID: 1, Theme: "t", QuestionCount: 1}
	questionRepo.On("GetRandomByTheme", "t", 1).Return(single, nil)
	eventRepo.On("Update", event).Return(nil)
	resultRepo.On("SaveResult", mock.AnythingOfType("*entity.EventResult")).Return(nil)
	resultRepo.On("SaveUserAnswer", mock.AnythingOfType("*entity.UserAnswer")).Return(nil)

	engine.StartRound(event, []string{cid})

	coreErr := engine.SubmitAnswer(cid, 1, 1)
	require.Nil(t, coreErr)

	require.Eventually(t, func() bool {
		return !engine.IsRoundLive()
	}, time.Second, 5*time.Millisecond)

	assert.True(t, event.IsCompleted)
	assert.Contains(t, transport.events(cid), "immediateWinner")
	assert.Contains(t, transport.events(cid), "quizCompleted")
}

func TestQuizEngine_SubmitAnswer_RejectsWrongQuestionID(t *testing.T) {
	engine, questionRepo, _, eventRepo, _, _, cid := setupEngineWithSession(t, 1)

	event := &entity.Event{ID: 1, Theme: "t", QuestionCount: 2}
	questionRepo.On("GetRandomByTheme", "t", 2).Return(twoQuestions(), nil)
	eventRepo.On("Update", event).Return(nil)
	engine.StartRound(event, []string{cid})
	defer func() {
		engine.mu.Lock()
		if engine.current != nil {
			engine.current.stop()
		}
		engine.mu.Unlock()
	}()

	coreErr := engine.SubmitAnswer(cid, 999, 1)
	require.NotNil(t, coreErr)
	assert.Equal(t, ErrInvalidContextPayload, coreErr.Code)
}

func TestQuizEngine_TimerExpiry_UnansweredQuestionsRunRoundToCompletion(t *testing.T) {
	engine, questionRepo, resultRepo, eventRepo, _, transport, cid := setupEngineWithSession(t, 5)

	event := &entity.Event{ID: 1, Theme: "t", QuestionCount: 2}
	questionRepo.On("GetRandomByTheme", "t", 2).Return(twoQuestions(), nil)
	eventRepo.On("Update", event).Return(nil)
	resultRepo.On("SaveResult", mock.AnythingOfType("*entity.EventResult")).Return(nil)
	resultRepo.On("SaveUserAnswer", mock.AnythingOfType("*entity.UserAnswer")).Return(nil)

	engine.StartRound(event, []string{cid})

	// Never answer; both questions time out, ending the round.
	require.Eventually(t, func() bool {
		return !engine.IsRoundLive()
	}, 6*time.Second, 20*time.Millisecond)

	assert.Contains(t, transport.events(cid), "eventCompleted")
	assert.Contains(t, transport.events(cid), "quizCompleted")
}

func TestQuizEngine_JoinInProgress(t *testing.T) {
	engine, questionRepo, _, eventRepo, _, _, cid := setupEngineWithSession(t, 1)

	coreErr := engine.JoinInProgress(cid)
	require.NotNil(t, coreErr)
	assert.Equal(t, ErrSessionNotFound, coreErr.Code)

	event := &entity.Event{ID: 1, Theme: "t", QuestionCount: 2}
	questionRepo.On("GetRandomByTheme", "t", 2).Return(twoQuestions(), nil)
	eventRepo.On("Update", event).Return(nil)
	engine.StartRound(event, []string{cid})
	defer func() {
		engine.mu.Lock()
		if engine.current != nil {
			engine.current.stop()
		}
		engine.mu.Unlock()
	}()

	assert.Nil(t, engine.JoinInProgress(cid))
}

func TestQuizEngine_StartSolo_PrefersTheme(t *testing.T) {
	engine, questionRepo, _, _, _, _, _ := setupEngineWithSession(t, 1)

	questionRepo.On("GetRandomByTheme", "science", 2).Return(twoQuestions(), nil)

	qs, err := engine.StartSolo("science", 2)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	questionRepo.AssertCalled(t, "GetRandomByTheme", "science", 2)
	questionRepo.AssertNotCalled(t, "GetRandomQuestions", mock.Anything)
}

func TestQuizEngine_StartSolo_FallsBackWhenThemeEmpty(t *testing.T) {
	engine, questionRepo, _, _, _, _, _ := setupEngineWithSession(t, 1)

	questionRepo.On("GetRandomQuestions", 2).Return(twoQuestions(), nil)

	qs, err := engine.StartSolo("", 2)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

