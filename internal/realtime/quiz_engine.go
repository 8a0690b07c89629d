package realtime

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/internal/domain/repository"
)

// participantState is the Quiz Engine's per-connection view of a round
// participant (§3 "Quiz Round" participant map, §4.6 step 1).
type participantState struct {
	ConnectionID  string
	UserID        uint
	Username      string
	PhoneNumber   string
	Score         int
	Answers       []AnswerRecord
	IsWatching    bool
	PendingAnswer *PendingAnswer
	FinishedAt    *time.Time
	LastCorrectAt time.Time
}

// round is one complete in-flight Quiz Round (§3). Its fields are mutated
// only under QuizEngine.mu, and every timer goroutine first re-checks that
// e.current is still this round (and, on ticks, that the generation is
// unchanged), so a callback for a round that has been cleared is a no-op.
type round struct {
	Event         *entity.Event
	Questions     []entity.Question
	Participants  map[string]*participantState
	CurrentIndex  int
	TimeLeft      int
	generation    uint64
	stopTimer     chan struct{}
	timerStopOnce sync.Once
}

func (r *round) stop() {
	r.timerStopOnce.Do(func() { close(r.stopTimer) })
}

func (r *round) currentQuestion() *entity.Question {
	if r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Questions) {
		return nil
	}
	return &r.Questions[r.CurrentIndex]
}

// QuizEngine drives the single global synchronous round (C8, §4.6).
type QuizEngine struct {
	mu      sync.Mutex
	current *round
	// generation increases on every round swap; a timer goroutine compares
	// its captured generation against this value before acting, so a
	// callback that fires after the round it belongs to has been replaced
	// or cleared is a silent no-op instead of touching a stale/nil round.
	generation uint64

	questionRepo repository.QuestionRepository
	resultRepo   repository.ResultRepository
	eventRepo    repository.EventRepository
	registry     *SessionRegistry
	hub          *BroadcastHub

	perQuestionDuration time.Duration
	adBreakDuration     time.Duration
	teardownGrace       time.Duration
}

func NewQuizEngine(
	questionRepo repository.QuestionRepository,
	resultRepo repository.ResultRepository,
	eventRepo repository.EventRepository,
	registry *SessionRegistry,
	hub *BroadcastHub,
	perQuestionDuration, adBreakDuration, teardownGrace time.Duration,
) *QuizEngine {
	return &QuizEngine{
		questionRepo:        questionRepo,
		resultRepo:          resultRepo,
		eventRepo:           eventRepo,
		registry:            registry,
		hub:                 hub,
		perQuestionDuration: perQuestionDuration,
		adBreakDuration:     adBreakDuration,
		teardownGrace:       teardownGrace,
	}
}

// IsRoundLive reports whether a round is currently in flight — consulted by
// the Scheduler before it creates/advances events (§4.6 data flow note).
func (e *QuizEngine) IsRoundLive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// StartRound is the hand-off entry point from Lobby Manager (§4.6 step 1).
func (e *QuizEngine) StartRound(event *entity.Event, connectionIDs []string) {
	questions, err := e.questionRepo.GetRandomByTheme(event.Theme, event.QuestionCount)
	if err != nil || len(questions) < event.QuestionCount {
		questions, err = e.questionRepo.GetRandomQuestions(event.QuestionCount)
		if err != nil {
			log.Printf("[QuizEngine] failed to fetch questions for event %d: %v", event.ID, err)
			return
		}
	}

	participants := make(map[string]*participantState, len(connectionIDs))
	for _, cid := range connectionIDs {
		sess, ok := e.registry.Get(cid)
		if !ok {
			continue
		}
		participants[cid] = &participantState{
			ConnectionID: cid,
			UserID:       sess.UserID,
			Username:     sess.Username,
			PhoneNumber:  sess.PhoneNumber,
		}
	}

	r := &round{
		Event:        event,
		Questions:    questions,
		Participants: participants,
		CurrentIndex: 0,
		TimeLeft:     int(e.perQuestionDuration.Seconds()),
		stopTimer:    make(chan struct{}),
	}

	e.mu.Lock()
	e.generation++
	r.generation = e.generation
	e.current = r
	e.mu.Unlock()

	event.IsStarted = true
	if err := e.eventRepo.Update(event); err != nil {
		log.Printf("[QuizEngine] failed to persist isStarted for event %d: %v", event.ID, err)
	}

	for cid, p := range participants {
		e.hub.EmitTo(cid, "eventStarted", map[string]interface{}{"eventId": event.ID, "theme": event.Theme})
		if p.UserID != 0 {
			e.hub.EmitTo(cid, "autoStartQuiz", map[string]interface{}{"eventId": event.ID})
		}
	}

	e.runQuestionPhase(r)
}

// runQuestionPhase emits quizQuestion and starts the 1Hz timer + safety
// timeout (§4.6 step 2). It always reads round state through r, captured
// once at dispatch time, and re-validates against e.generation on every
// tick rather than assuming e.current is still r.
func (e *QuizEngine) runQuestionPhase(r *round) {
	q := r.currentQuestion()
	if q == nil {
		e.finishRound(r)
		return
	}

	e.mu.Lock()
	r.TimeLeft = int(e.perQuestionDuration.Seconds())
	e.mu.Unlock()

	payload := map[string]interface{}{
		"questionId":    q.ID,
		"questionText":  q.QuestionText,
		"responses":     q.Responses,
		"index":         r.CurrentIndex,
		"total":         len(r.Questions),
	}
	e.broadcastToRound(r, "quizQuestion", payload)

	go e.runTimer(r)
}

func (e *QuizEngine) runTimer(r *round) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	deadline := time.NewTimer(e.perQuestionDuration)
	defer deadline.Stop()

	for {
		select {
		case <-r.stopTimer:
			return
		case <-deadline.C:
			e.onQuestionTimerExpired(r)
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.current != r || r.generation != e.generation {
				e.mu.Unlock()
				return
			}
			r.TimeLeft--
			timeLeft := r.TimeLeft
			e.mu.Unlock()

			e.broadcastToRound(r, "timerUpdate", map[string]interface{}{
				"timeLeft":    timeLeft,
				"playerStats": e.playerStatsSnapshot(r),
			})
			if timeLeft <= 0 {
				e.onQuestionTimerExpired(r)
				return
			}
		}
	}
}

func (e *QuizEngine) playerStatsSnapshot(r *round) []map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, map[string]interface{}{
			"userId":     p.UserID,
			"username":   p.Username,
			"score":      p.Score,
			"isWatching": p.IsWatching,
		})
	}
	return out
}

// SubmitAnswer buffers a pending answer (§4.6 step 3), with the
// final-question immediate-win shortcut (§4.6 step 6).
func (e *QuizEngine) SubmitAnswer(connectionID string, questionID uint, answer int) *CoreError {
	e.mu.Lock()
	r := e.current
	if r == nil {
		e.mu.Unlock()
		return newError(ErrSessionNotFound, "no round is live")
	}
	p, ok := r.Participants[connectionID]
	q := r.currentQuestion()
	if !ok || q == nil || q.ID != questionID || p.IsWatching || r.TimeLeft <= 0 {
		e.mu.Unlock()
		return newError(ErrInvalidContextPayload, "answer rejected: stale question, watching, or time expired")
	}
	p.PendingAnswer = &PendingAnswer{QuestionID: questionID, Answer: answer}

	isFinal := r.CurrentIndex == len(r.Questions)-1
	correct := q.IsCorrect(answer)
	e.mu.Unlock()

	e.hub.EmitTo(connectionID, "answerQueued", map[string]interface{}{"questionId": questionID})

	if isFinal && correct {
		e.finalQuestionShortcut(r, p)
	}
	return nil
}

// finalQuestionShortcut implements §4.6 step 6: an immediate win on the
// final question, bypassing the timer entirely.
func (e *QuizEngine) finalQuestionShortcut(r *round, winner *participantState) {
	e.mu.Lock()
	if e.current != r {
		e.mu.Unlock()
		return
	}
	r.stop()
	now := time.Now()
	winner.Score++
	winner.LastCorrectAt = now
	winner.FinishedAt = &now
	e.current = nil
	e.generation++
	e.mu.Unlock()

	identifier := e.persistWinner(r.Event, winner)

	for cid, p := range r.Participants {
		e.hub.EmitTo(cid, "immediateWinner", map[string]interface{}{
			"eventId":  r.Event.ID,
			"winner":   identifier,
			"username": winner.Username,
		})
		e.hub.EmitTo(cid, "quizCompleted", map[string]interface{}{
			"isWinner":     p.ConnectionID == winner.ConnectionID,
			"immediateWin": true,
			"score":        p.Score,
			"answers":      p.Answers,
		})
	}
	e.persistResults(r, winner)

	e.scheduleTeardown(r)
}

// onQuestionTimerExpired runs the tally step (§4.6 step 4) then advances.
func (e *QuizEngine) onQuestionTimerExpired(r *round) {
	e.mu.Lock()
	if e.current != r {
		e.mu.Unlock()
		return
	}
	q := r.currentQuestion()
	if q == nil {
		e.mu.Unlock()
		e.finishRound(r)
		return
	}
	now := time.Now()
	for _, p := range r.Participants {
		if p.IsWatching {
			continue
		}
		if p.PendingAnswer != nil && p.PendingAnswer.QuestionID == q.ID {
			correct := q.IsCorrect(p.PendingAnswer.Answer)
			if correct {
				p.Score++
				p.LastCorrectAt = now
			} else {
				p.IsWatching = true
			}
			p.Answers = append(p.Answers, AnswerRecord{
				QuestionID:  q.ID,
				UserAnswer:  p.PendingAnswer.Answer,
				Correct:     correct,
				SubmittedAt: now,
			})
		} else {
			p.IsWatching = true
			p.Answers = append(p.Answers, AnswerRecord{
				QuestionID:  q.ID,
				UserAnswer:  0,
				Correct:     false,
				SubmittedAt: now,
			})
		}
		p.PendingAnswer = nil
	}
	e.mu.Unlock()

	e.advance(r)
}

// advance moves to the next question, interposing an ad-break before the
// final one (§4.6 step 5).
func (e *QuizEngine) advance(r *round) {
	e.mu.Lock()
	if e.current != r {
		e.mu.Unlock()
		return
	}
	r.CurrentIndex++
	atLast := r.CurrentIndex >= len(r.Questions)
	isPenultimate := r.CurrentIndex == len(r.Questions)-1
	e.mu.Unlock()

	if atLast {
		e.finishRound(r)
		return
	}
	if isPenultimate {
		e.runAdBreak(r)
		return
	}
	e.runQuestionPhase(r)
}

func (e *QuizEngine) runAdBreak(r *round) {
	e.broadcastToRound(r, "adBreakStarted", map[string]interface{}{
		"duration":      int(e.adBreakDuration.Seconds()),
		"isFinalQuestion": true,
	})

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		remaining := int(e.adBreakDuration.Seconds())
		for {
			select {
			case <-r.stopTimer:
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.current != r {
					e.mu.Unlock()
					return
				}
				e.mu.Unlock()
				remaining--
				if remaining <= 0 {
					e.broadcastToRound(r, "adBreakEnded", nil)
					e.runQuestionPhase(r)
					return
				}
				e.broadcastToRound(r, "adBreakCountdown", map[string]interface{}{"timeLeft": remaining})
			}
		}
	}()
}

// finishRound is the terminal tally (§4.6 step 7).
func (e *QuizEngine) finishRound(r *round) {
	e.mu.Lock()
	if e.current != r {
		e.mu.Unlock()
		return
	}
	r.stop()
	e.current = nil
	e.generation++

	candidates := make([]*participantState, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Score > 0 {
			candidates = append(candidates, p)
		}
	}
	e.mu.Unlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].LastCorrectAt.Before(candidates[j].LastCorrectAt)
	})

	var winner *participantState
	identifier := entity.EventWinnerNone
	if len(candidates) > 0 {
		winner = candidates[0]
		identifier = e.persistWinner(r.Event, winner)
	} else {
		e.completeEvent(r.Event, entity.EventWinnerNone)
	}

	totalParticipants := len(r.Participants)
	var winnerScore int
	if winner != nil {
		winnerScore = winner.Score
	}
	e.broadcastToRound(r, "eventCompleted", map[string]interface{}{
		"winner":            identifier,
		"winnerScore":       winnerScore,
		"totalParticipants": totalParticipants,
	})

	for cid, p := range r.Participants {
		e.hub.EmitTo(cid, "quizCompleted", map[string]interface{}{
			"score":    p.Score,
			"answers":  p.Answers,
			"isWinner": winner != nil && p.ConnectionID == winner.ConnectionID,
		})
	}
	e.persistResults(r, winner)

	e.scheduleTeardown(r)
}

// persistWinner writes the completed event record with the winner
// identifier (result rows are written separately by persistResults),
// retrying once with the connectionId identifier on failure (§4.6 failure
// semantics paragraph).
func (e *QuizEngine) persistWinner(event *entity.Event, winner *participantState) string {
	identifier := winnerIdentifierFor(winner)
	if err := e.completeEvent(event, identifier); err != nil {
		log.Printf("[QuizEngine] completeEvent retry with connectionId fallback for event %d: %v", event.ID, err)
		identifier = winner.ConnectionID
		if err := e.completeEvent(event, identifier); err != nil {
			log.Printf("[QuizEngine] completeEvent failed twice for event %d, proceeding with in-memory broadcast only: %v", event.ID, err)
		}
	}
	return identifier
}

func winnerIdentifierFor(p *participantState) string {
	if p.PhoneNumber != "" {
		return p.PhoneNumber
	}
	if p.UserID != 0 {
		return fmt.Sprintf("%d", p.UserID)
	}
	return p.ConnectionID
}

func (e *QuizEngine) completeEvent(event *entity.Event, winner string) error {
	event.IsCompleted = true
	now := time.Now()
	event.CompletedAt = &now
	event.Winner = winner
	event.NextEventCreated = false
	return e.eventRepo.Update(event)
}

func (e *QuizEngine) persistResults(r *round, winner *participantState) {
	for _, p := range r.Participants {
		if p.UserID == 0 {
			continue
		}
		correct := 0
		for _, a := range p.Answers {
			if a.Correct {
				correct++
			}
		}
		result := &entity.EventResult{
			EventID:        r.Event.ID,
			UserID:         p.UserID,
			Username:       p.Username,
			Score:          p.Score,
			CorrectAnswers: correct,
			TotalQuestions: len(r.Questions),
			IsWinner:       winner != nil && p.ConnectionID == winner.ConnectionID,
			CompletedAt:    time.Now(),
		}
		if err := e.resultRepo.SaveResult(result); err != nil {
			log.Printf("[QuizEngine] failed to save result for user %d event %d: %v", p.UserID, r.Event.ID, err)
		}
		for _, a := range p.Answers {
			ua := &entity.UserAnswer{
				UserID:         p.UserID,
				EventID:        r.Event.ID,
				QuestionID:     a.QuestionID,
				SelectedAnswer: a.UserAnswer,
				IsCorrect:      a.Correct,
				SubmittedAt:    a.SubmittedAt,
			}
			if err := e.resultRepo.SaveUserAnswer(ua); err != nil {
				log.Printf("[QuizEngine] failed to save answer log for user %d event %d: %v", p.UserID, r.Event.ID, err)
			}
		}
	}
}

// scheduleTeardown waits the 5s grace before logging the round clear
// (§4.6 step 6-7, §5 "intentional delays"). Round state itself is already
// cleared by finishRound/finalQuestionShortcut under the same lock that
// incremented e.generation, so any timer callback still in flight for this
// round observes the generation mismatch and exits as a no-op.
func (e *QuizEngine) scheduleTeardown(r *round) {
	go func() {
		time.Sleep(e.teardownGrace)
		log.Printf("[QuizEngine] round torn down for event %d", r.Event.ID)
	}()
}

// broadcastToRound delivers to every session subscribed per §4.4's
// `inQuiz` column (mode quiz with isInQuiz set). It is not restricted to
// this round's participant set, so joinInProgress spectators receive these
// too.
func (e *QuizEngine) broadcastToRound(r *round, event string, payload interface{}) {
	e.hub.Broadcast(event, payload, func(s *Session) bool {
		return s.Context.Mode == ModeQuiz && s.Context.IsInQuiz
	})
}

// JoinInProgress registers a mid-round spectator (§4.8 `joinInProgress`):
// no participant state is created, the client simply starts receiving the
// `inQuiz` broadcast set it is already subscribed to.
func (e *QuizEngine) JoinInProgress(connectionID string) *CoreError {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return newError(ErrSessionNotFound, "no round is live")
	}
	return nil
}

// StartSolo returns a standalone question snapshot without creating round
// state (§4.8 `startSoloQuiz`).
func (e *QuizEngine) StartSolo(theme string, count int) ([]entity.Question, error) {
	if theme != "" {
		qs, err := e.questionRepo.GetRandomByTheme(theme, count)
		if err == nil && len(qs) == count {
			return qs, nil
		}
	}
	return e.questionRepo.GetRandomQuestions(count)
}
