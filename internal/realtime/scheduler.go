package realtime

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/internal/domain/repository"
)

// Scheduler runs the four cooperative periodic tasks of C4 (§4.2) on top of
// a cron.Cron instance with second-precision `@every` schedules. Each task
// is single-flight: a scheduling mutex makes a late-firing tick skip rather
// than queue behind a still-running one.
type Scheduler struct {
	cron *cron.Cron

	eventRepo repository.EventRepository
	lobby     *LobbyManager
	engine    *QuizEngine

	fillMu, lobbyMu, rolloverMu, expiryMu sync.Mutex

	fillHorizon    time.Duration
	fillInterval   time.Duration
	lobbyWindow    time.Duration
	rolloverLookback time.Duration
	rolloverDelay  time.Duration
}

func NewScheduler(eventRepo repository.EventRepository, lobby *LobbyManager, fillHorizon, fillInterval, lobbyWindow time.Duration) *Scheduler {
	return &Scheduler{
		cron:             cron.New(cron.WithSeconds()),
		eventRepo:        eventRepo,
		lobby:            lobby,
		fillHorizon:      fillHorizon,
		fillInterval:     fillInterval,
		lobbyWindow:      lobbyWindow,
		rolloverLookback: 2 * time.Minute,
		rolloverDelay:    60 * time.Second,
	}
}

// SetQuizEngine wires the engine after construction, resolving the
// scheduler↔quiz-engine cyclic reference explicitly (§9 "Cyclic service
// references") rather than through a shared global.
func (s *Scheduler) SetQuizEngine(engine *QuizEngine) {
	s.engine = engine
}

// Start registers the four loops and runs the startup de-duplication pass.
func (s *Scheduler) Start() error {
	s.deduplicateAtStartup()

	if _, err := s.cron.AddFunc("@every 60s", s.fillTick); err != nil {
		return fmt.Errorf("scheduler: register fill loop: %w", err)
	}
	if _, err := s.cron.AddFunc("@every 30s", s.lobbyOpenTick); err != nil {
		return fmt.Errorf("scheduler: register lobby-open loop: %w", err)
	}
	if _, err := s.cron.AddFunc("@every 30s", s.rolloverTick); err != nil {
		return fmt.Errorf("scheduler: register completion-rollover loop: %w", err)
	}
	if _, err := s.cron.AddFunc("@every 30s", s.expiryTick); err != nil {
		return fmt.Errorf("scheduler: register expiry loop: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop drains in-flight cron jobs and halts the loops.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// isRoundLive reports whether the Quiz Engine is mid-round; the scheduler
// must never create or advance events while true (§4.2 last bullet).
func (s *Scheduler) isRoundLive() bool {
	return s.engine != nil && s.engine.IsRoundLive()
}

// deduplicateAtStartup keeps the earliest event per 1-minute bucket among
// upcoming events, deleting the rest (§4.2 "De-duplication pass").
func (s *Scheduler) deduplicateAtStartup() {
	now := time.Now()
	upcoming, err := s.eventRepo.FindUpcomingFromNow(now)
	if err != nil {
		log.Printf("[Scheduler] startup de-dup: failed to load upcoming events: %v", err)
		return
	}

	buckets := make(map[int64]entity.Event)
	var toDelete []uint
	for _, e := range upcoming {
		bucket := e.StartAt.Truncate(time.Minute).Unix()
		if existing, ok := buckets[bucket]; ok {
			if e.StartAt.Before(existing.StartAt) {
				toDelete = append(toDelete, existing.ID)
				buckets[bucket] = e
			} else {
				toDelete = append(toDelete, e.ID)
			}
			continue
		}
		buckets[bucket] = e
	}

	if len(toDelete) == 0 {
		return
	}
	if err := s.eventRepo.DeleteBulk(toDelete); err != nil {
		log.Printf("[Scheduler] startup de-dup: failed to delete %d duplicate events: %v", len(toDelete), err)
		return
	}
	log.Printf("[Scheduler] startup de-dup: removed %d duplicate events", len(toDelete))
}

// fillTick ensures a sequence of non-completed events spans [now, now+horizon]
// at one-minute intervals (§4.2 "Fill loop").
func (s *Scheduler) fillTick() {
	if !s.fillMu.TryLock() {
		return
	}
	defer s.fillMu.Unlock()

	now := time.Now()
	for t := now; t.Before(now.Add(s.fillHorizon)); t = t.Add(s.fillInterval) {
		s.ensureEventNear(t)
	}
}

// ensureEventNear implements the atomic-per-minute-bucket creation: query for
// a non-completed event within ±60s of target, creating one only on a miss.
func (s *Scheduler) ensureEventNear(target time.Time) {
	existing, err := s.eventRepo.FindNearMinuteBucket(target, time.Minute)
	if err != nil {
		log.Printf("[Scheduler] fill: lookup near %s failed: %v", target, err)
		return
	}
	if len(existing) > 0 {
		return
	}

	bucket := target.Truncate(time.Minute)
	event := &entity.Event{
		Theme:         "",
		StartAt:       bucket,
		QuestionCount: 10,
		MinPlayers:    2,
	}
	if err := s.eventRepo.Create(event); err != nil {
		log.Printf("[Scheduler] fill: create event near %s failed: %v", bucket, err)
		return
	}
	log.Printf("[Scheduler] fill: created %s for %s", fmt.Sprintf("Auto Event - %s", bucket.Format("15:04")), bucket)
}

// LobbyOpenTick exposes the lobby-open loop for a manual out-of-band
// trigger (§6 "POST /events/force-lobby-check").
func (s *Scheduler) LobbyOpenTick() {
	s.lobbyOpenTick()
}

// FillTick exposes the fill loop for a manual out-of-band trigger
// (§6 "checkEvents" ingress handler, §4.8).
func (s *Scheduler) FillTick() {
	s.fillTick()
}

// lobbyOpenTick hands off events entering the lobby window to Lobby Manager
// (§4.2 "Lobby-open loop").
func (s *Scheduler) lobbyOpenTick() {
	if !s.lobbyMu.TryLock() {
		return
	}
	defer s.lobbyMu.Unlock()
	if s.isRoundLive() {
		return
	}

	now := time.Now()
	due, err := s.eventRepo.FindInWindow(now, now.Add(s.lobbyWindow))
	if err != nil {
		log.Printf("[Scheduler] lobby-open: lookup failed: %v", err)
		return
	}
	for i := range due {
		e := &due[i]
		if e.LobbyOpen || e.IsCompleted {
			continue
		}
		s.lobby.OpenLobby(e)
	}
}

// rolloverTick creates the successor for recently completed events that
// haven't been rolled over yet (§4.2 "Completion-rollover loop").
func (s *Scheduler) rolloverTick() {
	if !s.rolloverMu.TryLock() {
		return
	}
	defer s.rolloverMu.Unlock()
	if s.isRoundLive() {
		return
	}

	now := time.Now()
	completed, err := s.eventRepo.FindCompletedSince(now.Add(-s.rolloverLookback), false)
	if err != nil {
		log.Printf("[Scheduler] rollover: lookup failed: %v", err)
		return
	}
	for i := range completed {
		e := &completed[i]
		if e.CompletedAt == nil {
			continue
		}
		next := e.CompletedAt.Add(s.rolloverDelay)
		if next.Before(now.Add(s.rolloverDelay)) {
			next = now.Add(s.rolloverDelay)
		}
		successor := &entity.Event{
			Theme:         e.Theme,
			StartAt:       next,
			QuestionCount: e.QuestionCount,
			MinPlayers:    e.MinPlayers,
		}
		if err := s.eventRepo.Create(successor); err != nil {
			log.Printf("[Scheduler] rollover: failed to create successor for event %d: %v", e.ID, err)
			continue
		}
		e.NextEventCreated = true
		if err := s.eventRepo.Update(e); err != nil {
			log.Printf("[Scheduler] rollover: failed to mark event %d rolled over: %v", e.ID, err)
		}
	}
}

// expiryTick marks events whose startAt has passed as completed so the
// rollover loop can pick them up (§4.2 "Expiry loop").
func (s *Scheduler) expiryTick() {
	if !s.expiryMu.TryLock() {
		return
	}
	defer s.expiryMu.Unlock()
	if s.isRoundLive() {
		return
	}

	now := time.Now()
	active, err := s.eventRepo.FindActiveOrdered()
	if err != nil {
		log.Printf("[Scheduler] expiry: lookup failed: %v", err)
		return
	}
	for i := range active {
		e := &active[i]
		if !e.IsExpired(now) {
			continue
		}
		e.IsCompleted = true
		e.CompletedAt = &now
		e.NextEventCreated = false
		if err := s.eventRepo.Update(e); err != nil {
			log.Printf("[Scheduler] expiry: failed to expire event %d: %v", e.ID, err)
		}
	}
}
