package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/internal/domain/repository"
	"github.com/yourusername/trivia-api/internal/realtime"
)

// EventHandler exposes the Event Store gateway (C1) and a manual trigger
// into the Event Scheduler (C4) as an HTTP surface (§6). The scheduler's
// own cron ticks remain authoritative for normal operation; these routes
// exist for operator/admin visibility and manual nudges.
type EventHandler struct {
	eventRepo repository.EventRepository
	lobby     *realtime.LobbyManager
	scheduler *realtime.Scheduler
}

func NewEventHandler(eventRepo repository.EventRepository, lobby *realtime.LobbyManager, scheduler *realtime.Scheduler) *EventHandler {
	return &EventHandler{eventRepo: eventRepo, lobby: lobby, scheduler: scheduler}
}

// GetNext — GET /events/next: the earliest non-completed upcoming event.
func (h *EventHandler) GetNext(c *gin.Context) {
	events, err := h.eventRepo.FindUpcomingFromNow(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load upcoming events"})
		return
	}
	if len(events) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "no upcoming event"})
		return
	}
	c.JSON(http.StatusOK, events[0])
}

// GetActive — GET /events/active: the currently live event, if any.
func (h *EventHandler) GetActive(c *gin.Context) {
	events, err := h.eventRepo.FindActiveOrdered()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load active events"})
		return
	}
	for _, e := range events {
		if e.IsLive() {
			c.JSON(http.StatusOK, e)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "no active event"})
}

type createEventRequest struct {
	Theme             string    `json:"theme"`
	StartDate         time.Time `json:"startDate" binding:"required"`
	NumberOfQuestions int       `json:"numberOfQuestions" binding:"required,min=1"`
	MinPlayers        int       `json:"minPlayers"`
}

// Create — POST /events {theme,startDate,numberOfQuestions,minPlayers?}
func (h *EventHandler) Create(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "code": "INVALID_CONTEXT_PAYLOAD"})
		return
	}
	minPlayers := req.MinPlayers
	if minPlayers <= 0 {
		minPlayers = 2
	}

	event := &entity.Event{
		Theme:         req.Theme,
		StartAt:       req.StartDate,
		QuestionCount: req.NumberOfQuestions,
		MinPlayers:    minPlayers,
	}
	if err := h.eventRepo.Create(event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create event"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// OpenLobby — POST /events/:id/open-lobby: manual lobby-open trigger,
// bypassing the scheduler's own window check.
func (h *EventHandler) OpenLobby(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	event, err := h.eventRepo.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "event not found"})
		return
	}
	if event.LobbyOpen || event.IsCompleted {
		c.JSON(http.StatusConflict, gin.H{"message": "event already past lobby-open"})
		return
	}

	h.lobby.OpenLobby(event)
	c.JSON(http.StatusOK, gin.H{"message": "lobby opened"})
}

// ReadyForLobby — GET /events/ready-for-lobby: events due within the
// scheduler's lobby window (mirrors lobbyOpenTick's own selection).
func (h *EventHandler) ReadyForLobby(c *gin.Context) {
	now := time.Now()
	events, err := h.eventRepo.FindInWindow(now, now.Add(2*time.Minute))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load events"})
		return
	}
	ready := make([]entity.Event, 0, len(events))
	for _, e := range events {
		if !e.LobbyOpen && !e.IsCompleted {
			ready = append(ready, e)
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": ready})
}

type updateEventRequest struct {
	Theme             *string    `json:"theme"`
	StartDate         *time.Time `json:"startDate"`
	NumberOfQuestions *int       `json:"numberOfQuestions"`
	MinPlayers        *int       `json:"minPlayers"`
}

// Update — PUT /events/:id
func (h *EventHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	event, err := h.eventRepo.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "event not found"})
		return
	}

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "code": "INVALID_CONTEXT_PAYLOAD"})
		return
	}
	if req.Theme != nil {
		event.Theme = *req.Theme
	}
	if req.StartDate != nil {
		event.StartAt = *req.StartDate
	}
	if req.NumberOfQuestions != nil {
		event.QuestionCount = *req.NumberOfQuestions
	}
	if req.MinPlayers != nil {
		event.MinPlayers = *req.MinPlayers
	}

	if err := h.eventRepo.Update(event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to update event"})
		return
	}
	h.lobby.OnEventUpdated(event)
	c.JSON(http.StatusOK, event)
}

// ForceUpdate — POST /events/:id/force-update: re-runs OnEventUpdated
// against the stored row without changing any field, useful after an
// out-of-band database edit.
func (h *EventHandler) ForceUpdate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	event, err := h.eventRepo.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "event not found"})
		return
	}
	h.lobby.OnEventUpdated(event)
	c.JSON(http.StatusOK, event)
}

// ForceLobbyCheck — POST /events/force-lobby-check: manually fires the
// scheduler's lobby-open tick outside its normal cron cadence.
func (h *EventHandler) ForceLobbyCheck(c *gin.Context) {
	go h.scheduler.LobbyOpenTick()
	c.JSON(http.StatusOK, gin.H{"message": "lobby check triggered"})
}
