package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/internal/domain/repository"
	"github.com/yourusername/trivia-api/internal/handler/helper"
)

// QuestionHandler exposes the Question Store gateway (C2) as a CRUD
// surface; the realtime core only ever reads through QuestionRepository
// directly, this handler is the out-of-band authoring path (§6).
type QuestionHandler struct {
	questionRepo repository.QuestionRepository
}

func NewQuestionHandler(questionRepo repository.QuestionRepository) *QuestionHandler {
	return &QuestionHandler{questionRepo: questionRepo}
}

type questionResponse struct {
	ID        uint                     `json:"id"`
	Theme     string                   `json:"theme"`
	Question  string                   `json:"question_text"`
	Responses []helper.QuestionOption  `json:"responses"`
}

func toQuestionResponse(q entity.Question) questionResponse {
	return questionResponse{
		ID:        q.ID,
		Theme:     q.Theme,
		Question:  q.QuestionText,
		Responses: helper.ConvertOptionsToObjects(q.Responses),
	}
}

type createQuestionRequest struct {
	Theme           string              `json:"theme"`
	QuestionText    string              `json:"question_text" binding:"required"`
	Responses       entity.StringArray  `json:"responses" binding:"required,len=4"`
	CorrectResponse int                 `json:"correct_response" binding:"required,min=1,max=4"`
}

// Create — POST /questions
func (h *QuestionHandler) Create(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "code": "INVALID_CONTEXT_PAYLOAD"})
		return
	}

	question := &entity.Question{
		Theme:           req.Theme,
		QuestionText:    req.QuestionText,
		Responses:       req.Responses,
		CorrectResponse: req.CorrectResponse,
	}
	if err := h.questionRepo.Create(question); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create question"})
		return
	}
	c.JSON(http.StatusCreated, toQuestionResponse(*question))
}

// List — GET /questions?page=&page_size=
func (h *QuestionHandler) List(c *gin.Context) {
	page, pageSize := pagination(c, 20, 100)
	questions, err := h.questionRepo.List(pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list questions"})
		return
	}

	out := make([]questionResponse, len(questions))
	for i, q := range questions {
		out[i] = toQuestionResponse(q)
	}
	c.JSON(http.StatusOK, gin.H{"questions": out, "page": page, "page_size": pageSize})
}

// GetRandom — GET /questions/random/:limit
func (h *QuestionHandler) GetRandom(c *gin.Context) {
	limit, err := strconv.Atoi(c.Param("limit"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid limit"})
		return
	}

	questions, err := h.questionRepo.GetRandomQuestions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load questions"})
		return
	}
	out := make([]questionResponse, len(questions))
	for i, q := range questions {
		out[i] = toQuestionResponse(q)
	}
	c.JSON(http.StatusOK, gin.H{"questions": out})
}

// GetByTheme — GET /questions/theme/:theme
func (h *QuestionHandler) GetByTheme(c *gin.Context) {
	theme := c.Param("theme")
	questions, err := h.questionRepo.GetByTheme(theme)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load questions"})
		return
	}
	out := make([]questionResponse, len(questions))
	for i, q := range questions {
		out[i] = toQuestionResponse(q)
	}
	c.JSON(http.StatusOK, gin.H{"questions": out})
}

// Get — GET /questions/:id
func (h *QuestionHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	question, err := h.questionRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "question not found"})
		return
	}
	c.JSON(http.StatusOK, toQuestionResponse(*question))
}

type patchQuestionRequest struct {
	Theme           *string             `json:"theme"`
	QuestionText    *string             `json:"question_text"`
	Responses       entity.StringArray  `json:"responses"`
	CorrectResponse *int                `json:"correct_response"`
}

// Patch — PATCH /questions/:id
func (h *QuestionHandler) Patch(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	question, err := h.questionRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "question not found"})
		return
	}

	var req patchQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "code": "INVALID_CONTEXT_PAYLOAD"})
		return
	}
	if req.Theme != nil {
		question.Theme = *req.Theme
	}
	if req.QuestionText != nil {
		question.QuestionText = *req.QuestionText
	}
	if len(req.Responses) > 0 {
		question.Responses = req.Responses
	}
	if req.CorrectResponse != nil {
		question.CorrectResponse = *req.CorrectResponse
	}

	if err := h.questionRepo.Update(question); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to update question"})
		return
	}
	c.JSON(http.StatusOK, toQuestionResponse(*question))
}

// Delete — DELETE /questions/:id
func (h *QuestionHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.questionRepo.Delete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to delete question"})
		return
	}
	c.Status(http.StatusNoContent)
}
