package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/trivia-api/internal/domain/repository"
	"github.com/yourusername/trivia-api/internal/handler/dto"
)

// UserHandler serves leaderboard and per-user history reads (C3 User Store
// gateway, §6 ambient surface outside the realtime core).
type UserHandler struct {
	userRepo   repository.UserRepository
	resultRepo repository.ResultRepository
}

func NewUserHandler(userRepo repository.UserRepository, resultRepo repository.ResultRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo, resultRepo: resultRepo}
}

// GetLeaderboard — GET /api/users/leaderboard?page=&page_size=
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	page, pageSize := pagination(c, 10, 100)

	users, total, err := h.userRepo.GetLeaderboard(pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}

	entries := make([]*dto.LeaderboardUserDTO, len(users))
	for i, u := range users {
		entries[i] = &dto.LeaderboardUserDTO{
			Rank:       (page-1)*pageSize + i + 1,
			UserID:     u.ID,
			Username:   u.Username,
			WinsCount:  u.WinsCount,
			TotalScore: u.TotalScore,
		}
	}

	c.JSON(http.StatusOK, dto.PaginatedLeaderboardResponse{
		Users:   entries,
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	})
}

// GetMyResults — GET /api/users/me/results?page=&page_size= (requires auth middleware).
func (h *UserHandler) GetMyResults(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	page, pageSize := pagination(c, 10, 50)
	results, err := h.resultRepo.GetUserResults(userID.(uint), pageSize, (page-1)*pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"page":      page,
		"page_size": pageSize,
	})
}

func pagination(c *gin.Context, defaultSize, maxSize int) (page, pageSize int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultSize
	} else if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
