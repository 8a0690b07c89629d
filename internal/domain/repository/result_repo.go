package repository

import (
	"github.com/yourusername/trivia-api/internal/domain/entity"
)

// ResultRepository persists the answer log and the final per-event standing
// written by the Quiz Engine's terminal tally and immediate-win paths
// (§4.6 steps 6-7).
type ResultRepository interface {
	SaveUserAnswer(answer *entity.UserAnswer) error
	GetUserAnswers(userID uint, eventID uint) ([]entity.UserAnswer, error)
	GetEventUserAnswers(eventID uint) ([]entity.UserAnswer, error)
	SaveResult(result *entity.EventResult) error
	GetEventResults(eventID uint, limit, offset int) ([]entity.EventResult, int64, error)
	GetUserResult(userID uint, eventID uint) (*entity.EventResult, error)
	GetUserResults(userID uint, limit, offset int) ([]entity.EventResult, error)
}
