package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	apperrors "github.com/yourusername/trivia-api/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository
type ResultRepo struct {
	db *gorm.DB
}

// NewResultRepo создает новый репозиторий результатов
func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveUserAnswer сохраняет ответ пользователя
func (r *ResultRepo) SaveUserAnswer(answer *entity.UserAnswer) error {
	return r.db.Create(answer).Error
}

// GetUserAnswers возвращает все ответы пользователя для конкретного события
func (r *ResultRepo) GetUserAnswers(userID uint, eventID uint) ([]entity.UserAnswer, error) {
	var answers []entity.UserAnswer
	err := r.db.Where("user_id = ? AND event_id = ?", userID, eventID).
		Order("submitted_at").
		Find(&answers).Error
	return answers, err
}

// GetEventUserAnswers возвращает все ответы всех пользователей для события.
// Quiz Engine ведёт подсчёт в памяти и этот метод не вызывает.
func (r *ResultRepo) GetEventUserAnswers(eventID uint) ([]entity.UserAnswer, error) {
	var answers []entity.UserAnswer
	err := r.db.Where("event_id = ?", eventID).Find(&answers).Error
	return answers, err
}

// SaveResult сохраняет итоговый результат пользователя
func (r *ResultRepo) SaveResult(result *entity.EventResult) error {
	return r.db.Create(result).Error
}

// GetEventResults возвращает все результаты для события, отсортированные по рангу, с пагинацией
func (r *ResultRepo) GetEventResults(eventID uint, limit, offset int) ([]entity.EventResult, int64, error) {
	var results []entity.EventResult
	var total int64

	tx := r.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if tx.Error != nil {
		return nil, 0, tx.Error
	}

	if err := tx.Model(&entity.EventResult{}).Where("event_id = ?", eventID).Count(&total).Error; err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	err := tx.Where("event_id = ?", eventID).
		Order("rank ASC, score DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// GetUserResult возвращает результат пользователя для конкретного события
func (r *ResultRepo) GetUserResult(userID uint, eventID uint) (*entity.EventResult, error) {
	var result entity.EventResult
	err := r.db.Where("user_id = ? AND event_id = ?", userID, eventID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetUserResults возвращает все результаты пользователя с пагинацией
func (r *ResultRepo) GetUserResults(userID uint, limit, offset int) ([]entity.EventResult, error) {
	var results []entity.EventResult
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	return results, err
}
