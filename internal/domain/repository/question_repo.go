package repository

import (
	"github.com/yourusername/trivia-api/internal/domain/entity"
)

// QuestionRepository — Question Store gateway (C2): случайная выборка и
// тематическая фильтрация вопросов. Вопросы неизменяемы с точки зрения ядра.
type QuestionRepository interface {
	Create(question *entity.Question) error
	CreateBatch(questions []entity.Question) error
	GetByID(id uint) (*entity.Question, error)
	Update(question *entity.Question) error
	Delete(id uint) error
	// GetRandomQuestions возвращает limit случайных вопросов независимо от темы.
	GetRandomQuestions(limit int) ([]entity.Question, error)
	// GetRandomByTheme возвращает limit случайных вопросов заданной темы.
	GetRandomByTheme(theme string, limit int) ([]entity.Question, error)
	GetByTheme(theme string) ([]entity.Question, error)
	List(limit, offset int) ([]entity.Question, error)
}
