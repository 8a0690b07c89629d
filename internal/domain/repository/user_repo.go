package repository

import (
	"github.com/yourusername/trivia-api/internal/domain/entity"
)

// UserRepository — User Store gateway (C3): резолв идентичности пользователя
// по id (username, phoneNumber); остальные операции — внешняя CRUD-поверхность
// вне ядра реального времени, сохранённая как ambient-слой персистентности.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByPhoneNumber(phone string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	Update(user *entity.User) error
	UpdateScore(userID uint, score int64) error
	IncrementGamesPlayed(userID uint) error
	List(limit, offset int) ([]entity.User, error)
	GetLeaderboard(limit, offset int) ([]entity.User, int64, error)
}
