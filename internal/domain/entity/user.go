package entity

import (
	"time"
)

// User представляет пользователя в системе. С точки зрения ядра реального
// времени эта запись доступна только на чтение: Session Registry резолвит
// userId → {username, phoneNumber} и никогда не пишет в эту таблицу.
// Идентификация — по номеру телефона и одноразовому коду (см.
// service.OTPService); постоянного пароля запись не хранит.
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"size:50;not null;uniqueIndex" json:"username"`
	PhoneNumber string `gorm:"size:20;not null;uniqueIndex" json:"phone_number"`

	GamesPlayed int64 `gorm:"not null;default:0" json:"games_played"`
	TotalScore  int64 `gorm:"not null;default:0" json:"total_score"`
	WinsCount   int64 `gorm:"not null;default:0;index:idx_users_leaderboard" json:"wins_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}
