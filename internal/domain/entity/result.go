package entity

import (
	"time"
)

// EventResult представляет итоговый результат участия в событии.
// Записывается Quiz Engine на терминальной раздаче (§4.6 шаг 7) и на
// немедленной победе (§4.6 шаг 6), по одной записи на участника.
type EventResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EventID        uint      `gorm:"not null;index;uniqueIndex:idx_user_event" json:"event_id"`
	UserID         uint      `gorm:"not null;index;uniqueIndex:idx_user_event" json:"user_id"`
	Username       string    `gorm:"size:50;not null" json:"username"`
	Score          int       `gorm:"not null;default:0" json:"score"`
	CorrectAnswers int       `gorm:"not null;default:0" json:"correct_answers"`
	TotalQuestions int       `gorm:"not null;default:0" json:"total_questions"`
	Rank           int       `gorm:"not null;default:0;index:idx_event_rank" json:"rank"`
	IsWinner       bool      `gorm:"not null;default:false" json:"is_winner"`
	IsEliminated   bool      `gorm:"not null;default:false" json:"is_eliminated"`
	CompletedAt    time.Time `gorm:"not null" json:"completed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (EventResult) TableName() string {
	return "event_results"
}
