package entity

import (
	"time"
)

// UserAnswer представляет одну запись в answer-логе участника раунда:
// {questionId, userAnswer(0 если нет ответа), correct, submittedAt} из §4.6 шаг 4.
type UserAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	EventID        uint      `gorm:"not null;index" json:"event_id"`
	QuestionID     uint      `gorm:"not null;index" json:"question_id"`
	SelectedAnswer int       `gorm:"not null;default:0" json:"selected_answer"` // 0 = не отвечал
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	SubmittedAt    time.Time `gorm:"not null" json:"submitted_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (UserAnswer) TableName() string {
	return "user_answers"
}
