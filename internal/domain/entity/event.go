package entity

import (
	"time"
)

// Статусы жизненного цикла события отражают монотонный переход
// created → lobbyOpen? → isStarted? → isCompleted.
const (
	EventWinnerNone = "no-winner"
)

// Event представляет запланированное событие тривии
type Event struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Theme             string     `gorm:"size:100;not null;default:''" json:"theme"` // пусто = "random"
	StartAt           time.Time  `gorm:"not null;index" json:"start_at"`
	QuestionCount     int        `gorm:"not null;default:10" json:"question_count"`
	MinPlayers        int        `gorm:"not null;default:2" json:"min_players"`
	LobbyOpen         bool       `gorm:"not null;default:false;index" json:"lobby_open"`
	IsStarted         bool       `gorm:"not null;default:false;index" json:"is_started"`
	IsCompleted       bool       `gorm:"not null;default:false;index" json:"is_completed"`
	CompletedAt       *time.Time `gorm:"type:timestamp" json:"completed_at,omitempty"`
	Winner            string     `gorm:"size:100" json:"winner,omitempty"`
	NextEventCreated  bool       `gorm:"not null;default:false;index" json:"next_event_created"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Event) TableName() string {
	return "events"
}

// IsLive возвращает true, если событие начато, но ещё не завершено
func (e *Event) IsLive() bool {
	return e.IsStarted && !e.IsCompleted
}

// IsDue возвращает true, если событие пора переводить в lobby-open
// при попадании его startAt в окно [now, now+window].
func (e *Event) IsDue(now time.Time, window time.Duration) bool {
	if e.LobbyOpen || e.IsCompleted {
		return false
	}
	return !e.StartAt.After(now.Add(window)) && !e.StartAt.Before(now)
}

// IsExpired возвращает true, если событие не завершено, но его время уже прошло.
func (e *Event) IsExpired(now time.Time) bool {
	return !e.IsCompleted && !e.StartAt.After(now)
}
