package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/trivia-api/internal/domain/entity"
	apperrors "github.com/yourusername/trivia-api/internal/pkg/errors"
)

// EventRepo реализует repository.EventRepository (C1, §4.1)
type EventRepo struct {
	db *gorm.DB
}

// NewEventRepo создает новый репозиторий событий
func NewEventRepo(db *gorm.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Create создает новое событие. Конфликт по минутному бакету (unique index
// на floor(start_at/60s)) проявляется как unique violation — см. §9
// "Storage de-duplication race": атомарный find-or-create по минутному бакету.
func (r *EventRepo) Create(event *entity.Event) error {
	err := r.db.Create(event).Error
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("event near startAt=%s already exists: %w", event.StartAt, apperrors.ErrConflict)
	}
	return err
}

// FindByID возвращает событие по ID
func (r *EventRepo) FindByID(id uint) (*entity.Event, error) {
	var event entity.Event
	err := r.db.First(&event, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// FindActiveOrdered возвращает незавершённые события, упорядоченные по startAt
func (r *EventRepo) FindActiveOrdered() ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.Where("is_completed = ?", false).Order("start_at ASC").Find(&events).Error
	return events, err
}

// FindUpcomingFromNow возвращает незавершённые события с startAt >= now
func (r *EventRepo) FindUpcomingFromNow(now time.Time) ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.Where("is_completed = ? AND start_at >= ?", false, now).
		Order("start_at ASC").Find(&events).Error
	return events, err
}

// FindInWindow возвращает незавершённые события со startAt в [from, to]
func (r *EventRepo) FindInWindow(from, to time.Time) ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.Where("is_completed = ? AND start_at BETWEEN ? AND ?", false, from, to).
		Order("start_at ASC").Find(&events).Error
	return events, err
}

// FindCompletedSince возвращает завершённые события с completedAt в (t, now]
// и nextEventCreated == missingNextFlag
func (r *EventRepo) FindCompletedSince(t time.Time, missingNextFlag bool) ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.Where("is_completed = ? AND next_event_created = ? AND completed_at > ? AND completed_at <= ?",
		true, missingNextFlag, t, time.Now()).
		Order("start_at ASC").Find(&events).Error
	return events, err
}

// FindNearMinuteBucket возвращает незавершённые события со startAt в пределах
// ±window от target — базовый запрос для атомарной де-дупликации по минутному бакету.
func (r *EventRepo) FindNearMinuteBucket(target time.Time, window time.Duration) ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.Where("is_completed = ? AND start_at BETWEEN ? AND ?",
		false, target.Add(-window), target.Add(window)).
		Order("start_at ASC").Find(&events).Error
	return events, err
}

// Update сохраняет все поля события
func (r *EventRepo) Update(event *entity.Event) error {
	return r.db.Save(event).Error
}

// Delete удаляет событие
func (r *EventRepo) Delete(id uint) error {
	return r.db.Delete(&entity.Event{}, id).Error
}

// DeleteBulk удаляет набор событий одним запросом — используется де-дупликацией
// при старте (§4.2: "keep the earliest and delete the rest").
func (r *EventRepo) DeleteBulk(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Delete(&entity.Event{}, ids).Error
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
