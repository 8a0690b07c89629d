package repository

import (
	"time"

	"github.com/yourusername/trivia-api/internal/domain/entity"
)

// EventRepository — тонкий адаптер над персистентным хранилищем событий
// (C1, §4.1): CRUD + индексированные запросы по временному окну и статусу
// завершения. Списки всегда отсортированы по startAt по возрастанию.
type EventRepository interface {
	Create(event *entity.Event) error
	FindByID(id uint) (*entity.Event, error)
	// FindActiveOrdered возвращает незавершённые события, упорядоченные по startAt.
	FindActiveOrdered() ([]entity.Event, error)
	// FindUpcomingFromNow возвращает незавершённые события с startAt >= now.
	FindUpcomingFromNow(now time.Time) ([]entity.Event, error)
	// FindInWindow возвращает незавершённые события с startAt в [from, to].
	FindInWindow(from, to time.Time) ([]entity.Event, error)
	// FindCompletedSince возвращает завершённые события с completedAt в (t, now]
	// и nextEventCreated == missingNextFlag (обычно false — ещё не прокатан rollover).
	FindCompletedSince(t time.Time, missingNextFlag bool) ([]entity.Event, error)
	// FindNearMinuteBucket возвращает незавершённые события со startAt в пределах
	// ±window от target — используется для атомарной де-дупликации по минутному бакету.
	FindNearMinuteBucket(target time.Time, window time.Duration) ([]entity.Event, error)
	Update(event *entity.Event) error
	Delete(id uint) error
	DeleteBulk(ids []uint) error
}
