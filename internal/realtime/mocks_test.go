package realtime

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/trivia-api/internal/domain/entity"
)

// ============================================================================
// Моки репозиториев
// ============================================================================

type MockEventRepo struct {
	mock.Mock
}

func (m *MockEventRepo) Create(event *entity.Event) error {
	return m.Called(event).Error(0)
}

func (m *MockEventRepo) FindByID(id uint) (*entity.Event, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Event), args.Error(1)
}

func (m *MockEventRepo) FindActiveOrdered() ([]entity.Event, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Event), args.Error(1)
}

func (m *MockEventRepo) FindUpcomingFromNow(now time.Time) ([]entity.Event, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Event), args.Error(1)
}

func (m *MockEventRepo) FindInWindow(from, to time.Time) ([]entity.Event, error) {
	args := m.Called(from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Event), args.Error(1)
}

func (m *MockEventRepo) FindCompletedSince(t time.Time, missingNextFlag bool) ([]entity.Event, error) {
	args := m.Called(t, missingNextFlag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Event), args.Error(1)
}

func (m *MockEventRepo) FindNearMinuteBucket(target time.Time, window time.Duration) ([]entity.Event, error) {
	args := m.Called(target, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Event), args.Error(1)
}

func (m *MockEventRepo) Update(event *entity.Event) error {
	return m.Called(event).Error(0)
}

func (m *MockEventRepo) Delete(id uint) error {
	return m.Called(id).Error(0)
}

func (m *MockEventRepo) DeleteBulk(ids []uint) error {
	return m.Called(ids).Error(0)
}

type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) Create(question *entity.Question) error {
	return m.Called(question).Error(0)
}

func (m *MockQuestionRepo) CreateBatch(questions []entity.Question) error {
	return m.Called(questions).Error(0)
}

func (m *MockQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) Update(question *entity.Question) error {
	return m.Called(question).Error(0)
}

func (m *MockQuestionRepo) Delete(id uint) error {
	return m.Called(id).Error(0)
}

func (m *MockQuestionRepo) GetRandomQuestions(limit int) ([]entity.Question, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) GetRandomByTheme(theme string, limit int) ([]entity.Question, error) {
	args := m.Called(theme, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) GetByTheme(theme string) ([]entity.Question, error) {
	args := m.Called(theme)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) List(limit, offset int) ([]entity.Question, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

type MockResultRepo struct {
	mock.Mock
}

func (m *MockResultRepo) SaveUserAnswer(answer *entity.UserAnswer) error {
	return m.Called(answer).Error(0)
}

func (m *MockResultRepo) GetUserAnswers(userID uint, eventID uint) ([]entity.UserAnswer, error) {
	args := m.Called(userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.UserAnswer), args.Error(1)
}

func (m *MockResultRepo) GetEventUserAnswers(eventID uint) ([]entity.UserAnswer, error) {
	args := m.Called(eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.UserAnswer), args.Error(1)
}

func (m *MockResultRepo) SaveResult(result *entity.EventResult) error {
	return m.Called(result).Error(0)
}

func (m *MockResultRepo) GetEventResults(eventID uint, limit, offset int) ([]entity.EventResult, int64, error) {
	args := m.Called(eventID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]entity.EventResult), args.Get(1).(int64), args.Error(2)
}

func (m *MockResultRepo) GetUserResult(userID uint, eventID uint) (*entity.EventResult, error) {
	args := m.Called(userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EventResult), args.Error(1)
}

func (m *MockResultRepo) GetUserResults(userID uint, limit, offset int) ([]entity.EventResult, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.EventResult), args.Error(1)
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(user *entity.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserRepo) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByPhoneNumber(phone string) (*entity.User, error) {
	args := m.Called(phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) Update(user *entity.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserRepo) UpdateScore(userID uint, score int64) error {
	return m.Called(userID, score).Error(0)
}

func (m *MockUserRepo) IncrementGamesPlayed(userID uint) error {
	return m.Called(userID).Error(0)
}

func (m *MockUserRepo) List(limit, offset int) ([]entity.User, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepo) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]entity.User), args.Get(1).(int64), args.Error(2)
}

// ============================================================================
// Фейковый Transport: фиксирует каждую отправку вместо реального сокета
// ============================================================================

type sentMessage struct {
	ConnectionID string
	Event        string
	Payload      interface{}
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentMessage
	closed []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) SendTo(connectionID, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ConnectionID: connectionID, Event: event, Payload: payload})
	return nil
}

func (f *fakeTransport) Close(connectionID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connectionID)
}

func (f *fakeTransport) events(connectionID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.ConnectionID == connectionID {
			out = append(out, m.Event)
		}
	}
	return out
}

func (f *fakeTransport) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) wasClosed(connectionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.closed {
		if c == connectionID {
			return true
		}
	}
	return false
}
