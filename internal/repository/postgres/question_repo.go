package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	apperrors "github.com/yourusername/trivia-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос
func (r *QuestionRepo) Create(question *entity.Question) error {
	return r.db.Create(question).Error
}

// CreateBatch создает пакет вопросов
func (r *QuestionRepo) CreateBatch(questions []entity.Question) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Устанавливаем кодировку UTF-8 внутри транзакции
		if err := tx.Exec("SET CLIENT_ENCODING TO 'UTF8'").Error; err != nil {
			return err
		}
		return tx.Create(&questions).Error
	})
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetByTheme возвращает все вопросы заданной темы
func (r *QuestionRepo) GetByTheme(theme string) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("theme = ?", theme).Order("id").Find(&questions).Error
	return questions, err
}

// GetRandomQuestions возвращает случайные вопросы из базы данных
// Оптимизировано для производительности при больших объёмах данных
func (r *QuestionRepo) GetRandomQuestions(limit int) ([]entity.Question, error) {
	return r.sampleRandom(r.db, limit)
}

// GetRandomByTheme возвращает случайные вопросы заданной темы. Первая попытка
// Quiz Engine при наборе вопросов события — тематических,
// иначе вызывающий код сам обращается к GetRandomQuestions как fallback (§4.6 шаг 1).
func (r *QuestionRepo) GetRandomByTheme(theme string, limit int) ([]entity.Question, error) {
	return r.sampleRandom(r.db.Where("theme = ?", theme), limit)
}

// sampleRandom выбирает limit случайных строк из scope.
func (r *QuestionRepo) sampleRandom(scope *gorm.DB, limit int) ([]entity.Question, error) {
	var questions []entity.Question

	err := scope.Order("RANDOM()").Limit(limit).Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// Update обновляет информацию о вопросе
func (r *QuestionRepo) Update(question *entity.Question) error {
	return r.db.Save(question).Error
}

// Delete удаляет вопрос
func (r *QuestionRepo) Delete(id uint) error {
	return r.db.Delete(&entity.Question{}, id).Error
}

// List возвращает список вопросов с пагинацией
func (r *QuestionRepo) List(limit, offset int) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Limit(limit).Offset(offset).Order("id DESC").Find(&questions).Error
	return questions, err
}
