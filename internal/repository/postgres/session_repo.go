package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create создает новую сессию
func (r *SessionRepo) Create(session *entity.QuizSession) error {
	return r.db.Create(session).Error
}

// GetByID возвращает сессию по ID
func (r *SessionRepo) GetByID(id uint) (*entity.QuizSession, error) {
	var session entity.QuizSession
	err := r.db.First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetWithQuestions возвращает сессию вместе с вопросами
func (r *SessionRepo) GetWithQuestions(id uint) (*entity.QuizSession, error) {
	var session entity.QuizSession
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("round, position")
	}).First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// List возвращает список сессий с фильтрами и total count
func (r *SessionRepo) List(filters repository.SessionFilters, limit, offset int) ([]entity.QuizSession, int64, error) {
	var sessions []entity.QuizSession
	var total int64

	query := r.db.Model(&entity.QuizSession{})

	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.Search != "" {
		search := "%" + filters.Search + "%"
		query = query.Where("title ILIKE ? OR venue_name ILIKE ?", search, search)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).Order("id DESC").Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// Mutate выполняет fn над сессией под блокировкой строки (SELECT ... FOR UPDATE).
// Пока транзакция держит блокировку, конкурентные Mutate той же сессии ждут,
// затем перечитывают уже обновленное состояние. Это дает ровно одну логическую
// мутацию в полете на сессию без глобальной блокировки.
// Ожидаемые ошибки fn (ErrStaleAdvance, ErrSessionNotActive) откатывают
// транзакцию и возвращаются вызывающему как есть.
func (r *SessionRepo) Mutate(id uint, fn func(session *entity.QuizSession) error) (*entity.QuizSession, error) {
	var session entity.QuizSession

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&session, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if err := fn(&session); err != nil {
			return err
		}

		if err := tx.Save(&session).Error; err != nil {
			return fmt.Errorf("save session #%d failed: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// Delete каскадно удаляет сессию вместе со всеми зависимыми данными
func (r *SessionRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&entity.Question{}).
			Where("session_id = ?", id).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}

		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).
				Delete(&entity.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id IN ?", questionIDs).
				Delete(&entity.Buzz{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("session_id = ?", id).Delete(&entity.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&entity.Team{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.QuizSession{}, id).Error
	})
}
