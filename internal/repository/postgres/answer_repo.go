package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// AnswerRepo реализует repository.AnswerRepository
type AnswerRepo struct {
	db *gorm.DB
}

// NewAnswerRepo создает новый репозиторий ответов
func NewAnswerRepo(db *gorm.DB) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// SubmitGraded атомарно записывает оцененный ответ и начисляет очки.
// Unique index idx_team_question превращает повторную отправку в 23505,
// транзакция откатывается, очки не начисляются повторно.
func (r *AnswerRepo) SubmitGraded(answer *entity.Answer) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: team #%d question #%d", apperrors.ErrDuplicateAnswer, answer.TeamID, answer.QuestionID)
			}
			return err
		}

		if answer.PointsAwarded > 0 {
			if err := tx.Model(&entity.Team{}).
				Where("id = ?", answer.TeamID).
				Update("score", gorm.Expr("score + ?", answer.PointsAwarded)).
				Error; err != nil {
				return fmt.Errorf("credit score for team #%d failed: %w", answer.TeamID, err)
			}
		}
		return nil
	})
}

// GetByQuestion возвращает ответы на вопрос в порядке поступления
func (r *AnswerRepo) GetByQuestion(questionID uint) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("question_id = ?", questionID).
		Order("submitted_at").
		Find(&answers).Error
	return answers, err
}

// GetBySession возвращает все ответы сессии
func (r *AnswerRepo) GetBySession(sessionID uint) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Joins("JOIN questions ON questions.id = answers.question_id").
		Where("questions.session_id = ?", sessionID).
		Order("answers.submitted_at").
		Find(&answers).Error
	return answers, err
}

// CountByTeam возвращает число ответов команды
func (r *AnswerRepo) CountByTeam(teamID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Answer{}).Where("team_id = ?", teamID).Count(&count).Error
	return count, err
}

// CreateBuzz фиксирует заявку на ответ.
// Повторный базз той же команды на тот же вопрос отклоняется по 23505.
func (r *AnswerRepo) CreateBuzz(buzz *entity.Buzz) error {
	err := r.db.Create(buzz).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: team #%d already buzzed on question #%d", apperrors.ErrConflict, buzz.TeamID, buzz.QuestionID)
		}
		return err
	}
	return nil
}

// GetBuzz возвращает базз по ID
func (r *AnswerRepo) GetBuzz(id uint) (*entity.Buzz, error) {
	var buzz entity.Buzz
	err := r.db.First(&buzz, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &buzz, nil
}

// GetBuzzes возвращает баззы вопроса в порядке поступления
func (r *AnswerRepo) GetBuzzes(questionID uint) ([]entity.Buzz, error) {
	var buzzes []entity.Buzz
	err := r.db.Where("question_id = ?", questionID).
		Order("claim_order").
		Find(&buzzes).Error
	return buzzes, err
}

// GrantBuzz принимает базз и в той же транзакции записывает ответ с очками
func (r *AnswerRepo) GrantBuzz(buzzID uint, answer *entity.Answer) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var buzz entity.Buzz
		if err := tx.First(&buzz, buzzID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if buzz.Granted {
			return fmt.Errorf("%w: buzz #%d already granted", apperrors.ErrConflict, buzzID)
		}

		if err := tx.Model(&entity.Buzz{}).
			Where("id = ?", buzzID).
			Update("granted", true).Error; err != nil {
			return err
		}

		if err := tx.Create(answer).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: team #%d question #%d", apperrors.ErrDuplicateAnswer, answer.TeamID, answer.QuestionID)
			}
			return err
		}

		if answer.PointsAwarded > 0 {
			if err := tx.Model(&entity.Team{}).
				Where("id = ?", answer.TeamID).
				Update("score", gorm.Expr("score + ?", answer.PointsAwarded)).
				Error; err != nil {
				return err
			}
		}
		return nil
	})
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
