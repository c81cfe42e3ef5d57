package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetBySessionID возвращает все вопросы сессии в игровом порядке
func (r *QuestionRepo) GetBySessionID(sessionID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("session_id = ?", sessionID).
		Order("round, position").
		Find(&questions).Error
	return questions, err
}

// GetByRound возвращает вопросы раунда, упорядоченные по позиции
func (r *QuestionRepo) GetByRound(sessionID uint, round int) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("session_id = ? AND round = ?", sessionID, round).
		Order("position").
		Find(&questions).Error
	return questions, err
}

// GetByPosition возвращает один вопрос по игровой позиции
func (r *QuestionRepo) GetByPosition(sessionID uint, round, position int) (*entity.Question, error) {
	var question entity.Question
	err := r.db.Where("session_id = ? AND round = ? AND position = ?", sessionID, round, position).
		First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
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

// ReplaceRound заменяет вопросы раунда целиком в одной транзакции.
// Без cascadeAnswers отказывает, если на вопросы раунда уже есть ответы:
// молчаливая подмена вопросов под существующими ответами недопустима.
func (r *QuestionRepo) ReplaceRound(sessionID uint, round int, questions []entity.Question, cascadeAnswers bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var oldIDs []uint
		if err := tx.Model(&entity.Question{}).
			Where("session_id = ? AND round = ?", sessionID, round).
			Pluck("id", &oldIDs).Error; err != nil {
			return err
		}

		if len(oldIDs) > 0 {
			var answerCount int64
			if err := tx.Model(&entity.Answer{}).
				Where("question_id IN ?", oldIDs).
				Count(&answerCount).Error; err != nil {
				return err
			}

			if answerCount > 0 {
				if !cascadeAnswers {
					return fmt.Errorf("%w: round %d has %d answers", repository.ErrRoundHasAnswers, round, answerCount)
				}
				if err := tx.Where("question_id IN ?", oldIDs).
					Delete(&entity.Answer{}).Error; err != nil {
					return err
				}
			}

			if err := tx.Where("question_id IN ?", oldIDs).
				Delete(&entity.Buzz{}).Error; err != nil {
				return err
			}

			if err := tx.Where("session_id = ? AND round = ?", sessionID, round).
				Delete(&entity.Question{}).Error; err != nil {
				return err
			}
		}

		for i := range questions {
			questions[i].ID = 0
			questions[i].SessionID = sessionID
			questions[i].Round = round
			questions[i].Position = i + 1
		}

		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
}

// CountAnswersForRound возвращает число ответов на вопросы раунда
func (r *QuestionRepo) CountAnswersForRound(sessionID uint, round int) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Answer{}).
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("questions.session_id = ? AND questions.round = ?", sessionID, round).
		Count(&count).Error
	return count, err
}
