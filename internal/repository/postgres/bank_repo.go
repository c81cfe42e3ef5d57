package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// BankRepo реализует repository.BankRepository
type BankRepo struct {
	db *gorm.DB
}

// NewBankRepo создает новый репозиторий банка вопросов
func NewBankRepo(db *gorm.DB) *BankRepo {
	return &BankRepo{db: db}
}

// Create добавляет вопрос в банк
func (r *BankRepo) Create(question *entity.BankQuestion) error {
	return r.db.Create(question).Error
}

// PickRandom возвращает count случайных вопросов категории
func (r *BankRepo) PickRandom(category string, count int) ([]entity.BankQuestion, error) {
	var questions []entity.BankQuestion

	query := r.db.Model(&entity.BankQuestion{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	err := query.Order("RANDOM()").Limit(count).Find(&questions).Error
	if err != nil {
		return nil, err
	}

	if len(questions) < count {
		return nil, fmt.Errorf("%w: bank has only %d questions for category %q, need %d",
			apperrors.ErrValidation, len(questions), category, count)
	}
	return questions, nil
}

// CountByCategory возвращает размер банка по категории
func (r *BankRepo) CountByCategory(category string) (int64, error) {
	var count int64
	query := r.db.Model(&entity.BankQuestion{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Count(&count).Error
	return count, err
}

// Categories возвращает список категорий банка
func (r *BankRepo) Categories() ([]string, error) {
	var categories []string
	err := r.db.Model(&entity.BankQuestion{}).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	return categories, err
}
