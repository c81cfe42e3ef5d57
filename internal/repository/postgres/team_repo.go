package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// TeamRepo реализует repository.TeamRepository
type TeamRepo struct {
	db *gorm.DB
}

// NewTeamRepo создает новый репозиторий команд
func NewTeamRepo(db *gorm.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// Create регистрирует команду в сессии.
// Unique index idx_session_team_name не допускает двух команд с одним
// именем в одной сессии.
func (r *TeamRepo) Create(team *entity.Team) error {
	err := r.db.Create(team).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: team name %q already registered", apperrors.ErrConflict, team.Name)
		}
		return err
	}
	return nil
}

// GetByID возвращает команду по ID
func (r *TeamRepo) GetByID(id uint) (*entity.Team, error) {
	var team entity.Team
	err := r.db.First(&team, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// GetBySessionID возвращает команды сессии в порядке регистрации
func (r *TeamRepo) GetBySessionID(sessionID uint) ([]entity.Team, error) {
	var teams []entity.Team
	err := r.db.Where("session_id = ?", sessionID).Order("id").Find(&teams).Error
	return teams, err
}

// Leaderboard возвращает команды сессии по убыванию счета.
// При равенстве очков побеждает зарегистрировавшийся раньше.
func (r *TeamRepo) Leaderboard(sessionID uint) ([]entity.Team, error) {
	var teams []entity.Team
	err := r.db.Where("session_id = ?", sessionID).
		Order("score DESC, id ASC").
		Find(&teams).Error
	return teams, err
}
