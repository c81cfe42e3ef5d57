package sessionmanager

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yourusername/pubquiz-api/internal/domain/repository"
)

// Константы значений по умолчанию
const (
	DefaultRoundsTotal            = 2
	DefaultQuestionsPerRound      = 3
	DefaultAutoAdvanceDurationSec = 60
)

// Config содержит настройки для всех компонентов SessionManager
type Config struct {
	// Игровая структура по умолчанию для новых сессий
	RoundsTotal       int
	QuestionsPerRound int

	// Длительность показа вопроса по умолчанию
	AutoAdvanceDurationSec int

	// TickInterval задает период, с которым оценщик проверяет таймеры
	// активных сессий
	TickInterval time.Duration

	// OwnershipTTL - время жизни Redis-замка владения сессией. Замок
	// продлевается на каждом тике, поэтому при падении инстанса другая
	// реплика подберет сессию не позже чем через OwnershipTTL.
	OwnershipTTL time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		RoundsTotal:            DefaultRoundsTotal,
		QuestionsPerRound:      DefaultQuestionsPerRound,
		AutoAdvanceDurationSec: DefaultAutoAdvanceDurationSec,
		TickInterval:           time.Second,
		OwnershipTTL:           10 * time.Second,
	}
}

// Notifier вызывается после каждой успешной мутации состояния сессии.
// Вызов не должен блокировать: рассылка снапшотов никогда не задерживает
// продвижение игры.
type Notifier func(sessionID uint, version int64)

// Dependencies содержит зависимости для SessionManager
type Dependencies struct {
	SessionRepo  repository.SessionRepository
	QuestionRepo repository.QuestionRepository
	TeamRepo     repository.TeamRepository
	AnswerRepo   repository.AnswerRepository
	CacheRepo    repository.CacheRepository
	Clock        clockwork.Clock
	Notify       Notifier
	Config       *Config
}

// notify безопасно дергает колбек уведомления
func (d *Dependencies) notify(sessionID uint, version int64) {
	if d.Notify != nil {
		d.Notify(sessionID, version)
	}
}
