package repository

import (
	"github.com/yourusername/pubquiz-api/internal/domain/entity"
)

// SessionFilters определяет фильтры для поиска сессий
type SessionFilters struct {
	Status string // Фильтр по статусу (draft, ready, in_progress, paused, completed)
	Search string // Поиск по названию/заведению
}

// SessionRepository определяет методы для работы с игровыми сессиями.
//
// Mutate - единственная точка входа для мутаций: fn выполняется под
// блокировкой строки сессии (SELECT ... FOR UPDATE), что гарантирует ровно
// одну логическую мутацию в полете на сессию. Операции над разными сессиями
// не конкурируют между собой. Инкремент version - обязанность fn; репозиторий
// лишь сохраняет результат атомарно.
type SessionRepository interface {
	Create(session *entity.QuizSession) error
	GetByID(id uint) (*entity.QuizSession, error)
	GetWithQuestions(id uint) (*entity.QuizSession, error)
	List(filters SessionFilters, limit, offset int) ([]entity.QuizSession, int64, error)
	Mutate(id uint, fn func(session *entity.QuizSession) error) (*entity.QuizSession, error)
	// Delete каскадно удаляет сессию вместе с вопросами, командами,
	// ответами и баззами.
	Delete(id uint) error
}

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	GetBySessionID(sessionID uint) ([]entity.Question, error)
	// GetByRound возвращает неизменяемую упорядоченную последовательность
	// вопросов раунда.
	GetByRound(sessionID uint, round int) ([]entity.Question, error)
	GetByPosition(sessionID uint, round, position int) (*entity.Question, error)
	GetByID(id uint) (*entity.Question, error)
	// ReplaceRound заменяет последовательность вопросов раунда целиком.
	// При cascadeAnswers удаляются и ответы/баззы на старые вопросы раунда.
	ReplaceRound(sessionID uint, round int, questions []entity.Question, cascadeAnswers bool) error
	CountAnswersForRound(sessionID uint, round int) (int64, error)
}

// BankRepository определяет методы для работы с банком вопросов
type BankRepository interface {
	Create(question *entity.BankQuestion) error
	// PickRandom возвращает count случайных вопросов категории.
	// Пустая категория означает выбор по всему банку.
	PickRandom(category string, count int) ([]entity.BankQuestion, error)
	CountByCategory(category string) (int64, error)
	Categories() ([]string, error)
}

// TeamRepository определяет методы для работы с командами
type TeamRepository interface {
	Create(team *entity.Team) error
	GetByID(id uint) (*entity.Team, error)
	GetBySessionID(sessionID uint) ([]entity.Team, error)
	// Leaderboard возвращает команды сессии, отсортированные по убыванию счета
	Leaderboard(sessionID uint) ([]entity.Team, error)
}

// AnswerRepository определяет методы для работы с ответами и баззами
type AnswerRepository interface {
	// SubmitGraded в одной транзакции вставляет оцененный ответ и начисляет
	// очки команде. Вторая вставка для той же пары (team, question)
	// завершается apperrors.ErrDuplicateAnswer, счет не меняется.
	SubmitGraded(answer *entity.Answer) error
	GetByQuestion(questionID uint) ([]entity.Answer, error)
	GetBySession(sessionID uint) ([]entity.Answer, error)
	CountByTeam(teamID uint) (int64, error)

	CreateBuzz(buzz *entity.Buzz) error
	GetBuzz(id uint) (*entity.Buzz, error)
	GetBuzzes(questionID uint) ([]entity.Buzz, error)
	// GrantBuzz помечает базз принятым и в той же транзакции записывает
	// ответ с очками через SubmitGraded-семантику.
	GrantBuzz(buzzID uint, answer *entity.Answer) error
}
