package sessionmanager

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
	"github.com/yourusername/pubquiz-api/pkg/countdown"
)

// StateStore выполняет все мутации состояния сессии. Каждая операция
// проходит через SessionRepo.Mutate, то есть исполняется под блокировкой
// строки сессии: конкурентные мутации одной сессии сериализуются, поверх
// обновленного состояния каждая заново проверяет свои предусловия.
type StateStore struct {
	deps *Dependencies
}

// NewStateStore создает новое хранилище состояния
func NewStateStore(deps *Dependencies) *StateStore {
	return &StateStore{deps: deps}
}

// Start переводит сессию из ready в in_progress и показывает первый вопрос
func (s *StateStore) Start(sessionID uint) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsReady() {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}

		now := s.deps.Clock.Now()
		session.Status = entity.SessionStatusInProgress
		session.CurrentRound = 1
		session.CurrentQuestionNumber = 1
		session.QuestionStartedAt = &now
		session.PausedAt = nil
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[StateStore] Сессия #%d запущена (version=%d)", sessionID, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// StartQuestion отмечает начало показа вопроса на позиции (round, number).
// Операция идемпотентна по позиции: повторный вызов для уже начатой позиции
// ничего не меняет и не считается ошибкой. Так внешние колбеки (например,
// "озвучка вопроса закончена") могут дублироваться без сдвига таймера.
func (s *StateStore) StartQuestion(sessionID uint, round, number int) (*entity.QuizSession, error) {
	var started bool

	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsActive() {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}
		if !ValidPosition(round, number, session.QuestionsPerRound, session.RoundsTotal) {
			return fmt.Errorf("%w: position %d/%d out of range", apperrors.ErrValidation, round, number)
		}
		// Позиция валидна, но сессия уже не на ней: колбек опоздал.
		// Это штатная гонка с автопродвижением, вызывающий сам решает,
		// как ее отбросить.
		if !session.AtPosition(round, number) {
			return fmt.Errorf("%w: session #%d is at %d/%d, not %d/%d",
				apperrors.ErrStaleAdvance, sessionID, session.CurrentRound, session.CurrentQuestionNumber, round, number)
		}

		// Таймер для этой позиции уже идет: no-op
		if session.QuestionStartedAt != nil {
			return nil
		}

		now := s.deps.Clock.Now()
		session.QuestionStartedAt = &now
		session.Version++
		started = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if started {
		log.Printf("[StateStore] Сессия #%d: вопрос %d/%d начат (version=%d)",
			sessionID, round, number, session.Version)
		s.deps.notify(sessionID, session.Version)
	}
	return session, nil
}

// Tick - атомарная проверка-и-действие оценщика: если таймер текущего
// вопроса истек и автопродвижение активно, сессия сдвигается на следующую
// позицию (или завершается). Проверка и сдвиг происходят в одной
// транзакции, поэтому два конкурентных тика не продвинут сессию дважды:
// второй перечитает уже сдвинутое состояние и не найдет истекшего таймера.
func (s *StateStore) Tick(sessionID uint) (advanced bool, err error) {
	var notifyVersion int64

	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if session.Status != entity.SessionStatusInProgress {
			return nil
		}
		if !session.AutoAdvanceEnabled || session.AutoAdvancePaused {
			return nil
		}
		if session.QuestionStartedAt == nil {
			return nil
		}

		duration := time.Duration(session.AutoAdvanceDurationSec) * time.Second
		if !countdown.Expired(*session.QuestionStartedAt, duration, s.deps.Clock.Now()) {
			return nil
		}

		s.advanceLocked(session)
		advanced = true
		notifyVersion = session.Version
		return nil
	})
	if err != nil {
		return false, err
	}

	if advanced {
		log.Printf("[StateStore] Сессия #%d: автопродвижение до %d/%d, статус %s (version=%d)",
			sessionID, session.CurrentRound, session.CurrentQuestionNumber, session.Status, notifyVersion)
		s.deps.notify(sessionID, notifyVersion)
	}
	return advanced, nil
}

// HostNext продвигает сессию вручную по команде ведущего.
// expectedVersion защищает от гонки с оценщиком: если сессия успела
// сдвинуться после того, как ведущий видел состояние, возвращается
// ErrStaleAdvance и повторного сдвига не происходит.
func (s *StateStore) HostNext(sessionID uint, expectedVersion int64) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if session.Status != entity.SessionStatusInProgress {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}
		if session.Version != expectedVersion {
			return fmt.Errorf("%w: session #%d at version %d, host saw %d",
				apperrors.ErrStaleAdvance, sessionID, session.Version, expectedVersion)
		}

		s.advanceLocked(session)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[StateStore] Сессия #%d: ручное продвижение до %d/%d, статус %s (version=%d)",
		sessionID, session.CurrentRound, session.CurrentQuestionNumber, session.Status, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// Pause приостанавливает сессию и замораживает таймер текущего вопроса
func (s *StateStore) Pause(sessionID uint) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if session.Status != entity.SessionStatusInProgress {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}

		now := s.deps.Clock.Now()
		session.Status = entity.SessionStatusPaused
		session.PausedAt = &now
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[StateStore] Сессия #%d приостановлена (version=%d)", sessionID, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// Resume возобновляет приостановленную сессию. QuestionStartedAt сдвигается
// вперед на длительность паузы, так что остаток таймера сохраняется.
func (s *StateStore) Resume(sessionID uint) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if session.Status != entity.SessionStatusPaused {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}

		now := s.deps.Clock.Now()
		if session.QuestionStartedAt != nil && session.PausedAt != nil {
			shifted := session.QuestionStartedAt.Add(now.Sub(*session.PausedAt))
			session.QuestionStartedAt = &shifted
		}
		session.Status = entity.SessionStatusInProgress
		session.PausedAt = nil
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[StateStore] Сессия #%d возобновлена (version=%d)", sessionID, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// SetAutoAdvance включает или выключает автопродвижение на лету
func (s *StateStore) SetAutoAdvance(sessionID uint, enabled bool) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsActive() {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}
		session.AutoAdvanceEnabled = enabled
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// SetAutoAdvancePaused замораживает или размораживает таймер автопродвижения,
// не трогая сам вопрос: позиция и QuestionStartedAt не меняются, ответы
// продолжают приниматься. В отличие от Pause сессия остается in_progress.
func (s *StateStore) SetAutoAdvancePaused(sessionID uint, paused bool) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsActive() {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}
		session.AutoAdvancePaused = paused
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	state := "разморожен"
	if paused {
		state = "заморожен"
	}
	log.Printf("[StateStore] Сессия #%d: таймер автопродвижения %s (version=%d)",
		sessionID, state, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// SetDuration меняет длительность показа вопроса. Действует немедленно:
// остаток текущего вопроса пересчитывается от того же QuestionStartedAt.
func (s *StateStore) SetDuration(sessionID uint, seconds int) (*entity.QuizSession, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", apperrors.ErrValidation, seconds)
	}

	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsActive() {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}
		session.AutoAdvanceDurationSec = seconds
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[StateStore] Сессия #%d: длительность вопроса изменена на %dс (version=%d)",
		sessionID, seconds, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// Complete принудительно завершает сессию по команде ведущего
func (s *StateStore) Complete(sessionID uint) (*entity.QuizSession, error) {
	session, err := s.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsActive() {
			return fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
		}
		session.Status = entity.SessionStatusCompleted
		session.QuestionStartedAt = nil
		session.PausedAt = nil
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[StateStore] Сессия #%d завершена (version=%d)", sessionID, session.Version)
	s.deps.notify(sessionID, session.Version)
	return session, nil
}

// advanceLocked сдвигает сессию ровно на один логический шаг.
// Вызывается только изнутри Mutate-колбека, когда строка уже заблокирована.
func (s *StateStore) advanceLocked(session *entity.QuizSession) {
	nextRound, nextNumber, done := NextPosition(
		session.CurrentRound, session.CurrentQuestionNumber,
		session.QuestionsPerRound, session.RoundsTotal,
	)

	if done {
		session.Status = entity.SessionStatusCompleted
		session.QuestionStartedAt = nil
	} else {
		now := s.deps.Clock.Now()
		session.CurrentRound = nextRound
		session.CurrentQuestionNumber = nextNumber
		session.QuestionStartedAt = &now
	}
	session.Version++
}
