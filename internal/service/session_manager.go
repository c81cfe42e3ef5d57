package service

import (
	"context"
	"errors"
	"log"

	"github.com/jonboulle/clockwork"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
	"github.com/yourusername/pubquiz-api/internal/service/sessionmanager"
)

// SessionManager координирует компоненты живой игры: хранилище состояния,
// оценщик таймеров и сборщик ответов. Все хендлеры ходят сюда, а не в
// компоненты напрямую.
type SessionManager struct {
	store     *sessionmanager.StateStore
	evaluator *sessionmanager.Evaluator
	collector *sessionmanager.AnswerCollector
	snapshots *sessionmanager.SnapshotBuilder

	sessionRepo repository.SessionRepository

	// Контекст для управления жизненным циклом горутин оценщика
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager создает новый менеджер живых сессий
func NewSessionManager(
	sessionRepo repository.SessionRepository,
	questionRepo repository.QuestionRepository,
	teamRepo repository.TeamRepository,
	answerRepo repository.AnswerRepository,
	cacheRepo repository.CacheRepository,
	config *sessionmanager.Config,
	instanceID string,
	notify sessionmanager.Notifier,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	deps := &sessionmanager.Dependencies{
		SessionRepo:  sessionRepo,
		QuestionRepo: questionRepo,
		TeamRepo:     teamRepo,
		AnswerRepo:   answerRepo,
		CacheRepo:    cacheRepo,
		Clock:        clockwork.NewRealClock(),
		Notify:       notify,
		Config:       config,
	}

	store := sessionmanager.NewStateStore(deps)

	sm := &SessionManager{
		store:       store,
		evaluator:   sessionmanager.NewEvaluator(config, deps, store, instanceID),
		collector:   sessionmanager.NewAnswerCollector(deps),
		snapshots:   sessionmanager.NewSnapshotBuilder(deps),
		sessionRepo: sessionRepo,
		ctx:         ctx,
		cancel:      cancel,
	}

	log.Println("[SessionManager] Менеджер сессий успешно инициализирован")
	return sm
}

// ResumeActiveSessions восстанавливает наблюдение за активными сессиями
// после рестарта процесса. Состояние целиком живет в БД, поэтому
// достаточно заново поставить оценщик на каждую идущую сессию.
func (sm *SessionManager) ResumeActiveSessions() error {
	for _, status := range []string{entity.SessionStatusInProgress, entity.SessionStatusPaused} {
		sessions, _, err := sm.sessionRepo.List(repository.SessionFilters{Status: status}, 100, 0)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			sm.evaluator.Watch(sm.ctx, session.ID)
			log.Printf("[SessionManager] Возобновлено наблюдение за сессией #%d (%s)", session.ID, status)
		}
	}
	return nil
}

// StartSession запускает готовую сессию и ставит ее под оценщик
func (sm *SessionManager) StartSession(sessionID uint) (*entity.QuizSession, error) {
	session, err := sm.store.Start(sessionID)
	if err != nil {
		return nil, err
	}
	sm.evaluator.Watch(sm.ctx, sessionID)
	return session, nil
}

// HostNext - ручное продвижение ведущим с защитой от устаревшей версии
func (sm *SessionManager) HostNext(sessionID uint, expectedVersion int64) (*entity.QuizSession, error) {
	return sm.store.HostNext(sessionID, expectedVersion)
}

// PauseSession приостанавливает сессию
func (sm *SessionManager) PauseSession(sessionID uint) (*entity.QuizSession, error) {
	return sm.store.Pause(sessionID)
}

// ResumeSession возобновляет сессию
func (sm *SessionManager) ResumeSession(sessionID uint) (*entity.QuizSession, error) {
	session, err := sm.store.Resume(sessionID)
	if err != nil {
		return nil, err
	}
	// На случай, если наблюдение было потеряно за время паузы
	sm.evaluator.Watch(sm.ctx, sessionID)
	return session, nil
}

// CompleteSession принудительно завершает сессию
func (sm *SessionManager) CompleteSession(sessionID uint) (*entity.QuizSession, error) {
	session, err := sm.store.Complete(sessionID)
	if err != nil {
		return nil, err
	}
	sm.evaluator.Unwatch(sessionID)
	return session, nil
}

// SetDuration меняет длительность показа вопроса
func (sm *SessionManager) SetDuration(sessionID uint, seconds int) (*entity.QuizSession, error) {
	return sm.store.SetDuration(sessionID, seconds)
}

// SetAutoAdvance переключает автопродвижение
func (sm *SessionManager) SetAutoAdvance(sessionID uint, enabled bool) (*entity.QuizSession, error) {
	return sm.store.SetAutoAdvance(sessionID, enabled)
}

// SetAutoAdvancePaused замораживает таймер текущего вопроса, не снимая его
// с экрана: сессия остается in_progress и ответы принимаются.
func (sm *SessionManager) SetAutoAdvancePaused(sessionID uint, paused bool) (*entity.QuizSession, error) {
	return sm.store.SetAutoAdvancePaused(sessionID, paused)
}

// NarrationComplete - колбек "озвучка вопроса закончена": запускает таймер
// текущего вопроса. Повторные вызовы для той же позиции безвредны.
// Колбек для уже пройденной позиции молча отбрасывается: сессия успела
// продвинуться, и это ожидаемый исход гонки, а не ошибка.
func (sm *SessionManager) NarrationComplete(sessionID uint, round, number int) (*entity.QuizSession, error) {
	session, err := sm.store.StartQuestion(sessionID, round, number)
	if errors.Is(err, apperrors.ErrStaleAdvance) {
		log.Printf("[SessionManager] Сессия #%d: колбек озвучки для %d/%d опоздал, отброшен",
			sessionID, round, number)
		return sm.sessionRepo.GetByID(sessionID)
	}
	return session, err
}

// SubmitAnswer принимает ответ команды
func (sm *SessionManager) SubmitAnswer(sessionID, teamID, questionID uint, content string) (*entity.Answer, error) {
	return sm.collector.Submit(sessionID, teamID, questionID, content)
}

// Buzz регистрирует заявку команды на устный ответ
func (sm *SessionManager) Buzz(sessionID, teamID, questionID uint) (*entity.Buzz, error) {
	return sm.collector.Buzz(sessionID, teamID, questionID)
}

// GrantBuzz фиксирует решение ведущего по заявке
func (sm *SessionManager) GrantBuzz(sessionID, buzzID uint) (*entity.Answer, error) {
	return sm.collector.GrantBuzz(sessionID, buzzID)
}

// BuildSnapshot собирает снапшот сессии для роли
func (sm *SessionManager) BuildSnapshot(sessionID uint, role string) (*sessionmanager.Snapshot, error) {
	return sm.snapshots.Build(sessionID, role)
}

// StopSessionWatch снимает оценщик с сессии (например, перед удалением)
func (sm *SessionManager) StopSessionWatch(sessionID uint) {
	sm.evaluator.Unwatch(sessionID)
}

// Shutdown останавливает все горутины наблюдения
func (sm *SessionManager) Shutdown() {
	sm.evaluator.StopAll()
	sm.cancel()
	log.Println("[SessionManager] Менеджер сессий остановлен")
}
