package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
	"github.com/yourusername/pubquiz-api/internal/service/sessionmanager"
)

// stubSessionRepo - минимальный in-memory репозиторий сессий. Mutate
// сериализуется общим мьютексом, этого достаточно для однопоточных тестов.
type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[uint]*entity.QuizSession
	nextID   uint
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[uint]*entity.QuizSession), nextID: 1}
}

func (r *stubSessionRepo) Create(session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = r.nextID
	r.nextID++
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *stubSessionRepo) GetByID(id uint) (*entity.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *stubSessionRepo) GetWithQuestions(id uint) (*entity.QuizSession, error) {
	return r.GetByID(id)
}

func (r *stubSessionRepo) List(filters repository.SessionFilters, limit, offset int) ([]entity.QuizSession, int64, error) {
	return nil, 0, nil
}

func (r *stubSessionRepo) Mutate(id uint, fn func(session *entity.QuizSession) error) (*entity.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	working := *stored
	if err := fn(&working); err != nil {
		return nil, err
	}
	copied := working
	r.sessions[id] = &copied
	result := working
	return &result, nil
}

func (r *stubSessionRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func newTestSessionManager(repo repository.SessionRepository) *SessionManager {
	return NewSessionManager(
		repo, nil, nil, nil, nil,
		sessionmanager.DefaultConfig(), "test-instance", nil,
	)
}

func TestSessionManager_NarrationCompleteStartsTimer(t *testing.T) {
	repo := newStubSessionRepo()
	session := &entity.QuizSession{
		Title:                  "Вечерняя игра",
		Status:                 entity.SessionStatusInProgress,
		RoundsTotal:            2,
		QuestionsPerRound:      3,
		CurrentRound:           1,
		CurrentQuestionNumber:  1,
		AutoAdvanceEnabled:     true,
		AutoAdvanceDurationSec: 60,
		Version:                1,
	}
	require.NoError(t, repo.Create(session))
	sm := newTestSessionManager(repo)

	updated, err := sm.NarrationComplete(session.ID, 1, 1)

	require.NoError(t, err)
	require.NotNil(t, updated.QuestionStartedAt)
	assert.Equal(t, int64(2), updated.Version)
}

func TestSessionManager_LateNarrationCallbackIsDiscarded(t *testing.T) {
	// Сессия уже продвинулась до 1/2, когда пришел колбек озвучки для 1/1
	repo := newStubSessionRepo()
	session := &entity.QuizSession{
		Title:                  "Вечерняя игра",
		Status:                 entity.SessionStatusInProgress,
		RoundsTotal:            2,
		QuestionsPerRound:      3,
		CurrentRound:           1,
		CurrentQuestionNumber:  2,
		AutoAdvanceEnabled:     true,
		AutoAdvanceDurationSec: 60,
		Version:                3,
	}
	require.NoError(t, repo.Create(session))
	sm := newTestSessionManager(repo)

	// Act: запоздавший колбек молча отбрасывается, возвращается текущее
	// состояние без ошибки
	current, err := sm.NarrationComplete(session.ID, 1, 1)

	require.NoError(t, err)
	assert.True(t, current.AtPosition(1, 2))
	assert.Equal(t, int64(3), current.Version, "отброшенный колбек не меняет состояние")
	assert.Nil(t, current.QuestionStartedAt)
}
