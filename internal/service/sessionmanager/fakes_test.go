package sessionmanager

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// ============================================================================
// In-memory реализации репозиториев для тестов.
// memorySessionRepo повторяет контракт Mutate: мьютекс на сессию играет роль
// блокировки строки, поэтому конкурентные мутации сериализуются так же,
// как в Postgres с SELECT ... FOR UPDATE.
// ============================================================================

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[uint]*entity.QuizSession
	locks    map[uint]*sync.Mutex
	nextID   uint
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{
		sessions: make(map[uint]*entity.QuizSession),
		locks:    make(map[uint]*sync.Mutex),
		nextID:   1,
	}
}

func (r *memorySessionRepo) Create(session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = r.nextID
	r.nextID++
	copied := *session
	r.sessions[session.ID] = &copied
	r.locks[session.ID] = &sync.Mutex{}
	return nil
}

func (r *memorySessionRepo) GetByID(id uint) (*entity.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *memorySessionRepo) GetWithQuestions(id uint) (*entity.QuizSession, error) {
	return r.GetByID(id)
}

func (r *memorySessionRepo) List(filters repository.SessionFilters, limit, offset int) ([]entity.QuizSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.QuizSession
	for _, s := range r.sessions {
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memorySessionRepo) Mutate(id uint, fn func(session *entity.QuizSession) error) (*entity.QuizSession, error) {
	r.mu.Lock()
	lock, ok := r.locks[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	stored := r.sessions[id]
	working := *stored
	r.mu.Unlock()

	if err := fn(&working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	copied := working
	r.sessions[id] = &copied
	r.mu.Unlock()

	result := working
	return &result, nil
}

func (r *memorySessionRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.locks, id)
	return nil
}

// memoryQuestionRepo хранит вопросы в срезе, имитируя ordered-by-position выборку

type memoryQuestionRepo struct {
	mu        sync.Mutex
	questions []entity.Question
	nextID    uint
}

func newMemoryQuestionRepo() *memoryQuestionRepo {
	return &memoryQuestionRepo{nextID: 1}
}

func (r *memoryQuestionRepo) add(q entity.Question) entity.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	q.ID = r.nextID
	r.nextID++
	r.questions = append(r.questions, q)
	return q
}

func (r *memoryQuestionRepo) GetBySessionID(sessionID uint) ([]entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Question
	for _, q := range r.questions {
		if q.SessionID == sessionID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *memoryQuestionRepo) GetByRound(sessionID uint, round int) ([]entity.Question, error) {
	all, _ := r.GetBySessionID(sessionID)
	var out []entity.Question
	for _, q := range all {
		if q.Round == round {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memoryQuestionRepo) GetByPosition(sessionID uint, round, position int) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.SessionID == sessionID && q.Round == round && q.Position == position {
			copied := q
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.ID == id {
			copied := q
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryQuestionRepo) ReplaceRound(sessionID uint, round int, questions []entity.Question, cascadeAnswers bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.questions[:0]
	for _, q := range r.questions {
		if !(q.SessionID == sessionID && q.Round == round) {
			kept = append(kept, q)
		}
	}
	r.questions = kept
	for i, q := range questions {
		q.ID = r.nextID
		r.nextID++
		q.SessionID = sessionID
		q.Round = round
		q.Position = i + 1
		r.questions = append(r.questions, q)
	}
	return nil
}

func (r *memoryQuestionRepo) CountAnswersForRound(sessionID uint, round int) (int64, error) {
	return 0, nil
}

// memoryTeamRepo

type memoryTeamRepo struct {
	mu     sync.Mutex
	teams  map[uint]*entity.Team
	nextID uint
}

func newMemoryTeamRepo() *memoryTeamRepo {
	return &memoryTeamRepo{teams: make(map[uint]*entity.Team), nextID: 1}
}

func (r *memoryTeamRepo) Create(team *entity.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.SessionID == team.SessionID && t.Name == team.Name {
			return fmt.Errorf("%w: team name %q already registered", apperrors.ErrConflict, team.Name)
		}
	}
	team.ID = r.nextID
	r.nextID++
	copied := *team
	r.teams[team.ID] = &copied
	return nil
}

func (r *memoryTeamRepo) GetByID(id uint) (*entity.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *team
	return &copied, nil
}

func (r *memoryTeamRepo) GetBySessionID(sessionID uint) ([]entity.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Team
	for _, t := range r.teams {
		if t.SessionID == sessionID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryTeamRepo) Leaderboard(sessionID uint) ([]entity.Team, error) {
	teams, _ := r.GetBySessionID(sessionID)
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Score > teams[j].Score })
	return teams, nil
}

func (r *memoryTeamRepo) credit(teamID uint, points int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.teams[teamID]; ok {
		t.Score += points
	}
}

// memoryAnswerRepo повторяет unique-ограничение (team, question) из схемы БД

type memoryAnswerRepo struct {
	mu      sync.Mutex
	answers []entity.Answer
	buzzes  []entity.Buzz
	teams   *memoryTeamRepo
	nextID  uint
}

func newMemoryAnswerRepo(teams *memoryTeamRepo) *memoryAnswerRepo {
	return &memoryAnswerRepo{teams: teams, nextID: 1}
}

func (r *memoryAnswerRepo) SubmitGraded(answer *entity.Answer) error {
	r.mu.Lock()
	for _, a := range r.answers {
		if a.TeamID == answer.TeamID && a.QuestionID == answer.QuestionID {
			r.mu.Unlock()
			return fmt.Errorf("%w: team #%d question #%d", apperrors.ErrDuplicateAnswer, answer.TeamID, answer.QuestionID)
		}
	}
	answer.ID = r.nextID
	r.nextID++
	r.answers = append(r.answers, *answer)
	r.mu.Unlock()

	if answer.PointsAwarded > 0 {
		r.teams.credit(answer.TeamID, answer.PointsAwarded)
	}
	return nil
}

func (r *memoryAnswerRepo) GetByQuestion(questionID uint) ([]entity.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Answer
	for _, a := range r.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAnswerRepo) GetBySession(sessionID uint) ([]entity.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.Answer, len(r.answers))
	copy(out, r.answers)
	return out, nil
}

func (r *memoryAnswerRepo) CountByTeam(teamID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, a := range r.answers {
		if a.TeamID == teamID {
			count++
		}
	}
	return count, nil
}

func (r *memoryAnswerRepo) CreateBuzz(buzz *entity.Buzz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buzzes {
		if b.TeamID == buzz.TeamID && b.QuestionID == buzz.QuestionID {
			return fmt.Errorf("%w: team #%d already buzzed on question #%d", apperrors.ErrConflict, buzz.TeamID, buzz.QuestionID)
		}
	}
	buzz.ID = r.nextID
	r.nextID++
	r.buzzes = append(r.buzzes, *buzz)
	return nil
}

func (r *memoryAnswerRepo) GetBuzz(id uint) (*entity.Buzz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buzzes {
		if b.ID == id {
			copied := b
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryAnswerRepo) GetBuzzes(questionID uint) ([]entity.Buzz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Buzz
	for _, b := range r.buzzes {
		if b.QuestionID == questionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimOrder < out[j].ClaimOrder })
	return out, nil
}

func (r *memoryAnswerRepo) GrantBuzz(buzzID uint, answer *entity.Answer) error {
	r.mu.Lock()
	var found *entity.Buzz
	for i := range r.buzzes {
		if r.buzzes[i].ID == buzzID {
			found = &r.buzzes[i]
			break
		}
	}
	if found == nil {
		r.mu.Unlock()
		return apperrors.ErrNotFound
	}
	if found.Granted {
		r.mu.Unlock()
		return fmt.Errorf("%w: buzz #%d already granted", apperrors.ErrConflict, buzzID)
	}
	found.Granted = true
	r.mu.Unlock()

	return r.SubmitGraded(answer)
}

// memoryCacheRepo - потокобезопасная карта вместо Redis

type memoryCacheRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: make(map[string]string)}
}

func (r *memoryCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = fmt.Sprintf("%v", value)
	return nil
}

func (r *memoryCacheRepo) Get(key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (r *memoryCacheRepo) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

func (r *memoryCacheRepo) Increment(key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, _ := strconv.ParseInt(r.values[key], 10, 64)
	current++
	r.values[key] = strconv.FormatInt(current, 10)
	return current, nil
}

func (r *memoryCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	return r.Set(key, value, expiration)
}

func (r *memoryCacheRepo) GetJSON(key string, dest interface{}) error {
	return fmt.Errorf("not implemented in memory cache")
}

func (r *memoryCacheRepo) Exists(key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.values[key]
	return ok, nil
}

func (r *memoryCacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.values[key]; ok {
		return false, nil
	}
	r.values[key] = fmt.Sprintf("%v", value)
	return true, nil
}
