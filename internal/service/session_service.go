package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
	"github.com/yourusername/pubquiz-api/internal/service/sessionmanager"
)

// QuestionSource поставляет вопросы для генерации раундов.
// Реализация по умолчанию тянет случайные вопросы из банка.
type QuestionSource interface {
	GenerateRound(sessionID uint, round int, category string, count int) ([]entity.Question, error)
}

// BankQuestionSource - источник вопросов из банка
type BankQuestionSource struct {
	bankRepo repository.BankRepository
}

// NewBankQuestionSource создает источник вопросов поверх банка
func NewBankQuestionSource(bankRepo repository.BankRepository) *BankQuestionSource {
	return &BankQuestionSource{bankRepo: bankRepo}
}

// GenerateRound выбирает случайные вопросы категории и раскладывает их по позициям
func (s *BankQuestionSource) GenerateRound(sessionID uint, round int, category string, count int) ([]entity.Question, error) {
	picked, err := s.bankRepo.PickRandom(category, count)
	if err != nil {
		return nil, err
	}

	questions := make([]entity.Question, 0, len(picked))
	for i, bq := range picked {
		questions = append(questions, bq.ToSessionQuestion(sessionID, round, i+1))
	}
	return questions, nil
}

// SessionService управляет жизненным циклом сессий: черновик, генерация
// раундов, готовность, команды, таблица результатов. Мутации игрового
// состояния запущенной сессии идут не здесь, а через StateStore.
type SessionService struct {
	sessionRepo  repository.SessionRepository
	questionRepo repository.QuestionRepository
	teamRepo     repository.TeamRepository
	source       QuestionSource
	config       *sessionmanager.Config
}

// NewSessionService создает новый сервис сессий
func NewSessionService(
	sessionRepo repository.SessionRepository,
	questionRepo repository.QuestionRepository,
	teamRepo repository.TeamRepository,
	source QuestionSource,
	config *sessionmanager.Config,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		teamRepo:     teamRepo,
		source:       source,
		config:       config,
	}
}

// CreateSession создает черновик сессии с кодом ведущего
func (s *SessionService) CreateSession(title, venueName, hostCode string, roundsTotal, questionsPerRound int) (*entity.QuizSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if len(hostCode) < 4 {
		return nil, fmt.Errorf("%w: host code must be at least 4 characters", apperrors.ErrValidation)
	}
	if roundsTotal <= 0 {
		roundsTotal = s.config.RoundsTotal
	}
	if questionsPerRound <= 0 {
		questionsPerRound = s.config.QuestionsPerRound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(hostCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash host code: %w", err)
	}

	session := &entity.QuizSession{
		Title:                  title,
		VenueName:              strings.TrimSpace(venueName),
		Status:                 entity.SessionStatusDraft,
		RoundsTotal:            roundsTotal,
		QuestionsPerRound:      questionsPerRound,
		CurrentRound:           1,
		CurrentQuestionNumber:  1,
		AutoAdvanceEnabled:     true,
		AutoAdvanceDurationSec: s.config.AutoAdvanceDurationSec,
		HostCodeHash:           string(hash),
	}

	if err := s.sessionRepo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("[SessionService] Создана сессия #%d %q (%dx%d)", session.ID, title, roundsTotal, questionsPerRound)
	return session, nil
}

// VerifyHostCode проверяет код ведущего против сохраненного bcrypt-хеша
func (s *SessionService) VerifyHostCode(sessionID uint, hostCode string) error {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(session.HostCodeHash), []byte(hostCode)); err != nil {
		return fmt.Errorf("%w: invalid host code", apperrors.ErrUnauthorized)
	}
	return nil
}

// GetSessionByID возвращает сессию по ID
func (s *SessionService) GetSessionByID(sessionID uint) (*entity.QuizSession, error) {
	return s.sessionRepo.GetByID(sessionID)
}

// GetSessionWithQuestions возвращает сессию вместе с вопросами
func (s *SessionService) GetSessionWithQuestions(sessionID uint) (*entity.QuizSession, error) {
	return s.sessionRepo.GetWithQuestions(sessionID)
}

// ListSessions возвращает список сессий с фильтрами и пагинацией
func (s *SessionService) ListSessions(filters repository.SessionFilters, limit, offset int) ([]entity.QuizSession, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.sessionRepo.List(filters, limit, offset)
}

// GenerateRound наполняет раунд вопросами из источника.
// Раунд с уже существующими ответами перегенерируется только с confirm:
// подтверждение каскадно удаляет эти ответы, молчаливой подмены вопросов
// под чужими ответами не бывает.
func (s *SessionService) GenerateRound(sessionID uint, round int, category string, confirm bool) ([]entity.Question, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsDraft() && !session.IsReady() {
		return nil, fmt.Errorf("%w: rounds can be generated only before the game starts", apperrors.ErrValidation)
	}
	if round < 1 || round > session.RoundsTotal {
		return nil, fmt.Errorf("%w: round %d out of range 1..%d", apperrors.ErrValidation, round, session.RoundsTotal)
	}

	questions, err := s.source.GenerateRound(sessionID, round, category, session.QuestionsPerRound)
	if err != nil {
		return nil, err
	}

	if err := s.questionRepo.ReplaceRound(sessionID, round, questions, confirm); err != nil {
		if errors.Is(err, repository.ErrRoundHasAnswers) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		return nil, err
	}

	log.Printf("[SessionService] Сессия #%d: раунд %d сгенерирован (%d вопросов, категория %q)",
		sessionID, round, len(questions), category)
	return s.questionRepo.GetByRound(sessionID, round)
}

// MarkReady переводит черновик в ready, когда каждый раунд полностью наполнен
func (s *SessionService) MarkReady(sessionID uint) (*entity.QuizSession, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsDraft() {
		return nil, fmt.Errorf("%w: session #%d is %s, not draft", apperrors.ErrValidation, sessionID, session.Status)
	}

	for round := 1; round <= session.RoundsTotal; round++ {
		questions, err := s.questionRepo.GetByRound(sessionID, round)
		if err != nil {
			return nil, err
		}
		if len(questions) != session.QuestionsPerRound {
			return nil, fmt.Errorf("%w: round %d has %d questions, need %d",
				apperrors.ErrValidation, round, len(questions), session.QuestionsPerRound)
		}
	}

	updated, err := s.sessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		if !session.IsDraft() {
			return fmt.Errorf("%w: session #%d is %s, not draft", apperrors.ErrValidation, sessionID, session.Status)
		}
		session.Status = entity.SessionStatusReady
		session.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SessionService] Сессия #%d готова к запуску", sessionID)
	return updated, nil
}

// RegisterTeam регистрирует команду в сессии до ее завершения
func (s *SessionService) RegisterTeam(sessionID uint, name, tableNo string) (*entity.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", apperrors.ErrValidation)
	}

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, fmt.Errorf("%w: session #%d is completed", apperrors.ErrSessionNotActive, sessionID)
	}

	team := &entity.Team{
		SessionID: sessionID,
		Name:      name,
		TableNo:   strings.TrimSpace(tableNo),
	}
	if err := s.teamRepo.Create(team); err != nil {
		return nil, err
	}

	log.Printf("[SessionService] Сессия #%d: зарегистрирована команда %q (столик %s)", sessionID, name, tableNo)
	return team, nil
}

// GetLeaderboard возвращает таблицу результатов сессии
func (s *SessionService) GetLeaderboard(sessionID uint) ([]entity.Team, error) {
	if _, err := s.sessionRepo.GetByID(sessionID); err != nil {
		return nil, err
	}
	return s.teamRepo.Leaderboard(sessionID)
}

// DeleteSession каскадно удаляет сессию со всеми зависимыми данными
func (s *SessionService) DeleteSession(sessionID uint) error {
	if _, err := s.sessionRepo.GetByID(sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(sessionID); err != nil {
		return fmt.Errorf("failed to delete session #%d: %w", sessionID, err)
	}
	log.Printf("[SessionService] Сессия #%d удалена", sessionID)
	return nil
}
