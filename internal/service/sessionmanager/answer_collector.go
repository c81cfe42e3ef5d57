package sessionmanager

import (
	"fmt"
	"log"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// AnswerCollector принимает и оценивает ответы команд. Ответы принимаются
// только на текущий вопрос сессии; повторную отправку отсекает уникальное
// ограничение (team, question) в БД, так что очки за вопрос начисляются
// не больше одного раза даже при конкурентных дублях.
type AnswerCollector struct {
	deps *Dependencies
}

// NewAnswerCollector создает новый сборщик ответов
func NewAnswerCollector(deps *Dependencies) *AnswerCollector {
	return &AnswerCollector{deps: deps}
}

// Submit принимает ответ команды на вопрос.
// Ответ оценивается немедленно: корректность и очки фиксируются в той же
// транзакции, что и сам ответ.
func (c *AnswerCollector) Submit(sessionID, teamID, questionID uint, content string) (*entity.Answer, error) {
	question, err := c.validateSubmission(sessionID, teamID, questionID)
	if err != nil {
		return nil, err
	}

	correct, points := question.Grade(content)
	answer := &entity.Answer{
		SessionID:     sessionID,
		TeamID:        teamID,
		QuestionID:    questionID,
		Content:       content,
		IsCorrect:     correct,
		PointsAwarded: points,
		SubmittedAt:   c.deps.Clock.Now(),
	}

	if err := c.deps.AnswerRepo.SubmitGraded(answer); err != nil {
		return nil, err
	}

	log.Printf("[AnswerCollector] Сессия #%d: команда #%d ответила на вопрос #%d (correct=%t, points=%d)",
		sessionID, teamID, questionID, correct, points)
	c.bumpVersion(sessionID)
	return answer, nil
}

// Buzz регистрирует заявку команды на устный ответ. Порядковый номер заявки
// выдает Redis INCR: он исполняет инкременты последовательно, поэтому
// порядок заявок глобально однозначен даже при нескольких репликах API.
func (c *AnswerCollector) Buzz(sessionID, teamID, questionID uint) (*entity.Buzz, error) {
	question, err := c.validateSubmission(sessionID, teamID, questionID)
	if err != nil {
		return nil, err
	}
	if question.Kind != entity.QuestionKindBuzzer {
		return nil, fmt.Errorf("%w: question #%d is not a buzzer question", apperrors.ErrValidation, questionID)
	}

	claimOrder, err := c.deps.CacheRepo.Increment(buzzOrderKey(questionID))
	if err != nil {
		return nil, fmt.Errorf("allocate buzz order for question #%d failed: %w", questionID, err)
	}

	buzz := &entity.Buzz{
		SessionID:  sessionID,
		TeamID:     teamID,
		QuestionID: questionID,
		ClaimOrder: int(claimOrder),
		BuzzedAt:   c.deps.Clock.Now(),
	}
	if err := c.deps.AnswerRepo.CreateBuzz(buzz); err != nil {
		return nil, err
	}

	log.Printf("[AnswerCollector] Сессия #%d: команда #%d баззит на вопрос #%d (order=%d)",
		sessionID, teamID, questionID, buzz.ClaimOrder)
	c.bumpVersion(sessionID)
	return buzz, nil
}

// GrantBuzz - решение ведущего: заявка принята, команда получает полные
// очки вопроса. Базз засчитывается не больше одного раза.
func (c *AnswerCollector) GrantBuzz(sessionID, buzzID uint) (*entity.Answer, error) {
	buzz, err := c.deps.AnswerRepo.GetBuzz(buzzID)
	if err != nil {
		return nil, err
	}

	question, err := c.deps.QuestionRepo.GetByID(buzz.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.SessionID != sessionID {
		return nil, fmt.Errorf("%w: buzz #%d belongs to another session", apperrors.ErrValidation, buzzID)
	}

	answer := &entity.Answer{
		SessionID:     sessionID,
		TeamID:        buzz.TeamID,
		QuestionID:    buzz.QuestionID,
		Content:       question.CorrectAnswer,
		IsCorrect:     true,
		PointsAwarded: question.PointValue,
		SubmittedAt:   c.deps.Clock.Now(),
	}
	if err := c.deps.AnswerRepo.GrantBuzz(buzzID, answer); err != nil {
		return nil, err
	}

	log.Printf("[AnswerCollector] Сессия #%d: базз #%d принят, команда #%d получает %d очков",
		sessionID, buzzID, buzz.TeamID, question.PointValue)
	c.bumpVersion(sessionID)
	return answer, nil
}

// validateSubmission проверяет общие предусловия приема: сессия идет,
// вопрос и команда принадлежат ей, вопрос сейчас на экране.
func (c *AnswerCollector) validateSubmission(sessionID, teamID, questionID uint) (*entity.Question, error) {
	session, err := c.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: session #%d is %s", apperrors.ErrSessionNotActive, sessionID, session.Status)
	}

	question, err := c.deps.QuestionRepo.GetByID(questionID)
	if err != nil {
		return nil, err
	}
	if question.SessionID != sessionID {
		return nil, fmt.Errorf("%w: question #%d belongs to another session", apperrors.ErrValidation, questionID)
	}
	if !session.AtPosition(question.Round, question.Position) {
		return nil, fmt.Errorf("%w: question #%d is not the current question", apperrors.ErrValidation, questionID)
	}
	if session.QuestionStartedAt == nil {
		return nil, fmt.Errorf("%w: question #%d has not been shown yet", apperrors.ErrValidation, questionID)
	}

	team, err := c.deps.TeamRepo.GetByID(teamID)
	if err != nil {
		return nil, err
	}
	if team.SessionID != sessionID {
		return nil, fmt.Errorf("%w: team #%d belongs to another session", apperrors.ErrValidation, teamID)
	}

	return question, nil
}

// bumpVersion двигает версию сессии после изменения счета или заявок,
// чтобы хаб разослал свежие снапшоты. Ошибки не фатальны: сам ответ уже
// надежно сохранен.
func (c *AnswerCollector) bumpVersion(sessionID uint) {
	session, err := c.deps.SessionRepo.Mutate(sessionID, func(session *entity.QuizSession) error {
		session.Version++
		return nil
	})
	if err != nil {
		log.Printf("[AnswerCollector] Ошибка инкремента версии сессии #%d: %v", sessionID, err)
		return
	}
	c.deps.notify(sessionID, session.Version)
}

func buzzOrderKey(questionID uint) string {
	return fmt.Sprintf("buzz:question:%d", questionID)
}
