package sessionmanager

import (
	"time"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/pkg/auth"
	"github.com/yourusername/pubquiz-api/pkg/countdown"
)

// QuestionView - вопрос в том виде, в каком его можно показывать игрокам.
// Правильный ответ присутствует только в снапшоте ведущего.
type QuestionView struct {
	ID            uint               `json:"id"`
	Round         int                `json:"round"`
	Position      int                `json:"position"`
	Category      string             `json:"category"`
	Text          string             `json:"text"`
	Kind          string             `json:"kind"`
	Options       entity.StringArray `json:"options"`
	PointValue    int                `json:"point_value"`
	CorrectAnswer string             `json:"correct_answer,omitempty"`
}

// TeamView - строка таблицы результатов
type TeamView struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	TableNo string `json:"table_no"`
	Score   int    `json:"score"`
}

// Snapshot - полное состояние сессии на момент version. Клиент всегда
// замещает им свое локальное состояние целиком; никакого проигрывания
// пропущенных событий не требуется.
type Snapshot struct {
	SessionID             uint   `json:"session_id"`
	Status                string `json:"status"`
	Version               int64  `json:"version"`
	CurrentRound          int    `json:"current_round"`
	CurrentQuestionNumber int    `json:"current_question_number"`
	RoundsTotal           int    `json:"rounds_total"`
	QuestionsPerRound     int    `json:"questions_per_round"`

	// Сквозной прогресс для отображения "вопрос N из M"
	QuestionIndex  int `json:"question_index"`
	QuestionsTotal int `json:"questions_total"`

	Question *QuestionView `json:"question,omitempty"`

	// Авторитетные поля таймера. Клиент выводит обратный отсчет из них
	// же, из чего сервер выводит свой, поэтому после переподключения
	// отображение совпадает с серверным.
	QuestionStartedAt *time.Time `json:"question_started_at,omitempty"`
	DurationSec       int        `json:"duration_sec"`
	RemainingMs       int64      `json:"remaining_ms"`
	ServerTime        time.Time  `json:"server_time"`

	AutoAdvanceEnabled bool `json:"auto_advance_enabled"`
	AutoAdvancePaused  bool `json:"auto_advance_paused"`

	Leaderboard []TeamView `json:"leaderboard"`

	// Только для ведущего
	AnswerCount int           `json:"answer_count,omitempty"`
	Buzzes      []entity.Buzz `json:"buzzes,omitempty"`
}

// SnapshotBuilder собирает снапшоты состояния для рассылки по WebSocket
type SnapshotBuilder struct {
	deps *Dependencies
}

// NewSnapshotBuilder создает новый сборщик снапшотов
func NewSnapshotBuilder(deps *Dependencies) *SnapshotBuilder {
	return &SnapshotBuilder{deps: deps}
}

// Build собирает снапшот сессии для указанной роли (host или player)
func (b *SnapshotBuilder) Build(sessionID uint, role string) (*Snapshot, error) {
	session, err := b.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}

	now := b.deps.Clock.Now()
	snapshot := &Snapshot{
		SessionID:             session.ID,
		Status:                session.Status,
		Version:               session.Version,
		CurrentRound:          session.CurrentRound,
		CurrentQuestionNumber: session.CurrentQuestionNumber,
		RoundsTotal:           session.RoundsTotal,
		QuestionsPerRound:     session.QuestionsPerRound,
		QuestionIndex:         PositionIndex(session.CurrentRound, session.CurrentQuestionNumber, session.QuestionsPerRound),
		QuestionsTotal:        TotalQuestions(session.RoundsTotal, session.QuestionsPerRound),
		QuestionStartedAt:     session.QuestionStartedAt,
		DurationSec:           session.AutoAdvanceDurationSec,
		ServerTime:            now,
		AutoAdvanceEnabled:    session.AutoAdvanceEnabled,
		AutoAdvancePaused:     session.AutoAdvancePaused,
	}

	if session.QuestionStartedAt != nil {
		duration := time.Duration(session.AutoAdvanceDurationSec) * time.Second
		// На паузе остаток считается от момента паузы, а не от текущего
		at := now
		if session.Status == entity.SessionStatusPaused && session.PausedAt != nil {
			at = *session.PausedAt
		}
		snapshot.RemainingMs = countdown.Remaining(*session.QuestionStartedAt, duration, at).Milliseconds()
	}

	if session.IsActive() {
		question, err := b.deps.QuestionRepo.GetByPosition(sessionID, session.CurrentRound, session.CurrentQuestionNumber)
		if err == nil {
			view := &QuestionView{
				ID:         question.ID,
				Round:      question.Round,
				Position:   question.Position,
				Category:   question.Category,
				Text:       question.Text,
				Kind:       question.Kind,
				Options:    question.Options,
				PointValue: question.PointValue,
			}
			if role == auth.RoleHost {
				view.CorrectAnswer = question.CorrectAnswer
			}
			snapshot.Question = view

			if role == auth.RoleHost {
				answers, err := b.deps.AnswerRepo.GetByQuestion(question.ID)
				if err == nil {
					snapshot.AnswerCount = len(answers)
				}
				buzzes, err := b.deps.AnswerRepo.GetBuzzes(question.ID)
				if err == nil {
					snapshot.Buzzes = buzzes
				}
			}
		}
	}

	teams, err := b.deps.TeamRepo.Leaderboard(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot.Leaderboard = make([]TeamView, 0, len(teams))
	for _, team := range teams {
		snapshot.Leaderboard = append(snapshot.Leaderboard, TeamView{
			ID:      team.ID,
			Name:    team.Name,
			TableNo: team.TableNo,
			Score:   team.Score,
		})
	}

	return snapshot, nil
}
