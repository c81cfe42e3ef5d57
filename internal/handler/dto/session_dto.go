package dto

import (
	"time"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
)

// QuestionResponse представляет вопрос в формате для ответа клиенту
type QuestionResponse struct {
	ID       uint     `json:"id"`
	Round    int      `json:"round"`
	Position int      `json:"position"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Kind     string   `json:"kind"`
	Options  []string `json:"options"`
	// Заполняется только в ответах ведущему
	CorrectAnswer string `json:"correct_answer,omitempty"`
	PointValue    int    `json:"point_value"`
}

// SessionResponse представляет игровую сессию в формате для ответа клиенту
type SessionResponse struct {
	ID                     uint               `json:"id"`
	Title                  string             `json:"title"`
	VenueName              string             `json:"venue_name,omitempty"`
	Status                 string             `json:"status"`
	RoundsTotal            int                `json:"rounds_total"`
	QuestionsPerRound      int                `json:"questions_per_round"`
	CurrentRound           int                `json:"current_round"`
	CurrentQuestionNumber  int                `json:"current_question_number"`
	Version                int64              `json:"version"`
	AutoAdvanceEnabled     bool               `json:"auto_advance_enabled"`
	AutoAdvancePaused      bool               `json:"auto_advance_paused"`
	AutoAdvanceDurationSec int                `json:"auto_advance_duration_sec"`
	QuestionStartedAt      *time.Time         `json:"question_started_at,omitempty"`
	Questions              []QuestionResponse `json:"questions,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// TeamResponse представляет команду в формате для ответа клиенту
type TeamResponse struct {
	ID        uint      `json:"id"`
	SessionID uint      `json:"session_id"`
	Name      string    `json:"name"`
	TableNo   string    `json:"table_no,omitempty"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisteredTeamResponse - команда вместе с тикетом для WebSocket
type RegisteredTeamResponse struct {
	Team   TeamResponse `json:"team"`
	Ticket string       `json:"ticket"`
}

// PaginatedSessionResponse представляет пагинированный список сессий
type PaginatedSessionResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// AnswerResponse представляет принятый ответ
type AnswerResponse struct {
	ID            uint      `json:"id"`
	TeamID        uint      `json:"team_id"`
	QuestionID    uint      `json:"question_id"`
	IsCorrect     bool      `json:"is_correct"`
	PointsAwarded int       `json:"points_awarded"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// BuzzResponse представляет заявку на ответ в buzzer-вопросе
type BuzzResponse struct {
	ID         uint      `json:"id"`
	QuestionID uint      `json:"question_id"`
	TeamID     uint      `json:"team_id"`
	ClaimOrder int       `json:"claim_order"`
	Granted    bool      `json:"granted"`
	BuzzedAt   time.Time `json:"buzzed_at"`
}

// NewQuestionResponse создает DTO для вопроса.
// Текст правильного ответа включается только для ведущего.
func NewQuestionResponse(q *entity.Question, includeAnswer bool) QuestionResponse {
	resp := QuestionResponse{
		ID:         q.ID,
		Round:      q.Round,
		Position:   q.Position,
		Category:   q.Category,
		Text:       q.Text,
		Kind:       q.Kind,
		Options:    []string(q.Options),
		PointValue: q.PointValue,
	}
	if includeAnswer {
		resp.CorrectAnswer = q.CorrectAnswer
	}
	return resp
}

// NewSessionResponse создает DTO для игровой сессии
func NewSessionResponse(session *entity.QuizSession, includeAnswers bool) *SessionResponse {
	resp := &SessionResponse{
		ID:                     session.ID,
		Title:                  session.Title,
		VenueName:              session.VenueName,
		Status:                 session.Status,
		RoundsTotal:            session.RoundsTotal,
		QuestionsPerRound:      session.QuestionsPerRound,
		CurrentRound:           session.CurrentRound,
		CurrentQuestionNumber:  session.CurrentQuestionNumber,
		Version:                session.Version,
		AutoAdvanceEnabled:     session.AutoAdvanceEnabled,
		AutoAdvancePaused:      session.AutoAdvancePaused,
		AutoAdvanceDurationSec: session.AutoAdvanceDurationSec,
		QuestionStartedAt:      session.QuestionStartedAt,
		CreatedAt:              session.CreatedAt,
		UpdatedAt:              session.UpdatedAt,
	}

	if len(session.Questions) > 0 {
		resp.Questions = make([]QuestionResponse, 0, len(session.Questions))
		for i := range session.Questions {
			resp.Questions = append(resp.Questions, NewQuestionResponse(&session.Questions[i], includeAnswers))
		}
	}

	return resp
}

// NewListSessionResponse создает пагинированный список DTO сессий
func NewListSessionResponse(sessions []entity.QuizSession, total int64, limit, offset int) *PaginatedSessionResponse {
	items := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, *NewSessionResponse(&sessions[i], false))
	}
	return &PaginatedSessionResponse{
		Sessions: items,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
}

// NewTeamResponse создает DTO для команды
func NewTeamResponse(team *entity.Team) TeamResponse {
	return TeamResponse{
		ID:        team.ID,
		SessionID: team.SessionID,
		Name:      team.Name,
		TableNo:   team.TableNo,
		Score:     team.Score,
		CreatedAt: team.CreatedAt,
	}
}

// NewTeamListResponse создает список DTO команд
func NewTeamListResponse(teams []entity.Team) []TeamResponse {
	items := make([]TeamResponse, 0, len(teams))
	for i := range teams {
		items = append(items, NewTeamResponse(&teams[i]))
	}
	return items
}

// NewAnswerResponse создает DTO для принятого ответа
func NewAnswerResponse(answer *entity.Answer) *AnswerResponse {
	return &AnswerResponse{
		ID:            answer.ID,
		TeamID:        answer.TeamID,
		QuestionID:    answer.QuestionID,
		IsCorrect:     answer.IsCorrect,
		PointsAwarded: answer.PointsAwarded,
		SubmittedAt:   answer.SubmittedAt,
	}
}

// NewBuzzResponse создает DTO для buzzer-заявки
func NewBuzzResponse(buzz *entity.Buzz) *BuzzResponse {
	return &BuzzResponse{
		ID:         buzz.ID,
		QuestionID: buzz.QuestionID,
		TeamID:     buzz.TeamID,
		ClaimOrder: buzz.ClaimOrder,
		Granted:    buzz.Granted,
		BuzzedAt:   buzz.BuzzedAt,
	}
}
