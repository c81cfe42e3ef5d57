package entity

import (
	"time"
)

// Константы статусов игровой сессии
const (
	SessionStatusDraft      = "draft"
	SessionStatusReady      = "ready"
	SessionStatusInProgress = "in_progress"
	SessionStatusPaused     = "paused"
	SessionStatusCompleted  = "completed"
)

// QuizSession представляет один полный прогон викторины в заведении -
// от конфигурации до завершения. Это авторитетная запись, через которую
// проходят все мутации позиции и таймера.
type QuizSession struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Title             string `gorm:"size:100;not null" json:"title"`
	VenueName         string `gorm:"size:100;not null;default:''" json:"venue_name"`
	Status            string `gorm:"size:20;not null;default:'draft';index" json:"status"`
	RoundsTotal       int    `gorm:"not null;default:1" json:"rounds_total"`
	QuestionsPerRound int    `gorm:"not null;default:5" json:"questions_per_round"`

	// Текущая позиция. Двигается только вперед и не более чем на один
	// логический шаг за мутацию (смена раунда сбрасывает номер на 1).
	CurrentRound          int `gorm:"not null;default:1" json:"current_round"`
	CurrentQuestionNumber int `gorm:"not null;default:1" json:"current_question_number"`

	// QuestionStartedAt устанавливается ровно один раз на каждую отдельную
	// позицию. Повторный старт той же позиции его не трогает.
	QuestionStartedAt *time.Time `gorm:"index" json:"question_started_at,omitempty"`

	AutoAdvanceEnabled     bool `gorm:"not null;default:true" json:"auto_advance_enabled"`
	AutoAdvancePaused      bool `gorm:"not null;default:false" json:"auto_advance_paused"`
	AutoAdvanceDurationSec int  `gorm:"not null;default:30" json:"auto_advance_duration_sec"`

	// PausedAt фиксирует момент паузы. При возобновлении QuestionStartedAt
	// сдвигается вперед на длительность паузы, так что остаток таймера
	// продолжается с того же значения.
	PausedAt *time.Time `json:"paused_at,omitempty"`

	// Version строго растет на каждой успешной мутации. Хаб рассылки
	// использует его, чтобы решать, когда отправлять новый снапшот.
	Version int64 `gorm:"not null;default:0" json:"version"`

	// HostCodeHash - bcrypt-хеш кода ведущего. Сам код нигде не хранится.
	HostCodeHash string `gorm:"size:100;not null;default:''" json:"-"`

	Questions []Question `gorm:"foreignKey:SessionID" json:"questions,omitempty"`
	Teams     []Team     `gorm:"foreignKey:SessionID" json:"teams,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// IsActive проверяет, идет ли сессия (таймер может быть на паузе, прием
// ответов при этом не прекращается)
func (s *QuizSession) IsActive() bool {
	return s.Status == SessionStatusInProgress || s.Status == SessionStatusPaused
}

// IsDraft проверяет, находится ли сессия в черновике
func (s *QuizSession) IsDraft() bool {
	return s.Status == SessionStatusDraft
}

// IsReady проверяет, готова ли сессия к запуску
func (s *QuizSession) IsReady() bool {
	return s.Status == SessionStatusReady
}

// IsCompleted проверяет, завершена ли сессия
func (s *QuizSession) IsCompleted() bool {
	return s.Status == SessionStatusCompleted
}

// AtPosition проверяет, совпадает ли текущая позиция с (round, number)
func (s *QuizSession) AtPosition(round, number int) bool {
	return s.CurrentRound == round && s.CurrentQuestionNumber == number
}

// TotalQuestions возвращает полное число вопросов сессии
func (s *QuizSession) TotalQuestions() int {
	return s.RoundsTotal * s.QuestionsPerRound
}
