package entity

import (
	"time"
)

// Answer представляет ответ команды на вопрос. Уникальность пары
// (team_id, question_id) - жесткий инвариант, обеспеченный уникальным
// индексом в БД, а не проверкой в приложении.
type Answer struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     uint      `gorm:"not null;index" json:"session_id"`
	TeamID        uint      `gorm:"not null;uniqueIndex:idx_team_question,priority:1" json:"team_id"`
	QuestionID    uint      `gorm:"not null;uniqueIndex:idx_team_question,priority:2" json:"question_id"`
	Content       string    `gorm:"size:500;not null" json:"content"`
	IsCorrect     bool      `gorm:"not null" json:"is_correct"`
	PointsAwarded int       `gorm:"not null;default:0" json:"points_awarded"`
	SubmittedAt   time.Time `gorm:"not null" json:"submitted_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}
