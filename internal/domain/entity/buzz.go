package entity

import (
	"time"
)

// Buzz представляет заявку команды на право ответа. Записывается только
// порядок заявок; корректность и очки начисляются отдельным явным решением
// ведущего, поэтому быстрый, но неверный базз сам по себе очков не дает.
type Buzz struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  uint      `gorm:"not null;index" json:"session_id"`
	QuestionID uint      `gorm:"not null;uniqueIndex:idx_buzz_question_team,priority:1" json:"question_id"`
	TeamID     uint      `gorm:"not null;uniqueIndex:idx_buzz_question_team,priority:2" json:"team_id"`
	ClaimOrder int       `gorm:"not null" json:"claim_order"`
	Granted    bool      `gorm:"not null;default:false" json:"granted"`
	BuzzedAt   time.Time `gorm:"not null" json:"buzzed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Buzz) TableName() string {
	return "buzzes"
}
