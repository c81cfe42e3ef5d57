package entity

import (
	"time"
)

// BankQuestion - вопрос из общего банка, из которого генерируются раунды.
// При генерации вопрос копируется в Question сессии; банк остается
// неизменным и переиспользуется между сессиями.
type BankQuestion struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Category      string      `gorm:"size:100;not null;index" json:"category"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Kind          string      `gorm:"size:20;not null;default:'multiple_choice'" json:"kind"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectAnswer string      `gorm:"size:500;not null" json:"-"`
	PointValue    int         `gorm:"not null;default:10" json:"point_value"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (BankQuestion) TableName() string {
	return "bank_questions"
}

// ToSessionQuestion копирует банковский вопрос в вопрос сессии
func (b *BankQuestion) ToSessionQuestion(sessionID uint, round, position int) Question {
	return Question{
		SessionID:     sessionID,
		Round:         round,
		Position:      position,
		Category:      b.Category,
		Text:          b.Text,
		Kind:          b.Kind,
		Options:       b.Options,
		CorrectAnswer: b.CorrectAnswer,
		PointValue:    b.PointValue,
	}
}
