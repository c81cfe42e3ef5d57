package entity

import (
	"time"
)

// Team представляет команду за столиком. Счет накопительный и изменяется
// только в одной транзакции с записью ответа или грантом базза.
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index;uniqueIndex:idx_session_team_name,priority:1" json:"session_id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_session_team_name,priority:2" json:"name"`
	TableNo   string    `gorm:"size:20;not null;default:''" json:"table_no"`
	Score     int       `gorm:"not null;default:0" json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Team) TableName() string {
	return "teams"
}
