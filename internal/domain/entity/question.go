package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Виды вопросов
const (
	QuestionKindMultipleChoice = "multiple_choice"
	QuestionKindWritten        = "written"
	QuestionKindBuzzer         = "buzzer"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос сессии. Последовательность вопросов раунда
// неизменяема после генерации; перегенерация заменяет раунд целиком.
type Question struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	SessionID uint        `gorm:"not null;index;uniqueIndex:idx_session_round_position,priority:1" json:"session_id"`
	Round     int         `gorm:"not null;uniqueIndex:idx_session_round_position,priority:2" json:"round"`
	Position  int         `gorm:"not null;uniqueIndex:idx_session_round_position,priority:3" json:"position"`
	Category  string      `gorm:"size:100;not null;default:''" json:"category"`
	Text      string      `gorm:"size:500;not null" json:"text"`
	Kind      string      `gorm:"size:20;not null;default:'multiple_choice'" json:"kind"`
	Options   StringArray `gorm:"type:jsonb;not null" json:"options"`
	// CorrectAnswer скрыт от игроков; ведущий видит его в своем снапшоте
	CorrectAnswer string    `gorm:"size:500;not null" json:"-"`
	PointValue    int       `gorm:"not null;default:10" json:"point_value"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет присланный ответ. Письменные ответы сравниваются без
// учета регистра и краевых пробелов.
func (q *Question) IsCorrect(submitted string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(q.CorrectAnswer))
}

// Grade возвращает корректность и начисляемые очки за присланный ответ
func (q *Question) Grade(submitted string) (bool, int) {
	if q.IsCorrect(submitted) {
		return true, q.PointValue
	}
	return false, 0
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}
