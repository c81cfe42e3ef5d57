package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestion_IsCorrect_ExactMatch(t *testing.T) {
	// Arrange
	question := &Question{
		ID:            1,
		SessionID:     1,
		Text:          "Столица Франции?",
		Kind:          QuestionKindWritten,
		CorrectAnswer: "Paris",
		PointValue:    10,
	}

	// Act & Assert
	assert.True(t, question.IsCorrect("Paris"), "Точный ответ должен быть правильным")
}

func TestQuestion_IsCorrect_CaseAndWhitespace(t *testing.T) {
	// Arrange
	question := &Question{
		CorrectAnswer: "Paris",
	}

	// Act & Assert: регистр и краевые пробелы не должны влиять на оценку
	assert.True(t, question.IsCorrect("paris"), "Регистр не должен влиять на оценку")
	assert.True(t, question.IsCorrect("  Paris  "), "Краевые пробелы не должны влиять на оценку")
	assert.False(t, question.IsCorrect("London"), "Неверный ответ должен быть отклонен")
	assert.False(t, question.IsCorrect(""), "Пустой ответ должен быть отклонен")
}

func TestQuestion_Grade(t *testing.T) {
	// Arrange
	question := &Question{
		Kind:          QuestionKindMultipleChoice,
		Options:       StringArray{"Berlin", "Paris", "Madrid", "Rome"},
		CorrectAnswer: "Paris",
		PointValue:    10,
	}

	// Act
	correct, points := question.Grade("Paris")
	wrong, zero := question.Grade("Berlin")

	// Assert
	assert.True(t, correct, "Правильный вариант должен быть засчитан")
	assert.Equal(t, 10, points, "За правильный ответ начисляется полная стоимость вопроса")
	assert.False(t, wrong, "Неправильный вариант не должен быть засчитан")
	assert.Equal(t, 0, zero, "За неправильный ответ очки не начисляются")
}

func TestSession_AtPosition(t *testing.T) {
	// Arrange
	session := &QuizSession{
		CurrentRound:          2,
		CurrentQuestionNumber: 4,
	}

	// Act & Assert
	assert.True(t, session.AtPosition(2, 4), "Текущая позиция должна совпадать")
	assert.False(t, session.AtPosition(2, 5), "Следующая позиция не должна совпадать")
	assert.False(t, session.AtPosition(1, 4), "Прошлый раунд не должен совпадать")
}

func TestSession_StatusHelpers(t *testing.T) {
	assert.True(t, (&QuizSession{Status: SessionStatusInProgress}).IsActive())
	assert.True(t, (&QuizSession{Status: SessionStatusPaused}).IsActive())
	assert.False(t, (&QuizSession{Status: SessionStatusDraft}).IsActive())
	assert.True(t, (&QuizSession{Status: SessionStatusCompleted}).IsCompleted())
	assert.Equal(t, 6, (&QuizSession{RoundsTotal: 2, QuestionsPerRound: 3}).TotalQuestions())
}
