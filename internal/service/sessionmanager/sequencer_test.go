package sessionmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPosition_WithinRound(t *testing.T) {
	round, number, done := NextPosition(1, 1, 3, 2)

	assert.Equal(t, 1, round)
	assert.Equal(t, 2, number)
	assert.False(t, done)
}

func TestNextPosition_RoundBoundary(t *testing.T) {
	// Последний вопрос первого раунда ведет к первому вопросу второго
	round, number, done := NextPosition(1, 3, 3, 2)

	assert.Equal(t, 2, round)
	assert.Equal(t, 1, number)
	assert.False(t, done)
}

func TestNextPosition_GameEnd(t *testing.T) {
	// Последний вопрос последнего раунда завершает игру
	round, number, done := NextPosition(2, 3, 3, 2)

	assert.Equal(t, 2, round)
	assert.Equal(t, 3, number)
	assert.True(t, done)
}

func TestNextPosition_FullWalk(t *testing.T) {
	// Полный обход сетки 2x3 дает ровно 6 позиций в фиксированном порядке
	expected := [][2]int{{1, 1}, {1, 2}, {1, 3}, {2, 1}, {2, 2}, {2, 3}}

	round, number := 1, 1
	visited := [][2]int{{round, number}}
	for {
		nr, nn, done := NextPosition(round, number, 3, 2)
		if done {
			break
		}
		round, number = nr, nn
		visited = append(visited, [2]int{round, number})
	}

	assert.Equal(t, expected, visited)
}

func TestValidPosition(t *testing.T) {
	assert.True(t, ValidPosition(1, 1, 3, 2))
	assert.True(t, ValidPosition(2, 3, 3, 2))
	assert.False(t, ValidPosition(0, 1, 3, 2))
	assert.False(t, ValidPosition(1, 0, 3, 2))
	assert.False(t, ValidPosition(3, 1, 3, 2))
	assert.False(t, ValidPosition(1, 4, 3, 2))
}

func TestPositionIndex(t *testing.T) {
	assert.Equal(t, 1, PositionIndex(1, 1, 3))
	assert.Equal(t, 3, PositionIndex(1, 3, 3))
	assert.Equal(t, 4, PositionIndex(2, 1, 3))
	assert.Equal(t, 6, PositionIndex(2, 3, 3))
}

func TestTotalQuestions(t *testing.T) {
	assert.Equal(t, 6, TotalQuestions(2, 3))
	assert.Equal(t, 5, TotalQuestions(1, 5))
}
