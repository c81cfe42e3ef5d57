package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	// Половина времени прошла
	left := Remaining(start, 60*time.Second, start.Add(30*time.Second))
	assert.Equal(t, 30*time.Second, left)

	// Время только началось
	left = Remaining(start, 60*time.Second, start)
	assert.Equal(t, 60*time.Second, left)

	// Время вышло ровно на границе
	left = Remaining(start, 60*time.Second, start.Add(60*time.Second))
	assert.Equal(t, time.Duration(0), left)

	// Прошло больше длительности: остаток обрезается до нуля
	left = Remaining(start, 60*time.Second, start.Add(5*time.Minute))
	assert.Equal(t, time.Duration(0), left)
}

func TestFromSnapshot(t *testing.T) {
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	// Вопрос еще не показан
	assert.Equal(t, time.Duration(0), FromSnapshot(nil, 60, start))

	// Обычный отсчет
	assert.Equal(t, 45*time.Second, FromSnapshot(&start, 60, start.Add(15*time.Second)))

	// Одинаковые поля дают одинаковый остаток (детерминизм)
	a := FromSnapshot(&start, 60, start.Add(7*time.Second))
	b := FromSnapshot(&start, 60, start.Add(7*time.Second))
	assert.Equal(t, a, b)
}

func TestExpired(t *testing.T) {
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.False(t, Expired(start, 60*time.Second, start.Add(59*time.Second)))
	assert.True(t, Expired(start, 60*time.Second, start.Add(60*time.Second)))
	assert.True(t, Expired(start, 60*time.Second, start.Add(61*time.Second)))
}
