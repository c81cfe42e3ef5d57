// Package countdown считает остаток таймера вопроса от авторитетных
// полей сервера. Клиенты никогда не ведут собственный таймер: и сервер,
// и клиент выводят остаток одной и той же формулой, поэтому после
// переподключения отображаемое время совпадает с серверным с точностью
// до сетевой задержки.
package countdown

import "time"

// Remaining возвращает остаток таймера вопроса.
// startedAt - момент показа вопроса по серверным часам,
// duration - полная длительность, now - текущий момент.
// Отрицательный остаток обрезается до нуля: время вышло.
func Remaining(startedAt time.Time, duration time.Duration, now time.Time) time.Duration {
	deadline := startedAt.Add(duration)
	left := deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// FromSnapshot считает остаток по авторитетным полям снапшота сессии.
// Вопрос без отметки старта дает нулевой остаток.
func FromSnapshot(startedAt *time.Time, durationSec int, now time.Time) time.Duration {
	if startedAt == nil {
		return 0
	}
	return Remaining(*startedAt, time.Duration(durationSec)*time.Second, now)
}

// Expired сообщает, вышло ли время вопроса
func Expired(startedAt time.Time, duration time.Duration, now time.Time) bool {
	return Remaining(startedAt, duration, now) == 0
}
