package sessionmanager

// NextPosition возвращает позицию, следующую за (round, number) в сетке
// из roundsTotal раундов по questionsPerRound вопросов.
// Порядок фиксированный: вопросы раунда по возрастанию позиции, затем
// первый вопрос следующего раунда. done=true означает, что (round, number)
// был последним вопросом игры.
func NextPosition(round, number, questionsPerRound, roundsTotal int) (nextRound, nextNumber int, done bool) {
	if number < questionsPerRound {
		return round, number + 1, false
	}
	if round < roundsTotal {
		return round + 1, 1, false
	}
	return round, number, true
}

// ValidPosition проверяет, что (round, number) лежит внутри сетки игры
func ValidPosition(round, number, questionsPerRound, roundsTotal int) bool {
	return round >= 1 && round <= roundsTotal &&
		number >= 1 && number <= questionsPerRound
}

// PositionIndex возвращает сквозной номер позиции (round, number),
// начиная с 1. Используется для прогресса вида "вопрос 4 из 6".
func PositionIndex(round, number, questionsPerRound int) int {
	return (round-1)*questionsPerRound + number
}

// TotalQuestions возвращает общее число вопросов в сетке игры
func TotalQuestions(roundsTotal, questionsPerRound int) int {
	return roundsTotal * questionsPerRound
}
