package repository

import "errors"

var (
	// ErrSessionNotFound означает, что сессия с указанным ID не существует.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoundHasAnswers означает, что раунд нельзя перегенерировать без
	// явного подтверждения: на его вопросы уже есть ответы.
	ErrRoundHasAnswers = errors.New("round already has submitted answers")
)
