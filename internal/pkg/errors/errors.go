package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrValidation используется для ошибок валидации входных данных.
	// Отклоняется синхронно, состояние не меняется.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateAnswer используется при повторной отправке ответа на уже
	// отвеченный вопрос. Первый ответ остается нетронутым.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")

	// ErrStaleAdvance используется, когда продвижение нацелено на позицию,
	// которая уже не является текущей. Проигрыш этой гонки конкурентным
	// оценщиком - ожидаемое поведение, не исключительная ситуация.
	ErrStaleAdvance = errors.New("advance targets a position that is no longer current")

	// ErrSessionNotActive используется при операции над сессией вне статуса
	// in_progress. Вызывающая сторона трактует это как no-op.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrUnauthorized используется для ошибок авторизации (неверный тикет, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у клиента недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict используется для конфликтов состояния (например, попытка
	// стартовать уже запущенную сессию).
	ErrConflict = errors.New("resource state conflict")
)
