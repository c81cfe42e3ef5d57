package websocket

// Типы исходящих сообщений
const (
	// SESSION_SNAPSHOT несет полное состояние сессии на момент version.
	// Клиент замещает им свое локальное состояние целиком.
	SESSION_SNAPSHOT = "SESSION_SNAPSHOT"

	// HEARTBEAT подтверждает живость соединения и несет серверное время
	HEARTBEAT = "HEARTBEAT"

	// SERVER_ERROR - стандартизированное сообщение об ошибке
	SERVER_ERROR = "server:error"
)

// Типы входящих сообщений от клиентов
const (
	// ANSWER_SUBMIT - команда отправляет ответ на текущий вопрос
	ANSWER_SUBMIT = "answer:submit"

	// BUZZ_CLAIM - команда жмет на кнопку
	BUZZ_CLAIM = "buzz:claim"

	// SNAPSHOT_REQUEST - клиент просит прислать снапшот повторно
	SNAPSHOT_REQUEST = "snapshot:request"
)
