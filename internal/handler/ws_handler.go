package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/pubquiz-api/internal/service"
	"github.com/yourusername/pubquiz-api/internal/websocket"
	"github.com/yourusername/pubquiz-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsHub          *websocket.SessionHub
	wsManager      *websocket.Manager
	sessionManager *service.SessionManager
	ticketService  *auth.TicketService
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsHub *websocket.SessionHub,
	wsManager *websocket.Manager,
	sessionManager *service.SessionManager,
	ticketService *auth.TicketService,
) *WSHandler {
	handler := &WSHandler{
		wsHub:          wsHub,
		wsManager:      wsManager,
		sessionManager: sessionManager,
		ticketService:  ticketService,
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Если Origin пустой - это не браузерный клиент (мобильное приложение, curl и т.д.)
		// Разрешаем такие подключения
		if origin == "" {
			return true
		}

		// Список разрешенных origin (синхронизирован с CORS в main.go)
		allowedOrigins := []string{
			"https://pubquiz-board.vercel.app",
			"https://pubquiz-host.vercel.app",
			"http://localhost:5173",
			"http://localhost:3000",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация идет по короткоживущему тикету (?ticket=...),
// сессия и роль берутся из его claims и не меняются до разрыва.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// НЕ логируем тикет - это секретные данные аутентификации
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	claims, err := h.ticketService.Parse(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	log.Printf("WebSocket: Connection upgraded for session #%d (role=%s, team=%d)",
		claims.SessionID, claims.Role, claims.TeamID)

	client := websocket.NewClient(h.wsHub, conn, claims.SessionID, claims.Role, claims.TeamID)

	// Регистрация отправит клиенту полный снапшот
	h.wsHub.Register(client)
	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	// Письменный ответ или выбор варианта
	h.wsManager.RegisterHandler(websocket.ANSWER_SUBMIT, func(data json.RawMessage, client *websocket.Client) error {
		var event struct {
			QuestionID uint   `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга %s: %v, Data: %s", websocket.ANSWER_SUBMIT, err, string(data))
			return fmt.Errorf("failed to parse %s event: %w", websocket.ANSWER_SUBMIT, err)
		}

		if client.Role != auth.RolePlayer {
			return fmt.Errorf("only players can submit answers")
		}

		if _, err := h.sessionManager.SubmitAnswer(client.SessionID, client.TeamID, event.QuestionID, event.Answer); err != nil {
			log.Printf("[WSHandler] Ответ команды #%d на вопрос #%d отклонен: %v", client.TeamID, event.QuestionID, err)
			return err
		}
		return nil
	})

	// Заявка на ответ в buzzer-вопросе
	h.wsManager.RegisterHandler(websocket.BUZZ_CLAIM, func(data json.RawMessage, client *websocket.Client) error {
		var event struct {
			QuestionID uint `json:"question_id"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга %s: %v, Data: %s", websocket.BUZZ_CLAIM, err, string(data))
			return fmt.Errorf("failed to parse %s event: %w", websocket.BUZZ_CLAIM, err)
		}

		if client.Role != auth.RolePlayer {
			return fmt.Errorf("only players can buzz")
		}

		if _, err := h.sessionManager.Buzz(client.SessionID, client.TeamID, event.QuestionID); err != nil {
			log.Printf("[WSHandler] Buzz команды #%d на вопрос #%d отклонен: %v", client.TeamID, event.QuestionID, err)
			return err
		}
		return nil
	})

	// Явный запрос снапшота (клиент заметил рассинхрон)
	h.wsManager.RegisterHandler(websocket.SNAPSHOT_REQUEST, func(data json.RawMessage, client *websocket.Client) error {
		client.ResetVersion()
		h.wsManager.SendSnapshotToClient(client)
		return nil
	})
}
