package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	"github.com/yourusername/pubquiz-api/internal/domain/repository"
	"github.com/yourusername/pubquiz-api/internal/handler/dto"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
	"github.com/yourusername/pubquiz-api/internal/service"
	"github.com/yourusername/pubquiz-api/pkg/auth"
)

// Заголовок, в котором ведущий передает код сессии
const hostCodeHeader = "X-Host-Code"

// SessionHandler обрабатывает запросы, связанные с игровыми сессиями
type SessionHandler struct {
	sessionService *service.SessionService
	sessionManager *service.SessionManager
	teamRepo       repository.TeamRepository
	answerRepo     repository.AnswerRepository
	ticketService  *auth.TicketService
}

// NewSessionHandler создает новый обработчик игровых сессий
func NewSessionHandler(
	sessionService *service.SessionService,
	sessionManager *service.SessionManager,
	teamRepo repository.TeamRepository,
	answerRepo repository.AnswerRepository,
	ticketService *auth.TicketService,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		sessionManager: sessionManager,
		teamRepo:       teamRepo,
		answerRepo:     answerRepo,
		ticketService:  ticketService,
	}
}

// CreateSessionRequest представляет запрос на создание сессии
type CreateSessionRequest struct {
	Title             string `json:"title" binding:"required,min=3,max=100"`
	VenueName         string `json:"venue_name" binding:"omitempty,max=100"`
	HostCode          string `json:"host_code" binding:"required,min=4,max=64"`
	RoundsTotal       int    `json:"rounds_total"`        // 0 = дефолт из конфигурации
	QuestionsPerRound int    `json:"questions_per_round"` // 0 = дефолт из конфигурации
}

// CreateSession обрабатывает запрос на создание сессии
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionService.CreateSession(req.Title, req.VenueName, req.HostCode, req.RoundsTotal, req.QuestionsPerRound)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSessionResponse(session, false))
}

// GetSession возвращает информацию о сессии
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint) // Получаем из контекста

	session, err := h.sessionService.GetSessionByID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// GetSessionWithQuestions возвращает сессию вместе с вопросами.
// Текст правильных ответов включается только для ведущего.
func (h *SessionHandler) GetSessionWithQuestions(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	includeAnswers := false
	if code := c.GetHeader(hostCodeHeader); code != "" {
		if err := h.sessionService.VerifyHostCode(sessionID, code); err != nil {
			h.handleSessionError(c, err)
			return
		}
		includeAnswers = true
	}

	session, err := h.sessionService.GetSessionWithQuestions(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, includeAnswers))
}

// ListSessions возвращает пагинированный список сессий
func (h *SessionHandler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filters := repository.SessionFilters{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}

	sessions, total, err := h.sessionService.ListSessions(filters, limit, offset)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка при получении списка сессий: %v", err)
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListSessionResponse(sessions, total, limit, offset))
}

// DeleteSession удаляет сессию со всеми вопросами, командами и ответами
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	// Сначала снимаем оценщик, чтобы он не тикал удаляемую сессию
	h.sessionManager.StopSessionWatch(sessionID)

	if err := h.sessionService.DeleteSession(sessionID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// GenerateRoundRequest представляет запрос на генерацию раунда
type GenerateRoundRequest struct {
	Category string `json:"category" binding:"omitempty,max=100"`
	// Перегенерация раунда с принятыми ответами требует явного
	// подтверждения: старые ответы при этом каскадно удаляются
	Confirm bool `json:"confirm"`
}

// GenerateRound генерирует (или перегенерирует) вопросы раунда из банка
func (h *SessionHandler) GenerateRound(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	round := int(c.MustGet("round").(uint))

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req GenerateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions, err := h.sessionService.GenerateRound(sessionID, round, req.Category, req.Confirm)
	if err != nil {
		if errors.Is(err, repository.ErrRoundHasAnswers) {
			c.JSON(http.StatusConflict, gin.H{
				"error":            err.Error(),
				"confirm_required": true,
			})
			return
		}
		h.handleSessionError(c, err)
		return
	}

	items := make([]dto.QuestionResponse, 0, len(questions))
	for i := range questions {
		items = append(items, dto.NewQuestionResponse(&questions[i], true))
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "questions": items})
}

// MarkReady переводит сессию из черновика в готовность
func (h *SessionHandler) MarkReady(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	session, err := h.sessionService.MarkReady(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// RegisterTeamRequest представляет запрос на регистрацию команды
type RegisterTeamRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=100"`
	TableNo string `json:"table_no" binding:"omitempty,max=20"`
}

// RegisterTeam регистрирует команду и сразу выдает ей WebSocket-тикет
func (h *SessionHandler) RegisterTeam(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	var req RegisterTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.sessionService.RegisterTeam(sessionID, req.Name, req.TableNo)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	ticket, err := h.ticketService.Generate(sessionID, auth.RolePlayer, team.ID)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка генерации тикета для команды #%d: %v", team.ID, err)
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisteredTeamResponse{
		Team:   dto.NewTeamResponse(team),
		Ticket: ticket,
	})
}

// GetTeams возвращает команды сессии
func (h *SessionHandler) GetTeams(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	teams, err := h.teamRepo.GetBySessionID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTeamListResponse(teams))
}

// GetLeaderboard возвращает таблицу результатов сессии
func (h *SessionHandler) GetLeaderboard(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	teams, err := h.sessionService.GetLeaderboard(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTeamListResponse(teams))
}

// --- Действия ведущего ---

// StartSession запускает готовую сессию
func (h *SessionHandler) StartSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	session, err := h.sessionManager.StartSession(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// NextQuestionRequest представляет запрос на ручное продвижение
type NextQuestionRequest struct {
	// Версия состояния, которую ведущий видел при нажатии кнопки.
	// Несовпадение означает, что состояние уже ушло вперед.
	ExpectedVersion int64 `json:"expected_version" binding:"min=0"`
}

// NextQuestion продвигает сессию на следующий вопрос
func (h *SessionHandler) NextQuestion(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req NextQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.HostNext(sessionID, req.ExpectedVersion)
	if err != nil {
		if errors.Is(err, apperrors.ErrStaleAdvance) {
			// Возвращаем текущее состояние, чтобы клиент мог пересинхронизироваться
			current, getErr := h.sessionService.GetSessionByID(sessionID)
			if getErr == nil {
				c.JSON(http.StatusConflict, gin.H{
					"error":   err.Error(),
					"session": dto.NewSessionResponse(current, false),
				})
				return
			}
		}
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// PauseSession приостанавливает сессию с заморозкой таймера
func (h *SessionHandler) PauseSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	session, err := h.sessionManager.PauseSession(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// ResumeSession возобновляет приостановленную сессию
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	session, err := h.sessionManager.ResumeSession(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// CompleteSession досрочно завершает сессию
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	session, err := h.sessionManager.CompleteSession(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// SetDurationRequest представляет запрос на смену длительности вопроса
type SetDurationRequest struct {
	Seconds int `json:"seconds" binding:"required,min=1,max=3600"`
}

// SetDuration меняет длительность вопроса. Действует немедленно,
// в том числе на уже идущий вопрос.
func (h *SessionHandler) SetDuration(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req SetDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.SetDuration(sessionID, req.Seconds)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// SetAutoAdvanceRequest представляет запрос на переключение авто-продвижения
type SetAutoAdvanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoAdvance включает или выключает авто-продвижение
func (h *SessionHandler) SetAutoAdvance(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req SetAutoAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.SetAutoAdvance(sessionID, *req.Enabled)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// SetAutoAdvancePausedRequest представляет запрос на заморозку таймера
type SetAutoAdvancePausedRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

// SetAutoAdvancePaused замораживает или размораживает таймер текущего
// вопроса. Вопрос остается на экране, ответы продолжают приниматься.
func (h *SessionHandler) SetAutoAdvancePaused(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req SetAutoAdvancePausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.SetAutoAdvancePaused(sessionID, *req.Paused)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// NarrationCompleteRequest сообщает, что ведущий дочитал вопрос вслух
type NarrationCompleteRequest struct {
	Round  int `json:"round" binding:"required,min=1"`
	Number int `json:"number" binding:"required,min=1"`
}

// NarrationComplete запускает таймер текущего вопроса. Повторный вызов
// для той же позиции безвреден: таймер не перезапускается. Колбек для уже
// пройденной позиции отбрасывается и возвращает текущее состояние.
func (h *SessionHandler) NarrationComplete(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req NarrationCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionManager.NarrationComplete(sessionID, req.Round, req.Number)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session, false))
}

// GrantBuzzRequest представляет решение ведущего по buzzer-вопросу
type GrantBuzzRequest struct {
	BuzzID uint `json:"buzz_id" binding:"required"`
}

// GrantBuzz присуждает очки команде, которой ведущий дал ответить
func (h *SessionHandler) GrantBuzz(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	var req GrantBuzzRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.sessionManager.GrantBuzz(sessionID, req.BuzzID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAnswerResponse(answer))
}

// --- Ответы по HTTP (fallback для клиентов без WebSocket) ---

// SubmitAnswerRequest представляет ответ команды на вопрос
type SubmitAnswerRequest struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required,max=500"`
}

// SubmitAnswer принимает ответ команды. Аутентификация по тому же
// тикету, что и WebSocket-подключение.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	claims, ok := h.requirePlayerTicket(c, sessionID)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.sessionManager.SubmitAnswer(sessionID, claims.TeamID, req.QuestionID, req.Answer)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAnswerResponse(answer))
}

// BuzzRequest представляет заявку на ответ в buzzer-вопросе
type BuzzRequest struct {
	QuestionID uint `json:"question_id" binding:"required"`
}

// Buzz принимает заявку команды на ответ в buzzer-вопросе
func (h *SessionHandler) Buzz(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	claims, ok := h.requirePlayerTicket(c, sessionID)
	if !ok {
		return
	}

	var req BuzzRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buzz, err := h.sessionManager.Buzz(sessionID, claims.TeamID, req.QuestionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewBuzzResponse(buzz))
}

// --- Тикеты и снапшоты ---

// WSTicketRequest представляет запрос на выдачу WebSocket-тикета
type WSTicketRequest struct {
	Role   string `json:"role" binding:"required,oneof=host player"`
	TeamID uint   `json:"team_id"` // Обязательно для role=player
}

// IssueWSTicket выдает короткоживущий тикет для WebSocket-подключения.
// Тикет ведущего требует код сессии; тикет игрока - существующую команду.
func (h *SessionHandler) IssueWSTicket(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	var req WSTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Role == auth.RoleHost {
		if !h.requireHostCode(c, sessionID) {
			return
		}
	} else {
		team, err := h.teamRepo.GetByID(req.TeamID)
		if err != nil || team.SessionID != sessionID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Team does not belong to this session"})
			return
		}
	}

	ticket, err := h.ticketService.Generate(sessionID, req.Role, req.TeamID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// GetSnapshot возвращает снапшот состояния по HTTP. Используется
// клиентами до установки WebSocket-соединения и в качестве fallback.
func (h *SessionHandler) GetSnapshot(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	role := auth.RolePlayer
	if code := c.GetHeader(hostCodeHeader); code != "" {
		if err := h.sessionService.VerifyHostCode(sessionID, code); err != nil {
			h.handleSessionError(c, err)
			return
		}
		role = auth.RoleHost
	}

	snapshot, err := h.sessionManager.BuildSnapshot(sessionID, role)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// --- Экспорт результатов ---

// ExportResults экспортирует итоговую таблицу сессии в CSV или Excel
func (h *SessionHandler) ExportResults(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	if !h.requireHostCode(c, sessionID) {
		return
	}

	session, err := h.sessionService.GetSessionByID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	teams, err := h.sessionService.GetLeaderboard(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	answerCounts := make(map[uint]int64, len(teams))
	for i := range teams {
		count, err := h.answerRepo.CountByTeam(teams[i].ID)
		if err != nil {
			log.Printf("[SessionHandler] Ошибка подсчета ответов команды #%d: %v", teams[i].ID, err)
			continue
		}
		answerCounts[teams[i].ID] = count
	}

	filename := fmt.Sprintf("session_%d_results", sessionID)

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		h.exportXLSX(c, session, teams, answerCounts, filename)
	case "csv":
		h.exportCSV(c, teams, answerCounts, filename)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format, use csv or xlsx"})
	}
}

// exportCSV пишет результаты в CSV
func (h *SessionHandler) exportCSV(c *gin.Context, teams []entity.Team, answerCounts map[uint]int64, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения кириллицы в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Место", "Команда", "Стол", "Очки", "Ответов принято"})

	for i, team := range teams {
		writer.Write([]string{
			strconv.Itoa(i + 1),
			sanitizeForExcel(team.Name),
			sanitizeForExcel(team.TableNo),
			strconv.Itoa(team.Score),
			strconv.FormatInt(answerCounts[team.ID], 10),
		})
	}
}

// exportXLSX экспортирует результаты в Excel с использованием StreamWriter
func (h *SessionHandler) exportXLSX(c *gin.Context, session *entity.QuizSession, teams []entity.Team, answerCounts map[uint]int64, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Результаты"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	// Заголовки
	headers := []interface{}{"Место", "Команда", "Стол", "Очки", "Ответов принято"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[SessionHandler] Ошибка записи заголовков: %v", err)
	}

	// Данные
	for i, team := range teams {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		row := []interface{}{i + 1, sanitizeForExcel(team.Name), sanitizeForExcel(team.TableNo), team.Score, answerCounts[team.ID]}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[SessionHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[SessionHandler] Ошибка при Flush: %v", err)
	}

	// Записываем в response
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[SessionHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// --- Вспомогательные методы ---

// requireHostCode проверяет код ведущего из заголовка.
// Возвращает false, если запрос уже отклонен.
func (h *SessionHandler) requireHostCode(c *gin.Context, sessionID uint) bool {
	code := c.GetHeader(hostCodeHeader)
	if code == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Missing %s header", hostCodeHeader)})
		return false
	}
	if err := h.sessionService.VerifyHostCode(sessionID, code); err != nil {
		h.handleSessionError(c, err)
		return false
	}
	return true
}

// requirePlayerTicket проверяет игровой тикет из заголовка Authorization
// (Bearer) и его принадлежность сессии. Возвращает claims и false,
// если запрос уже отклонен.
func (h *SessionHandler) requirePlayerTicket(c *gin.Context, sessionID uint) (*auth.TicketClaims, bool) {
	header := c.GetHeader("Authorization")
	ticket := strings.TrimPrefix(header, "Bearer ")
	if ticket == "" || ticket == header {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Bearer ticket in Authorization header"})
		return nil, false
	}

	claims, err := h.ticketService.Parse(ticket)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return nil, false
	}
	if claims.Role != auth.RolePlayer || claims.SessionID != sessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Ticket does not grant access to this session"})
		return nil, false
	}
	return claims, true
}

// handleSessionError преобразует ошибки сервисов в HTTP-ответы
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrDuplicateAnswer) || errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrStaleAdvance) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) || errors.Is(err, apperrors.ErrSessionNotActive) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
