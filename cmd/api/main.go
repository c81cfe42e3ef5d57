package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yourusername/pubquiz-api/internal/config"
	"github.com/yourusername/pubquiz-api/internal/handler"
	"github.com/yourusername/pubquiz-api/internal/middleware"
	pgRepo "github.com/yourusername/pubquiz-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/pubquiz-api/internal/repository/redis"
	"github.com/yourusername/pubquiz-api/internal/service"
	"github.com/yourusername/pubquiz-api/internal/service/sessionmanager"
	ws "github.com/yourusername/pubquiz-api/internal/websocket"
	"github.com/yourusername/pubquiz-api/pkg/auth"
	"github.com/yourusername/pubquiz-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	sessionRepo := pgRepo.NewSessionRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	teamRepo := pgRepo.NewTeamRepo(db)
	answerRepo := pgRepo.NewAnswerRepo(db)
	bankRepo := pgRepo.NewBankRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Сервис тикетов для WebSocket-аутентификации
	ticketService, err := auth.NewTicketService(cfg.Ticket.Secret, cfg.Ticket.ExpirySec)
	if err != nil {
		log.Printf("Failed to initialize TicketService: %v", err)
		os.Exit(1)
	}

	// --- Игровая конфигурация ---
	gameConfig := sessionmanager.DefaultConfig()
	if cfg.Game.RoundsTotal > 0 {
		gameConfig.RoundsTotal = cfg.Game.RoundsTotal
	}
	if cfg.Game.QuestionsPerRound > 0 {
		gameConfig.QuestionsPerRound = cfg.Game.QuestionsPerRound
	}
	if cfg.Game.AutoAdvanceDurationSec > 0 {
		gameConfig.AutoAdvanceDurationSec = cfg.Game.AutoAdvanceDurationSec
	}
	if cfg.Game.TickInterval > 0 {
		gameConfig.TickInterval = cfg.Game.TickInterval
	}

	// Идентификатор инстанса: участвует в ownership-ключах оценщика
	instanceID := cfg.WebSocket.Cluster.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	log.Printf("Instance ID: %s", instanceID)

	// --- Инициализация WebSocket (PubSubProvider создается здесь) ---
	var pubSubProvider ws.PubSubProvider = ws.NoOpPubSub{} // Провайдер по умолчанию

	// Создаем PubSubProvider только если кластеризация включена
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для кластеризации WebSocket...")
		redisPubSubClient, errPubSub := database.NewUniversalRedisClient(cfg.Redis)
		if errPubSub != nil {
			log.Printf("Ошибка при инициализации Redis клиента для PubSub: %v. Кластеризация WS будет неактивна.", errPubSub)
		} else {
			pubSubProvider = ws.NewRedisPubSub(redisPubSubClient)
			log.Println("Redis PubSub провайдер успешно инициализирован")
		}
	}

	wsHub := ws.NewSessionHub(cfg.WebSocket.WorkerCount)

	// Менеджер живых сессий уведомляет wsManager о каждой новой версии.
	// wsManager создается после менеджера (ему нужен источник снапшотов),
	// поэтому колбек замыкается на переменную.
	var wsManager *ws.Manager
	notify := func(sessionID uint, version int64) {
		if wsManager != nil {
			wsManager.NotifyVersion(sessionID, version)
		}
	}

	sessionManager := service.NewSessionManager(
		sessionRepo, questionRepo, teamRepo, answerRepo, cacheRepo,
		gameConfig, instanceID, notify,
	)

	wsManager = ws.NewManager(wsHub, sessionManager, pubSubProvider)

	// Инициализируем сервисы
	questionSource := service.NewBankQuestionSource(bankRepo)
	sessionService := service.NewSessionService(sessionRepo, questionRepo, teamRepo, questionSource, gameConfig)

	// Инициализируем обработчики
	sessionHandler := handler.NewSessionHandler(sessionService, sessionManager, teamRepo, answerRepo, ticketService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, sessionManager, ticketService)

	// Корневой контекст для фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Периодические heartbeat всем подключенным клиентам
	go wsManager.RunHeartbeat(ctx, 15*time.Second)

	// После рестарта заново ставим оценщик на идущие сессии
	go func() {
		if err := sessionManager.ResumeActiveSessions(); err != nil {
			log.Printf("Failed to resume active sessions: %v", err)
		}
	}()

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		// Production: не доверять прокси-заголовкам
		// Если используете load balancer, замените nil на []string{"IP_БАЛАНСИРОВЩИКА"}
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://pubquiz-board.vercel.app", "https://pubquiz-host.vercel.app", "http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Host-Code"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("", sessionHandler.ListSessions)

			// Группа маршрутов, требующих sessionID
			sessionWithID := sessions.Group("/:id")
			sessionWithID.Use(middleware.ExtractUintParam("id", "sessionID"))
			{
				sessionWithID.GET("", sessionHandler.GetSession)
				sessionWithID.GET("/with-questions", sessionHandler.GetSessionWithQuestions)
				sessionWithID.GET("/snapshot", sessionHandler.GetSnapshot)
				sessionWithID.GET("/leaderboard", sessionHandler.GetLeaderboard)
				sessionWithID.GET("/teams", sessionHandler.GetTeams)
				sessionWithID.GET("/export", sessionHandler.ExportResults)
				sessionWithID.DELETE("", sessionHandler.DeleteSession)

				sessionWithID.POST("/teams", sessionHandler.RegisterTeam)
				sessionWithID.POST("/ws-ticket", sessionHandler.IssueWSTicket)

				// Fallback-путь для клиентов без WebSocket (тикет в Authorization)
				sessionWithID.POST("/answers", sessionHandler.SubmitAnswer)
				sessionWithID.POST("/buzz", sessionHandler.Buzz)

				// Подготовка контента
				roundGroup := sessionWithID.Group("/rounds/:round")
				roundGroup.Use(middleware.ExtractUintParam("round", "round"))
				{
					roundGroup.POST("/generate", sessionHandler.GenerateRound)
				}
				sessionWithID.PUT("/ready", sessionHandler.MarkReady)

				// Действия ведущего (все требуют X-Host-Code)
				sessionWithID.POST("/start", sessionHandler.StartSession)
				sessionWithID.POST("/next", sessionHandler.NextQuestion)
				sessionWithID.POST("/pause", sessionHandler.PauseSession)
				sessionWithID.POST("/resume", sessionHandler.ResumeSession)
				sessionWithID.POST("/complete", sessionHandler.CompleteSession)
				sessionWithID.POST("/narration-complete", sessionHandler.NarrationComplete)
				sessionWithID.POST("/grant-buzz", sessionHandler.GrantBuzz)
				sessionWithID.PUT("/duration", sessionHandler.SetDuration)
				sessionWithID.PUT("/auto-advance", sessionHandler.SetAutoAdvance)
				sessionWithID.PUT("/auto-advance-pause", sessionHandler.SetAutoAdvancePaused)
			}
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// После получения сигнала SIGINT или SIGTERM вызываем cancel() для завершения горутин
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Отправляем сигнал завершения для всех горутин
	cancel()

	// Останавливаем оценщики и рассылку
	sessionManager.Shutdown()
	wsManager.Shutdown()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
