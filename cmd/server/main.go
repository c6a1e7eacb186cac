package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signaldesk/internal/api"
	"signaldesk/internal/candles"
	"signaldesk/internal/classifier"
	"signaldesk/internal/config"
	"signaldesk/internal/notify"
	"signaldesk/internal/repository"
	"signaldesk/internal/service"
	"signaldesk/internal/tracker"
	"signaldesk/internal/websocket"
	"signaldesk/pkg/ratelimit"
	"signaldesk/pkg/retry"
	"signaldesk/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// .env опционален: в проде переменные приходят из окружения
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database",
		zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	signalRepo := repository.NewSignalRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	apexRepo := repository.NewApexRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// In-memory хранилище свечей: наполняется webhook'ами после старта
	candleStore := candles.NewStore()

	// Классификатор сигналов
	cls, err := buildClassifier(cfg)
	if err != nil {
		logger.Fatal("Failed to build classifier", zap.Error(err))
	}

	// Инициализация сервисов
	notificationService := service.NewNotificationService(notificationRepo)
	if emailSender := notify.NewEmailNotifier(cfg.Email); emailSender != nil {
		notificationService.SetEmailSender(emailSender)
		logger.Info("Email notifications enabled", zap.String("host", cfg.Email.Host))
	}

	apexService := service.NewApexService(apexRepo)
	apexService.SetNotifier(notificationService)

	tradeService := service.NewTradeService(tradeRepo)
	tradeService.SetApexRecorder(apexService)
	tradeService.SetNotifier(notificationService)

	evaluatorService := service.NewEvaluatorService(
		candleStore,
		cls,
		cfg.Classifier.Provider,
		settingsRepo,
		signalRepo,
		tradeRepo,
	)
	evaluatorService.SetBlocker(apexService)
	evaluatorService.SetNotifier(notificationService)

	settingsService := service.NewSettingsService(settingsRepo)
	settingsService.SetNotifier(notificationService)

	analyticsService := service.NewAnalyticsService(tradeRepo, signalRepo, settingsRepo)

	counters := service.NewRuntimeCounters()
	statusService := service.NewStatusService(cfg.Classifier.Provider, counters, candleStore, tradeRepo)

	// WebSocket hub для live-обновлений дашборда
	hub := websocket.NewHub()
	go hub.Run()

	evaluatorService.SetBroadcaster(hub)
	tradeService.SetBroadcaster(hub)
	apexService.SetBroadcaster(hub)
	notificationService.SetBroadcaster(hub)
	statusService.SetHub(hub)

	// Фоновый трекер исходов pending сделок
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcomeTracker := tracker.New(
		tradeService,
		candleStore,
		settingsRepo,
		cfg.Tracker.PollInterval,
		cfg.Tracker.MaxAge,
	)
	outcomeTracker.Start(ctx)
	statusService.SetTracker(outcomeTracker)

	// Rate limits по категориям маршрутов
	limiter := ratelimit.NewRouteLimiter()
	limiter.Add("webhook", cfg.Server.WebhookRate, cfg.Server.WebhookBurst)
	limiter.Add("api", cfg.Server.APIRate, cfg.Server.APIBurst)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Store:                 candleStore,
		EvaluatorService:      evaluatorService,
		TradeService:          tradeService,
		ApexService:           apexService,
		AnalyticsService:      analyticsService,
		SettingsService:       settingsService,
		NotificationService:   notificationService,
		StatusService:         statusService,
		Counters:              counters,
		Hub:                   hub,
		WebhookSecret:         cfg.Security.WebhookSecret,
		DashboardPasswordHash: cfg.Security.DashboardPasswordHash,
		Limiter:               limiter,
		EvalTimeout:           cfg.Classifier.EvalTimeout,
	}

	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("Starting server",
			zap.String("addr", server.Addr),
			zap.String("classifier", cfg.Classifier.Provider))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("Server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("Server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Порядок: перестаем принимать запросы, затем гасим фон
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	outcomeTracker.Stop()
	hub.Stop()

	logger.Info("Server exited")
}

// buildClassifier выбирает классификатор по конфигурации.
// "mtf" работает без внешних сервисов и API ключей.
func buildClassifier(cfg *config.Config) (classifier.Classifier, error) {
	switch cfg.Classifier.Provider {
	case "openai":
		return classifier.NewOpenAIClassifier(
			cfg.Classifier.OpenAIAPIKey,
			cfg.Classifier.OpenAIModel,
			cfg.Classifier.OpenAITimeout,
			cfg.Classifier.RequestRate,
		), nil
	case "mtf":
		return classifier.NewMTFClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %q", cfg.Classifier.Provider)
	}
}

// initDatabase создает подключение к базе данных с ретраями:
// при старте через docker-compose Postgres может подняться позже сервиса
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ping := func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}
	if err := retry.Do(ctx, ping, retry.DatabaseConfig()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
