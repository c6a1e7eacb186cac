package api

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signaldesk/internal/api/handlers"
	"signaldesk/internal/api/middleware"
	"signaldesk/internal/candles"
	"signaldesk/internal/service"
	"signaldesk/internal/websocket"
	"signaldesk/pkg/ratelimit"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Store               *candles.Store
	EvaluatorService    service.EvaluatorServiceInterface
	TradeService        service.TradeServiceInterface
	ApexService         service.ApexServiceInterface
	AnalyticsService    service.AnalyticsServiceInterface
	SettingsService     service.SettingsServiceInterface
	NotificationService service.NotificationServiceInterface
	StatusService       service.StatusServiceInterface
	Counters            *service.RuntimeCounters
	Hub                 *websocket.Hub

	// WebhookSecret защищает POST /webhook (общий секрет TradingView)
	WebhookSecret string

	// DashboardPasswordHash - bcrypt хеш пароля дашборда;
	// пустая строка = локальное развертывание без auth
	DashboardPasswordHash string

	// Limiter - лимиты по категориям маршрутов (webhook, api)
	Limiter *ratelimit.RouteLimiter

	// EvalTimeout ограничивает фоновую оценку после принятой свечи
	EvalTimeout time.Duration
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
//
// Структура маршрутов:
//
// /webhook
//
//	└── POST / - свеча от TradingView (секрет + rate limit)
//
// /api/v1/ (пароль дашборда)
//
//	├── /status
//	│   └── GET / - снимок состояния сервиса
//	├── /signals
//	│   └── GET / - последние сигналы
//	├── /scan/{ticker}
//	│   └── POST / - ручной запуск оценки
//	├── /trades
//	│   ├── GET / - страница журнала
//	│   ├── GET /{id} - одна сделка
//	│   ├── DELETE /{id} - удаление pending сделки
//	│   └── POST /{id}/resolve - ручная фиксация исхода
//	├── /apex
//	│   ├── GET / - снимок правил
//	│   ├── GET /check - блокировка торговли
//	│   ├── GET /config - конфигурация
//	│   ├── PUT /config - обновление конфигурации
//	│   └── POST /reset - сброс истории P&L
//	├── /analytics
//	│   ├── GET / - полный снимок
//	│   └── GET /{performance,streaks,confidence,tickers,
//	│        direction,hourly,weekday,daily}
//	├── /tuning
//	│   ├── GET /analyze - прогон порогов уверенности
//	│   ├── POST /apply - применение порога
//	│   └── PUT /prompt-rules - новая версия правок промпта
//	├── /settings
//	│   ├── GET / - настройки сканера
//	│   └── PATCH / - частичное обновление
//	└── /notifications
//	    ├── GET / - журнал уведомлений
//	    └── DELETE / - очистка журнала
//
// /ws - WebSocket для real-time обновлений (пароль дашборда)
// /metrics - Prometheus
// /health - liveness probe
// /debug/pprof - профилировщик (Basic auth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. WebhookAuth / DashboardAuth + RateLimit (по группам)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Webhook route - горячий путь, отдельный секрет и лимит
	if deps.Store != nil && deps.EvaluatorService != nil {
		webhookHandler := handlers.NewWebhookHandler(deps.Store, deps.EvaluatorService, deps.Counters, deps.EvalTimeout)
		if deps.Hub != nil {
			webhookHandler.SetBroadcaster(deps.Hub)
		}

		webhook := router.PathPrefix("/webhook").Subrouter()
		webhook.Use(middleware.WebhookAuth(deps.WebhookSecret))
		webhook.Use(middleware.RateLimit(deps.Limiter, "webhook"))
		webhook.HandleFunc("", webhookHandler.ReceiveCandle).Methods("POST")
	}

	// API v1 routes - закрыты паролем дашборда
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.DashboardAuth(deps.DashboardPasswordHash))
	api.Use(middleware.RateLimit(deps.Limiter, "api"))

	// Status routes
	if deps.StatusService != nil {
		statusHandler := handlers.NewStatusHandler(deps.StatusService)
		api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
	}

	// Signal routes
	if deps.EvaluatorService != nil {
		signalHandler := handlers.NewSignalHandler(deps.EvaluatorService, deps.Counters)
		api.HandleFunc("/signals", signalHandler.GetSignals).Methods("GET")
		api.HandleFunc("/scan/{ticker}", signalHandler.ScanTicker).Methods("POST")
	}

	// Trade routes
	if deps.TradeService != nil {
		tradeHandler := handlers.NewTradeHandler(deps.TradeService)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/{id}", tradeHandler.GetTrade).Methods("GET")
		api.HandleFunc("/trades/{id}", tradeHandler.DeleteTrade).Methods("DELETE")
		api.HandleFunc("/trades/{id}/resolve", tradeHandler.ResolveTrade).Methods("POST")
	}

	// Apex routes
	if deps.ApexService != nil {
		apexHandler := handlers.NewApexHandler(deps.ApexService)
		api.HandleFunc("/apex", apexHandler.GetStatus).Methods("GET")
		api.HandleFunc("/apex/check", apexHandler.Check).Methods("GET")
		api.HandleFunc("/apex/config", apexHandler.GetConfig).Methods("GET")
		api.HandleFunc("/apex/config", apexHandler.UpdateConfig).Methods("PUT")
		api.HandleFunc("/apex/reset", apexHandler.Reset).Methods("POST")
	}

	// Analytics routes
	if deps.AnalyticsService != nil {
		analyticsHandler := handlers.NewAnalyticsHandler(deps.AnalyticsService)
		api.HandleFunc("/analytics", analyticsHandler.GetFull).Methods("GET")
		api.HandleFunc("/analytics/performance", analyticsHandler.GetPerformance).Methods("GET")
		api.HandleFunc("/analytics/streaks", analyticsHandler.GetStreaks).Methods("GET")
		api.HandleFunc("/analytics/confidence", analyticsHandler.GetConfidence).Methods("GET")
		api.HandleFunc("/analytics/tickers", analyticsHandler.GetTickers).Methods("GET")
		api.HandleFunc("/analytics/direction", analyticsHandler.GetDirection).Methods("GET")
		api.HandleFunc("/analytics/hourly", analyticsHandler.GetHourly).Methods("GET")
		api.HandleFunc("/analytics/weekday", analyticsHandler.GetWeekday).Methods("GET")
		api.HandleFunc("/analytics/daily", analyticsHandler.GetDaily).Methods("GET")
	}

	// Tuning routes
	if deps.AnalyticsService != nil && deps.SettingsService != nil {
		tuningHandler := handlers.NewTuningHandler(deps.AnalyticsService, deps.SettingsService)
		api.HandleFunc("/tuning/analyze", tuningHandler.Analyze).Methods("GET")
		api.HandleFunc("/tuning/apply", tuningHandler.ApplyThreshold).Methods("POST")
		api.HandleFunc("/tuning/prompt-rules", tuningHandler.UpdatePromptRules).Methods("PUT")
	}

	// Settings routes
	if deps.SettingsService != nil {
		settingsHandler := handlers.NewSettingsHandler(deps.SettingsService)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
	}

	// Notification routes
	if deps.NotificationService != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	// WebSocket route - тот же пароль дашборда
	if deps.Hub != nil {
		ws := router.PathPrefix("/ws").Subrouter()
		ws.Use(middleware.DashboardAuth(deps.DashboardPasswordHash))
		ws.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Debug endpoints (pprof) под Basic auth
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	// pprof.Index сам отдает именованные профили (/debug/pprof/heap и т.д.)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	return router
}
