package service

import (
	"context"
	"time"

	"signaldesk/internal/models"
	"signaldesk/internal/repository"
)

// TradeRepositoryInterface определяет интерфейс репозитория журнала сделок
type TradeRepositoryInterface interface {
	Create(trade *models.Trade) error
	GetByID(id int) (*models.Trade, error)
	GetRecent(limit, offset int) ([]*models.Trade, error)
	GetPending() ([]*models.Trade, error)
	GetResolved(since time.Time) ([]*models.Trade, error)
	SetOutcome(id int, outcome models.Outcome, price float64, at time.Time, pnlTicks float64) error
	Delete(id int) error
	CountByOutcome() (map[models.Outcome]int, error)
}

// SignalRepositoryInterface определяет интерфейс репозитория сигналов
type SignalRepositoryInterface interface {
	Create(signal *models.Signal) error
	GetByID(id int) (*models.Signal, error)
	GetRecent(limit int) ([]*models.Signal, error)
	RejectionCounts(since time.Time) (map[string]int, error)
}

// ApexRepositoryInterface определяет интерфейс репозитория состояния Apex
type ApexRepositoryInterface interface {
	AddDailyPnl(date string, pnl float64) error
	GetDailyPnl(date string) (float64, error)
	GetAllDailyPnl() ([]models.DailyPnl, error)
	ResetDailyPnl() error
	GetConfig() (*models.ApexConfig, error)
	UpdateConfig(cfg *models.ApexConfig) error
}

// SettingsRepositoryInterface определяет интерфейс репозитория настроек
type SettingsRepositoryInterface interface {
	Get() (*models.Settings, error)
	Update(settings *models.Settings) error
	UpdateMinConfidence(minConfidence int) error
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(n *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
	DeleteAll() error
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ SignalRepositoryInterface = (*repository.SignalRepository)(nil)
var _ ApexRepositoryInterface = (*repository.ApexRepository)(nil)
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)

// CandleSource - источник свечей для оценщика и статус-снимка.
// Реализуется candles.Store; интерфейс разрывает зависимость
// и позволяет подставить фикстуру в тестах.
type CandleSource interface {
	Ready(ticker string) bool
	Count(ticker string, tf models.Timeframe) int
	Recent(ticker string, tf models.Timeframe, n int) []models.Candle
	LastClose(ticker string) (float64, bool)
	Tickers() []string
}

// Broadcaster - интерфейс для отправки WebSocket сообщений.
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type Broadcaster interface {
	BroadcastSignal(signal *models.Signal)
	BroadcastTradeOpened(trade *models.Trade)
	BroadcastTradeResolved(trade *models.Trade)
	BroadcastApexAlert(alert *models.ApexAlert)
	BroadcastNotification(notif *models.Notification)
	BroadcastStatsUpdate(stats interface{})
}

// EmailSender отправляет письмо-уведомление. Реализация - internal/notify.
// Отправка best-effort: ошибка логируется, но не прерывает обработку.
type EmailSender interface {
	Send(subject, body string) error
}

// ============ Интерфейсы сервисов для Dependency Injection ============

// EvaluatorServiceInterface определяет интерфейс оценщика сигналов
type EvaluatorServiceInterface interface {
	Evaluate(ctx context.Context, ticker string) (*models.Signal, error)
	GetRecentSignals(limit int) ([]*models.Signal, error)
}

// TradeServiceInterface определяет интерфейс сервиса журнала сделок
type TradeServiceInterface interface {
	GetTrades(limit, offset int) ([]*models.Trade, error)
	GetTrade(id int) (*models.Trade, error)
	GetPending() ([]*models.Trade, error)
	Counts() (map[models.Outcome]int, error)
	Delete(id int) error
	Resolve(id int, outcome models.Outcome, lastPrice float64, at time.Time) (*models.Trade, error)
}

// ApexServiceInterface определяет интерфейс сервиса правил Apex
type ApexServiceInterface interface {
	Status() (*models.ApexStatus, error)
	ShouldBlock() (bool, string, error)
	Reset(confirm bool) error
	GetConfig() (*models.ApexConfig, error)
	UpdateConfig(cfg *models.ApexConfig) error
}

// AnalyticsServiceInterface определяет интерфейс сервиса аналитики
type AnalyticsServiceInterface interface {
	Performance() (*PerformanceSummary, error)
	Streaks() (*StreakInfo, error)
	ConfidenceBuckets() ([]BucketStat, error)
	AnalyzeConfidenceThresholds() (*TuningReport, error)
	Tickers() (*TickerBreakdown, error)
	Direction() (map[string]BucketStat, error)
	Hourly() ([]BucketStat, error)
	Weekday() ([]BucketStat, error)
	Daily(days int) ([]DailyPoint, error)
	Full() (*FullAnalytics, error)
}

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings() (*models.Settings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error)
	UpdatePromptRules(rules models.PromptRules) (*models.Settings, error)
	ApplyConfidenceThreshold(threshold int) error
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(limit int) ([]*models.Notification, error)
	Clear() error
}

// StatusServiceInterface определяет интерфейс снимка состояния
type StatusServiceInterface interface {
	Snapshot() (*StatusSnapshot, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ EvaluatorServiceInterface = (*EvaluatorService)(nil)
var _ TradeServiceInterface = (*TradeService)(nil)
var _ ApexServiceInterface = (*ApexService)(nil)
var _ AnalyticsServiceInterface = (*AnalyticsService)(nil)
var _ SettingsServiceInterface = (*SettingsService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ StatusServiceInterface = (*StatusService)(nil)
