package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"signaldesk/internal/candles"
	"signaldesk/internal/models"
	"signaldesk/internal/repository"
	"signaldesk/internal/service"
)

// ============ Моки сервисов для тестов handlers ============

// ErrMockDatabase - имитация ошибки БД в тестах
var ErrMockDatabase = errors.New("mock database error")

// MockEvaluatorService - мок оценщика сигналов
type MockEvaluatorService struct {
	mu        sync.Mutex
	signals   []*models.Signal
	result    *models.Signal
	errs      map[string]error
	Evaluated []string
}

func NewMockEvaluatorService() *MockEvaluatorService {
	return &MockEvaluatorService{errs: make(map[string]error)}
}

func (m *MockEvaluatorService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockEvaluatorService) SetResult(signal *models.Signal) { m.result = signal }

func (m *MockEvaluatorService) AddSignal(signal *models.Signal) {
	m.signals = append(m.signals, signal)
}

func (m *MockEvaluatorService) Evaluate(ctx context.Context, ticker string) (*models.Signal, error) {
	m.mu.Lock()
	m.Evaluated = append(m.Evaluated, ticker)
	m.mu.Unlock()
	if err := m.errs["evaluate"]; err != nil {
		return nil, err
	}
	return m.result, nil
}

func (m *MockEvaluatorService) EvaluatedTickers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Evaluated))
	copy(out, m.Evaluated)
	return out
}

func (m *MockEvaluatorService) GetRecentSignals(limit int) ([]*models.Signal, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	if limit > len(m.signals) {
		limit = len(m.signals)
	}
	return m.signals[:limit], nil
}

// MockTradeService - мок сервиса журнала сделок
type MockTradeService struct {
	trades map[int]*models.Trade
	errs   map[string]error
}

func NewMockTradeService() *MockTradeService {
	return &MockTradeService{
		trades: make(map[int]*models.Trade),
		errs:   make(map[string]error),
	}
}

func (m *MockTradeService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockTradeService) AddTrade(trade *models.Trade) { m.trades[trade.ID] = trade }

func (m *MockTradeService) GetTrades(limit, offset int) ([]*models.Trade, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	out := make([]*models.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, t)
	}
	return out, nil
}

func (m *MockTradeService) GetTrade(id int) (*models.Trade, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	trade, ok := m.trades[id]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	return trade, nil
}

func (m *MockTradeService) GetPending() ([]*models.Trade, error) {
	var out []*models.Trade
	for _, t := range m.trades {
		if t.Outcome == models.OutcomePending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTradeService) Counts() (map[models.Outcome]int, error) {
	counts := make(map[models.Outcome]int)
	for _, t := range m.trades {
		counts[t.Outcome]++
	}
	return counts, nil
}

func (m *MockTradeService) Delete(id int) error {
	if err := m.errs["delete"]; err != nil {
		return err
	}
	trade, ok := m.trades[id]
	if !ok {
		return repository.ErrTradeNotFound
	}
	if trade.Outcome != models.OutcomePending {
		return repository.ErrTradeNotPending
	}
	delete(m.trades, id)
	return nil
}

func (m *MockTradeService) Resolve(id int, outcome models.Outcome, lastPrice float64, at time.Time) (*models.Trade, error) {
	if err := m.errs["resolve"]; err != nil {
		return nil, err
	}
	trade, ok := m.trades[id]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	if trade.Outcome.Terminal() {
		return nil, repository.ErrTradeAlreadyResolved
	}
	trade.Outcome = outcome
	trade.OutcomeTime = &at
	return trade, nil
}

// MockApexService - мок сервиса правил Apex
type MockApexService struct {
	status  *models.ApexStatus
	config  models.ApexConfig
	blocked bool
	reason  string
	errs    map[string]error
	Resets  int
}

func NewMockApexService() *MockApexService {
	return &MockApexService{
		config: models.DefaultApexConfig(),
		errs:   make(map[string]error),
	}
}

func (m *MockApexService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockApexService) SetBlocked(blocked bool, reason string) {
	m.blocked = blocked
	m.reason = reason
}

func (m *MockApexService) Status() (*models.ApexStatus, error) {
	if err := m.errs["status"]; err != nil {
		return nil, err
	}
	if m.status != nil {
		return m.status, nil
	}
	return &models.ApexStatus{Config: m.config, LastUpdated: time.Now()}, nil
}

func (m *MockApexService) ShouldBlock() (bool, string, error) {
	if err := m.errs["check"]; err != nil {
		return false, "", err
	}
	return m.blocked, m.reason, nil
}

func (m *MockApexService) Reset(confirm bool) error {
	if !confirm {
		return service.ErrResetNotConfirmed
	}
	if err := m.errs["reset"]; err != nil {
		return err
	}
	m.Resets++
	return nil
}

func (m *MockApexService) GetConfig() (*models.ApexConfig, error) {
	if err := m.errs["config"]; err != nil {
		return nil, err
	}
	cfg := m.config
	return &cfg, nil
}

func (m *MockApexService) UpdateConfig(cfg *models.ApexConfig) error {
	if cfg.MaxDailyLoss <= 0 || cfg.MaxTrailingDrawdown <= 0 {
		return service.ErrInvalidApexConfig
	}
	if err := m.errs["update"]; err != nil {
		return err
	}
	m.config = *cfg
	return nil
}

// MockAnalyticsService - мок сервиса аналитики
type MockAnalyticsService struct {
	performance *service.PerformanceSummary
	report      *service.TuningReport
	errs        map[string]error
}

func NewMockAnalyticsService() *MockAnalyticsService {
	return &MockAnalyticsService{
		performance: &service.PerformanceSummary{},
		report:      &service.TuningReport{Status: "ok"},
		errs:        make(map[string]error),
	}
}

func (m *MockAnalyticsService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockAnalyticsService) SetPerformance(p *service.PerformanceSummary) { m.performance = p }

func (m *MockAnalyticsService) SetReport(r *service.TuningReport) { m.report = r }

func (m *MockAnalyticsService) Performance() (*service.PerformanceSummary, error) {
	if err := m.errs["performance"]; err != nil {
		return nil, err
	}
	return m.performance, nil
}

func (m *MockAnalyticsService) Streaks() (*service.StreakInfo, error) {
	return &service.StreakInfo{}, nil
}

func (m *MockAnalyticsService) ConfidenceBuckets() ([]service.BucketStat, error) {
	return nil, nil
}

func (m *MockAnalyticsService) AnalyzeConfidenceThresholds() (*service.TuningReport, error) {
	if err := m.errs["analyze"]; err != nil {
		return nil, err
	}
	return m.report, nil
}

func (m *MockAnalyticsService) Tickers() (*service.TickerBreakdown, error) {
	return &service.TickerBreakdown{}, nil
}

func (m *MockAnalyticsService) Direction() (map[string]service.BucketStat, error) {
	return nil, nil
}

func (m *MockAnalyticsService) Hourly() ([]service.BucketStat, error) { return nil, nil }

func (m *MockAnalyticsService) Weekday() ([]service.BucketStat, error) { return nil, nil }

func (m *MockAnalyticsService) Daily(days int) ([]service.DailyPoint, error) {
	if err := m.errs["daily"]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *MockAnalyticsService) Full() (*service.FullAnalytics, error) {
	if err := m.errs["full"]; err != nil {
		return nil, err
	}
	return &service.FullAnalytics{}, nil
}

// MockSettingsService - мок сервиса настроек
type MockSettingsService struct {
	settings *models.Settings
	errs     map[string]error
	Applied  []int
}

func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{
		settings: models.DefaultSettings(),
		errs:     make(map[string]error),
	}
}

func (m *MockSettingsService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockSettingsService) GetSettings() (*models.Settings, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	return m.settings, nil
}

func (m *MockSettingsService) UpdateSettings(req *service.UpdateSettingsRequest) (*models.Settings, error) {
	if err := m.errs["update"]; err != nil {
		return nil, err
	}
	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 100 {
			return nil, models.ErrSettingsConfidenceRange
		}
		m.settings.MinConfidence = *req.MinConfidence
	}
	return m.settings, nil
}

func (m *MockSettingsService) UpdatePromptRules(rules models.PromptRules) (*models.Settings, error) {
	if err := m.errs["rules"]; err != nil {
		return nil, err
	}
	rules.Version = m.settings.PromptRules.Version + 1
	m.settings.PromptRules = rules
	return m.settings, nil
}

func (m *MockSettingsService) ApplyConfidenceThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return models.ErrSettingsConfidenceRange
	}
	if err := m.errs["apply"]; err != nil {
		return err
	}
	m.Applied = append(m.Applied, threshold)
	m.settings.MinConfidence = threshold
	return nil
}

// MockNotificationService - мок сервиса уведомлений
type MockNotificationService struct {
	notifications []*models.Notification
	errs          map[string]error
	nextID        int
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{errs: make(map[string]error), nextID: 1}
}

func (m *MockNotificationService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockNotificationService) AddNotification(ntype, severity, message string) {
	m.notifications = append(m.notifications, &models.Notification{
		ID:        m.nextID,
		Timestamp: time.Now(),
		Type:      ntype,
		Severity:  severity,
		Message:   message,
	})
	m.nextID++
}

func (m *MockNotificationService) GetNotifications(limit int) ([]*models.Notification, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	if limit > len(m.notifications) {
		limit = len(m.notifications)
	}
	return m.notifications[:limit], nil
}

func (m *MockNotificationService) Clear() error {
	if err := m.errs["clear"]; err != nil {
		return err
	}
	m.notifications = nil
	return nil
}

// MockStatusService - мок снимка состояния
type MockStatusService struct {
	snapshot *service.StatusSnapshot
	errs     map[string]error
}

func NewMockStatusService() *MockStatusService {
	return &MockStatusService{
		snapshot: &service.StatusSnapshot{Status: "ok"},
		errs:     make(map[string]error),
	}
}

func (m *MockStatusService) SetError(op string, err error) { m.errs[op] = err }

func (m *MockStatusService) Snapshot() (*service.StatusSnapshot, error) {
	if err := m.errs["snapshot"]; err != nil {
		return nil, err
	}
	return m.snapshot, nil
}

// MockCandleSink - мок хранилища свечей для webhook handler
type MockCandleSink struct {
	Added  []models.Candle
	result candles.AddResult
	addErr error
	ready  bool
}

func NewMockCandleSink() *MockCandleSink {
	return &MockCandleSink{}
}

func (m *MockCandleSink) SetReady(ready bool) { m.ready = ready }

func (m *MockCandleSink) SetAddError(err error) { m.addErr = err }

func (m *MockCandleSink) SetResult(res candles.AddResult) { m.result = res }

func (m *MockCandleSink) Add(c models.Candle) (candles.AddResult, error) {
	if m.addErr != nil {
		return candles.AddResult{}, m.addErr
	}
	m.Added = append(m.Added, c)
	return m.result, nil
}

func (m *MockCandleSink) Ready(ticker string) bool { return m.ready }

// Проверяем, что моки реализуют интерфейсы сервисов
var _ service.EvaluatorServiceInterface = (*MockEvaluatorService)(nil)
var _ service.TradeServiceInterface = (*MockTradeService)(nil)
var _ service.ApexServiceInterface = (*MockApexService)(nil)
var _ service.AnalyticsServiceInterface = (*MockAnalyticsService)(nil)
var _ service.SettingsServiceInterface = (*MockSettingsService)(nil)
var _ service.NotificationServiceInterface = (*MockNotificationService)(nil)
var _ service.StatusServiceInterface = (*MockStatusService)(nil)
var _ CandleSink = (*MockCandleSink)(nil)
