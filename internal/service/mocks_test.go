package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"signaldesk/internal/candles"
	"signaldesk/internal/classifier"
	"signaldesk/internal/models"
	"signaldesk/internal/repository"
)

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades    map[int]*models.Trade
	createErr error
	getErr    error
	setErr    error
	deleteErr error
	countErr  error
	nextID    int
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{
		trades: make(map[int]*models.Trade),
		nextID: 1,
	}
}

func (m *MockTradeRepository) Create(trade *models.Trade) error {
	if m.createErr != nil {
		return m.createErr
	}
	if !trade.LevelsConsistent() {
		return repository.ErrInvalidTradeLevels
	}
	trade.ID = m.nextID
	m.nextID++
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}
	m.trades[trade.ID] = trade
	return nil
}

func (m *MockTradeRepository) GetByID(id int) (*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if trade, exists := m.trades[id]; exists {
		copied := *trade
		return &copied, nil
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeRepository) GetRecent(limit, offset int) ([]*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	all := m.sorted()
	// Новые первыми, как в SQL ORDER BY timestamp DESC
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MockTradeRepository) GetPending() ([]*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Trade
	for _, t := range m.sorted() {
		if t.Outcome == models.OutcomePending {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) GetResolved(since time.Time) ([]*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Trade
	for _, t := range m.sorted() {
		if t.Outcome != models.OutcomePending && !t.Timestamp.Before(since) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) SetOutcome(id int, outcome models.Outcome, price float64, at time.Time, pnlTicks float64) error {
	if m.setErr != nil {
		return m.setErr
	}
	if !outcome.Terminal() {
		return repository.ErrTradeNotPending
	}
	trade, exists := m.trades[id]
	if !exists {
		return repository.ErrTradeNotFound
	}
	if trade.Outcome != models.OutcomePending {
		return repository.ErrTradeAlreadyResolved
	}
	trade.Outcome = outcome
	trade.OutcomePrice = &price
	trade.OutcomeTime = &at
	trade.PnlTicks = &pnlTicks
	return nil
}

func (m *MockTradeRepository) Delete(id int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	trade, exists := m.trades[id]
	if !exists {
		return repository.ErrTradeNotFound
	}
	if trade.Outcome != models.OutcomePending {
		return repository.ErrTradeNotPending
	}
	delete(m.trades, id)
	return nil
}

func (m *MockTradeRepository) CountByOutcome() (map[models.Outcome]int, error) {
	if m.countErr != nil {
		return nil, m.countErr
	}
	counts := make(map[models.Outcome]int)
	for _, t := range m.trades {
		counts[t.Outcome]++
	}
	return counts, nil
}

func (m *MockTradeRepository) sorted() []*models.Trade {
	result := make([]*models.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// ============ Mock SignalRepository ============

type MockSignalRepository struct {
	signals   []*models.Signal
	createErr error
	getErr    error
	nextID    int
}

func NewMockSignalRepository() *MockSignalRepository {
	return &MockSignalRepository{nextID: 1}
}

func (m *MockSignalRepository) Create(signal *models.Signal) error {
	if m.createErr != nil {
		return m.createErr
	}
	signal.ID = m.nextID
	m.nextID++
	m.signals = append(m.signals, signal)
	return nil
}

func (m *MockSignalRepository) GetByID(id int) (*models.Signal, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, s := range m.signals {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, repository.ErrSignalNotFound
}

func (m *MockSignalRepository) GetRecent(limit int) ([]*models.Signal, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Signal, len(m.signals))
	copy(result, m.signals)
	if limit < len(result) {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockSignalRepository) RejectionCounts(since time.Time) (map[string]int, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	counts := make(map[string]int)
	for _, s := range m.signals {
		if s.Valid || s.Timestamp.Before(since) {
			continue
		}
		for _, reason := range s.Reasons {
			counts[reason]++
		}
	}
	return counts, nil
}

// ============ Mock ApexRepository ============

type MockApexRepository struct {
	daily     map[string]float64
	config    *models.ApexConfig
	addErr    error
	getErr    error
	resetErr  error
	updateErr error
}

func NewMockApexRepository() *MockApexRepository {
	cfg := models.DefaultApexConfig()
	return &MockApexRepository{
		daily:  make(map[string]float64),
		config: &cfg,
	}
}

func (m *MockApexRepository) AddDailyPnl(date string, pnl float64) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.daily[date] += pnl
	return nil
}

func (m *MockApexRepository) GetDailyPnl(date string) (float64, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.daily[date], nil
}

func (m *MockApexRepository) GetAllDailyPnl() ([]models.DailyPnl, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	dates := make([]string, 0, len(m.daily))
	for date := range m.daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	result := make([]models.DailyPnl, 0, len(dates))
	for _, date := range dates {
		result = append(result, models.DailyPnl{Date: date, Pnl: m.daily[date]})
	}
	return result, nil
}

func (m *MockApexRepository) ResetDailyPnl() error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.daily = make(map[string]float64)
	return nil
}

func (m *MockApexRepository) GetConfig() (*models.ApexConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	copied := *m.config
	return &copied, nil
}

func (m *MockApexRepository) UpdateConfig(cfg *models.ApexConfig) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *cfg
	m.config = &copied
	return nil
}

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	settings  *models.Settings
	getErr    error
	updateErr error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{settings: models.DefaultSettings()}
}

func (m *MockSettingsRepository) Get() (*models.Settings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	copied := *m.settings
	return &copied, nil
}

func (m *MockSettingsRepository) Update(settings *models.Settings) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *settings
	copied.UpdatedAt = time.Now()
	m.settings = &copied
	return nil
}

func (m *MockSettingsRepository) UpdateMinConfidence(minConfidence int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.MinConfidence = minConfidence
	m.settings.UpdatedAt = time.Now()
	return nil
}

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	notifications []*models.Notification
	createErr     error
	getErr        error
	deleteErr     error
	nextID        int
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{nextID: 1}
}

func (m *MockNotificationRepository) Create(n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = m.nextID
	m.nextID++
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MockNotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Notification, len(m.notifications))
	copy(result, m.notifications)
	if limit < len(result) {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockNotificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var kept []*models.Notification
	var removed int64
	for _, n := range m.notifications {
		if n.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	return removed, nil
}

func (m *MockNotificationRepository) DeleteAll() error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.notifications = nil
	return nil
}

// ============ Fake CandleSource ============

// fakeCandleSource отдает заранее заготовленные буферы свечей
type fakeCandleSource struct {
	candles map[string]map[models.Timeframe][]models.Candle
	prices  map[string]float64
}

func newFakeCandleSource() *fakeCandleSource {
	return &fakeCandleSource{
		candles: make(map[string]map[models.Timeframe][]models.Candle),
		prices:  make(map[string]float64),
	}
}

func (f *fakeCandleSource) set(ticker string, tf models.Timeframe, candles []models.Candle) {
	if f.candles[ticker] == nil {
		f.candles[ticker] = make(map[models.Timeframe][]models.Candle)
	}
	f.candles[ticker][tf] = candles
	if len(candles) > 0 {
		f.prices[ticker] = candles[len(candles)-1].Close
	}
}

func (f *fakeCandleSource) Ready(ticker string) bool {
	return len(f.candles[ticker][models.Timeframe1m]) >= candles.ReadyThreshold
}

func (f *fakeCandleSource) Count(ticker string, tf models.Timeframe) int {
	return len(f.candles[ticker][tf])
}

func (f *fakeCandleSource) Recent(ticker string, tf models.Timeframe, n int) []models.Candle {
	buf := f.candles[ticker][tf]
	if n < len(buf) {
		return buf[len(buf)-n:]
	}
	return buf
}

func (f *fakeCandleSource) LastClose(ticker string) (float64, bool) {
	price, ok := f.prices[ticker]
	return price, ok
}

func (f *fakeCandleSource) Tickers() []string {
	result := make([]string, 0, len(f.candles))
	for ticker := range f.candles {
		result = append(result, ticker)
	}
	sort.Strings(result)
	return result
}

// ============ Mock Broadcaster ============

// MockBroadcaster записывает все отправленные сообщения
type MockBroadcaster struct {
	mu            sync.Mutex
	signals       []*models.Signal
	opened        []*models.Trade
	resolved      []*models.Trade
	alerts        []*models.ApexAlert
	notifications []*models.Notification
	statsUpdates  []interface{}
}

func (m *MockBroadcaster) BroadcastSignal(signal *models.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, signal)
}

func (m *MockBroadcaster) BroadcastTradeOpened(trade *models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, trade)
}

func (m *MockBroadcaster) BroadcastTradeResolved(trade *models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, trade)
}

func (m *MockBroadcaster) BroadcastApexAlert(alert *models.ApexAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func (m *MockBroadcaster) BroadcastNotification(notif *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notif)
}

func (m *MockBroadcaster) BroadcastStatsUpdate(stats interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsUpdates = append(m.statsUpdates, stats)
}

// ============ Fake Classifier ============

// fakeClassifier возвращает заготовленный вердикт или ошибку
type fakeClassifier struct {
	result   *classifier.Result
	err      error
	requests []classifier.Request
}

func (f *fakeClassifier) Classify(ctx context.Context, req classifier.Request) (*classifier.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.result
	return &copied, nil
}

// ============ Fake blocker ============

type fakeBlocker struct {
	blocked bool
	reason  string
	err     error
}

func (f *fakeBlocker) ShouldBlock() (bool, string, error) {
	return f.blocked, f.reason, f.err
}

// ============ Helpers ============

func floatPtr(v float64) *float64 { return &v }

// makeCandles генерирует n свечей с шагом step между close-ценами.
// step > 0 дает растущий ряд, step < 0 - падающий.
func makeCandles(n int, start, step float64, interval time.Duration) []models.Candle {
	base := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	price := start
	for i := range candles {
		open := price
		close := price + step
		high, low := open, close
		if close > open {
			high = close
			low = open
		}
		candles[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * interval),
			Open:     open,
			High:     high + 0.25,
			Low:      low - 0.25,
			Close:    close,
			Volume:   1000,
		}
		price = close
	}
	return candles
}

// resolvedTrade создает завершенную сделку для аналитических тестов
func resolvedTrade(id int, ticker string, outcome models.Outcome, confidence int, pnlTicks float64, at time.Time) *models.Trade {
	return &models.Trade{
		ID:          id,
		Ticker:      ticker,
		Direction:   models.DirectionLong,
		EntryPrice:  21450.25,
		StopPrice:   21445.00,
		TargetPrice: 21460.75,
		Confidence:  confidence,
		Timestamp:   at,
		Outcome:     outcome,
		PnlTicks:    floatPtr(pnlTicks),
	}
}
