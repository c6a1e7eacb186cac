package service

import (
	"sync/atomic"
	"time"

	"signaldesk/internal/models"
)

// RuntimeCounters - счетчики процесса с момента запуска.
//
// Явный объект состояния: создается в main.go и передается туда,
// где происходят события (webhook handler, триггер оценки).
// Никаких глобальных переменных.
type RuntimeCounters struct {
	WebhooksReceived atomic.Int64
	WebhooksRejected atomic.Int64
	SignalsEvaluated atomic.Int64
}

// NewRuntimeCounters создает новый набор счетчиков
func NewRuntimeCounters() *RuntimeCounters {
	return &RuntimeCounters{}
}

// TrackerState - состояние фонового трекера исходов для снимка статуса
type TrackerState interface {
	Running() bool
	LastPollAt() time.Time
}

// ClientCounter - источник числа подключенных WebSocket клиентов
type ClientCounter interface {
	ClientCount() int
}

// TickerCandles - счетчики буферов свечей одного инструмента
type TickerCandles struct {
	Candles1m  int     `json:"candles_1m"`
	Candles5m  int     `json:"candles_5m"`
	Candles15m int     `json:"candles_15m"`
	Ready      bool    `json:"ready"`
	LastPrice  float64 `json:"last_price,omitempty"`
}

// TrackerSnapshot - состояние трекера в снимке статуса
type TrackerSnapshot struct {
	Running    bool       `json:"running"`
	LastPollAt *time.Time `json:"last_poll_at,omitempty"`
}

// StatusSnapshot - полный снимок состояния сервиса для GET /api/status
type StatusSnapshot struct {
	Status           string                   `json:"status"`
	StartedAt        time.Time                `json:"started_at"`
	UptimeSeconds    int64                    `json:"uptime_seconds"`
	Classifier       string                   `json:"classifier"`
	Candles          map[string]TickerCandles `json:"candles"`
	WebhooksReceived int64                    `json:"webhooks_received"`
	WebhooksRejected int64                    `json:"webhooks_rejected"`
	SignalsEvaluated int64                    `json:"signals_evaluated"`
	Trades           map[string]int           `json:"trades"`
	Tracker          TrackerSnapshot          `json:"tracker"`
	WebSocketClients int                      `json:"websocket_clients"`
}

// StatusService собирает снимок состояния процесса.
//
// Функции:
// - Snapshot: счетчики свечей по тикерам/таймфреймам, счетчики
//   webhook/сигналов, количество сделок по исходам, состояние трекера
type StatusService struct {
	startedAt  time.Time
	classifier string
	counters   *RuntimeCounters
	candles    CandleSource
	tradeRepo  TradeRepositoryInterface
	tracker    TrackerState
	hub        ClientCounter
}

// NewStatusService создает новый экземпляр StatusService
func NewStatusService(
	classifier string,
	counters *RuntimeCounters,
	candles CandleSource,
	tradeRepo TradeRepositoryInterface,
) *StatusService {
	return &StatusService{
		startedAt:  time.Now(),
		classifier: classifier,
		counters:   counters,
		candles:    candles,
		tradeRepo:  tradeRepo,
	}
}

// SetTracker подключает трекер исходов (вызывается из main.go после его запуска)
func (s *StatusService) SetTracker(tracker TrackerState) {
	s.tracker = tracker
}

// SetHub подключает WebSocket hub для счетчика клиентов
func (s *StatusService) SetHub(hub ClientCounter) {
	s.hub = hub
}

// Snapshot возвращает текущее состояние сервиса
func (s *StatusService) Snapshot() (*StatusSnapshot, error) {
	now := time.Now()

	snapshot := &StatusSnapshot{
		Status:           "ok",
		StartedAt:        s.startedAt,
		UptimeSeconds:    int64(now.Sub(s.startedAt).Seconds()),
		Classifier:       s.classifier,
		Candles:          make(map[string]TickerCandles),
		WebhooksReceived: s.counters.WebhooksReceived.Load(),
		WebhooksRejected: s.counters.WebhooksRejected.Load(),
		SignalsEvaluated: s.counters.SignalsEvaluated.Load(),
	}

	for _, ticker := range s.candles.Tickers() {
		tc := TickerCandles{
			Candles1m:  s.candles.Count(ticker, models.Timeframe1m),
			Candles5m:  s.candles.Count(ticker, models.Timeframe5m),
			Candles15m: s.candles.Count(ticker, models.Timeframe15m),
			Ready:      s.candles.Ready(ticker),
		}
		if price, ok := s.candles.LastClose(ticker); ok {
			tc.LastPrice = price
		}
		snapshot.Candles[ticker] = tc
	}

	counts, err := s.tradeRepo.CountByOutcome()
	if err != nil {
		return nil, err
	}
	snapshot.Trades = make(map[string]int, len(counts))
	for outcome, n := range counts {
		snapshot.Trades[string(outcome)] = n
	}

	if s.tracker != nil {
		snapshot.Tracker.Running = s.tracker.Running()
		if last := s.tracker.LastPollAt(); !last.IsZero() {
			snapshot.Tracker.LastPollAt = &last
		}
	}

	if s.hub != nil {
		snapshot.WebSocketClients = s.hub.ClientCount()
	}

	return snapshot, nil
}
