package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// tracker.go - фоновое отслеживание исходов pending сделок
//
// Назначение:
// Периодически сверяет открытые сделки с последними свечами и
// разрешает их через общий путь TradeService.Resolve.
//
// Правила разрешения:
// - long: Low последней минутки <= stop -> loss; High >= target -> win
// - short: High >= stop -> loss; Low <= target -> win
// - стоп проверяется ПЕРЕД таргетом: если свеча задела оба уровня,
//   исход консервативно считается loss
// - pending старше max_age -> expired по последней цене

// TradeResolver - журнал сделок с единым путем разрешения.
// Реализуется service.TradeService: трекер и ручной ввод исхода
// проходят через один и тот же код.
type TradeResolver interface {
	GetPending() ([]*models.Trade, error)
	Resolve(id int, outcome models.Outcome, lastPrice float64, at time.Time) (*models.Trade, error)
}

// PriceSource - источник последних цен. Реализуется candles.Store.
type PriceSource interface {
	LastCandle(ticker string, tf models.Timeframe) (models.Candle, bool)
	LastClose(ticker string) (float64, bool)
}

// MaxAgeSource - источник актуального track_max_age_hours из настроек
type MaxAgeSource interface {
	Get() (*models.Settings, error)
}

// Tracker - воркер отслеживания исходов
type Tracker struct {
	trades   TradeResolver
	prices   PriceSource
	settings MaxAgeSource

	interval      time.Duration
	defaultMaxAge time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	lastPoll time.Time
}

// New создает трекер исходов.
// defaultMaxAge используется, когда настройки недоступны.
func New(trades TradeResolver, prices PriceSource, settings MaxAgeSource, interval, defaultMaxAge time.Duration) *Tracker {
	return &Tracker{
		trades:        trades,
		prices:        prices,
		settings:      settings,
		interval:      interval,
		defaultMaxAge: defaultMaxAge,
		stopCh:        make(chan struct{}),
	}
}

// Start запускает цикл опроса в отдельной горутине
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx)

	utils.L().Info("Outcome tracker started",
		zap.Duration("interval", t.interval),
		zap.Duration("default_max_age", t.defaultMaxAge))
}

// Stop останавливает цикл и дожидается завершения текущего прохода
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.stopCh)
	t.wg.Wait()
	utils.L().Info("Outcome tracker stopped")
}

// Running сообщает, работает ли цикл опроса
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// LastPollAt возвращает время последнего прохода
func (t *Tracker) LastPollAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPoll
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.Poll(time.Now())
		}
	}
}

// Poll выполняет один проход по pending сделкам.
// Вызывается циклом опроса и ручным триггером сканирования.
func (t *Tracker) Poll(now time.Time) {
	t.mu.Lock()
	t.lastPoll = now
	t.mu.Unlock()

	pending, err := t.trades.GetPending()
	if err != nil {
		utils.L().Error("Tracker failed to load pending trades", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	maxAge := t.maxAge()
	for _, trade := range pending {
		t.track(trade, now, maxAge)
	}
}

// maxAge возвращает актуальный возраст истечения сделок
func (t *Tracker) maxAge() time.Duration {
	settings, err := t.settings.Get()
	if err != nil || settings.TrackMaxAgeHours <= 0 {
		return t.defaultMaxAge
	}
	return time.Duration(settings.TrackMaxAgeHours) * time.Hour
}

// track сверяет одну сделку с последней минуткой ее тикера
func (t *Tracker) track(trade *models.Trade, now time.Time, maxAge time.Duration) {
	if now.Sub(trade.Timestamp) > maxAge {
		lastPrice, ok := t.prices.LastClose(trade.Ticker)
		if !ok {
			// Свечей нет вообще - оцениваем по цене входа
			lastPrice = trade.EntryPrice
		}
		t.resolve(trade, models.OutcomeExpired, lastPrice, now)
		return
	}

	candle, ok := t.prices.LastCandle(trade.Ticker, models.Timeframe1m)
	if !ok {
		return
	}
	// Свечи, закрытые до открытия сделки, не учитываются
	if !candle.OpenTime.After(trade.Timestamp) {
		return
	}

	if outcome, hit := hitOutcome(trade, candle); hit {
		t.resolve(trade, outcome, candle.Close, now)
	}
}

// hitOutcome проверяет, задела ли свеча стоп или таргет сделки.
// Стоп строго раньше таргета: свеча, накрывшая оба уровня, дает loss.
func hitOutcome(trade *models.Trade, candle models.Candle) (models.Outcome, bool) {
	switch trade.Direction {
	case models.DirectionLong:
		if candle.Low <= trade.StopPrice {
			return models.OutcomeLoss, true
		}
		if candle.High >= trade.TargetPrice {
			return models.OutcomeWin, true
		}
	case models.DirectionShort:
		if candle.High >= trade.StopPrice {
			return models.OutcomeLoss, true
		}
		if candle.Low <= trade.TargetPrice {
			return models.OutcomeWin, true
		}
	}
	return "", false
}

func (t *Tracker) resolve(trade *models.Trade, outcome models.Outcome, lastPrice float64, now time.Time) {
	if _, err := t.trades.Resolve(trade.ID, outcome, lastPrice, now); err != nil {
		// Конфликт с ручным вводом исхода: побеждает первая запись
		utils.L().Warn("Tracker failed to resolve trade",
			zap.Int("trade_id", trade.ID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}
