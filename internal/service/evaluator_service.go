package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"signaldesk/internal/classifier"
	"signaldesk/internal/metrics"
	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// Ошибки оценщика
var (
	ErrTickerNotReady = errors.New("not enough 1m candles buffered for evaluation")
)

// TradingBlocker - проверка правил Apex перед созданием сделки
type TradingBlocker interface {
	ShouldBlock() (bool, string, error)
}

// EvaluatorService превращает готовую историю свечей в оцененный сигнал.
//
// Конвейер:
//  1. классификатор (OpenAI или rule-based MTF) дает вердикт
//  2. локальные фильтры качества проверяют вердикт
//  3. сигнал записывается в журнал всегда (и отклоненный тоже -
//     причины отказа видны на дашборде)
//  4. валидный сигнал продвигается в pending сделку, если правила
//     Apex не блокируют торговлю
//
// Ошибка классификатора не дает сигнала и не ретраится: следующая
// попытка произойдет на следующем триггере (свеча или ручной запуск).
type EvaluatorService struct {
	candles      CandleSource
	classifier   classifier.Classifier
	provider     string
	settingsRepo SettingsRepositoryInterface
	signalRepo   SignalRepositoryInterface
	tradeRepo    TradeRepositoryInterface
	blocker      TradingBlocker
	notifier     *NotificationService
	hub          Broadcaster
}

// NewEvaluatorService создает новый экземпляр EvaluatorService.
// provider - метка классификатора для метрик ("openai" или "mtf").
func NewEvaluatorService(
	candles CandleSource,
	cls classifier.Classifier,
	provider string,
	settingsRepo SettingsRepositoryInterface,
	signalRepo SignalRepositoryInterface,
	tradeRepo TradeRepositoryInterface,
) *EvaluatorService {
	return &EvaluatorService{
		candles:      candles,
		classifier:   cls,
		provider:     provider,
		settingsRepo: settingsRepo,
		signalRepo:   signalRepo,
		tradeRepo:    tradeRepo,
	}
}

// SetBlocker устанавливает проверку правил Apex.
func (s *EvaluatorService) SetBlocker(blocker TradingBlocker) {
	s.blocker = blocker
}

// SetNotifier устанавливает сервис уведомлений.
func (s *EvaluatorService) SetNotifier(notifier *NotificationService) {
	s.notifier = notifier
}

// SetBroadcaster устанавливает WebSocket hub.
func (s *EvaluatorService) SetBroadcaster(hub Broadcaster) {
	s.hub = hub
}

// GetRecentSignals возвращает последние сигналы для дашборда (новые сверху).
func (s *EvaluatorService) GetRecentSignals(limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.signalRepo.GetRecent(limit)
}

// Evaluate выполняет одну оценку тикера.
//
// Возвращает записанный сигнал (валидный или нет). При ошибке
// классификатора сигнал не записывается и возвращается ошибка.
func (s *EvaluatorService) Evaluate(ctx context.Context, ticker string) (*models.Signal, error) {
	ticker = models.NormalizeTicker(ticker)
	if !s.candles.Ready(ticker) {
		return nil, fmt.Errorf("%s: %w", ticker, ErrTickerNotReady)
	}

	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	currentPrice, ok := s.candles.LastClose(ticker)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ticker, ErrTickerNotReady)
	}

	req := classifier.Request{
		Ticker:       ticker,
		CurrentPrice: currentPrice,
		Candles1m:    s.candles.Recent(ticker, models.Timeframe1m, models.CandleCapacity1m),
		Candles5m:    s.candles.Recent(ticker, models.Timeframe5m, models.CandleCapacity5m),
		Candles15m:   s.candles.Recent(ticker, models.Timeframe15m, models.CandleCapacity15m),
		Rules:        settings.PromptRules,
	}

	start := time.Now()
	verdict, err := s.classifier.Classify(ctx, req)
	metrics.ClassifierLatency.WithLabelValues(s.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassifierErrors.WithLabelValues(s.provider).Inc()
		utils.L().Error("Classifier call failed",
			zap.String("ticker", ticker),
			zap.Error(err))
		if s.notifier != nil {
			if nerr := s.notifier.NotifyClassifierError(ticker, err); nerr != nil {
				utils.L().Sugar().Warnf("Classifier error notification failed: %v", nerr)
			}
		}
		return nil, fmt.Errorf("classify %s: %w", ticker, err)
	}

	signal := &models.Signal{
		Ticker:       ticker,
		Timestamp:    time.Now(),
		Direction:    verdict.Direction,
		Confidence:   verdict.Confidence,
		Entry:        verdict.Entry,
		Stop:         verdict.Stop,
		Target:       verdict.Target,
		CurrentPrice: currentPrice,
		HTFBias:      verdict.HTFBias,
		EntryType:    verdict.EntryType,
		Rationale:    verdict.Rationale,
	}

	reasons := s.applyFilters(signal, settings)
	signal.Valid = len(reasons) == 0
	signal.Reasons = reasons

	if err := s.signalRepo.Create(signal); err != nil {
		return nil, fmt.Errorf("record signal: %w", err)
	}

	label := "rejected"
	switch {
	case signal.Valid:
		label = "valid"
	case signal.Direction == models.DirectionNoTrade:
		label = "no_trade"
	}
	metrics.SignalsEvaluated.WithLabelValues(label, ticker).Inc()

	if s.hub != nil {
		s.hub.BroadcastSignal(signal)
	}

	if signal.Valid {
		if err := s.promote(signal); err != nil {
			return signal, err
		}
	}

	return signal, nil
}

// applyFilters прогоняет вердикт классификатора через фильтры качества.
// Возвращает причины отказа; пустой срез = сигнал валиден.
// Порядок фиксирован, первая сработавшая проверка завершает конвейер.
func (s *EvaluatorService) applyFilters(signal *models.Signal, settings *models.Settings) []string {
	if signal.Direction == models.DirectionNoTrade {
		return []string{"classifier suggests no trade"}
	}
	if !signal.Direction.Tradeable() {
		return []string{fmt.Sprintf("unknown direction %q", signal.Direction)}
	}

	if signal.Confidence < settings.MinConfidence {
		return []string{fmt.Sprintf("confidence %d%% below threshold %d%%",
			signal.Confidence, settings.MinConfidence)}
	}

	if signal.Entry == 0 || signal.Stop == 0 || signal.Target == 0 {
		return []string{"missing required price levels"}
	}
	if !signal.LevelsConsistent() {
		return []string{fmt.Sprintf("levels inconsistent for %s: entry %.2f stop %.2f target %.2f",
			signal.Direction, signal.Entry, signal.Stop, signal.Target)}
	}

	// Граница включительно: R:R ровно на минимуме проходит
	if rr := signal.RiskReward(); rr < settings.MinRiskReward {
		return []string{fmt.Sprintf("risk:reward %.2f below minimum %.2f", rr, settings.MinRiskReward)}
	}

	if !signal.HTFBias.Agrees(signal.Direction) {
		return []string{fmt.Sprintf("direction %s conflicts with 15m bias %s",
			signal.Direction, signal.HTFBias)}
	}

	tickSize := models.TickSize(signal.Ticker)
	drift := utils.PriceToTicks(math.Abs(signal.CurrentPrice-signal.Entry), tickSize)
	if drift > settings.MaxPriceDriftTicks {
		return []string{fmt.Sprintf("price drifted %.1f ticks from entry (max %.0f)",
			drift, settings.MaxPriceDriftTicks)}
	}

	if settings.RequireMomentum {
		if reason, ok := s.checkMomentum(signal.Ticker, signal.Direction); !ok {
			return []string{reason}
		}
	}

	return nil
}

// checkMomentum проверяет, что последние 1m свечи не идут против
// направления сделки: 2 из 3 встречных свечей - отказ.
func (s *EvaluatorService) checkMomentum(ticker string, direction models.Direction) (string, bool) {
	recent := s.candles.Recent(ticker, models.Timeframe1m, 3)
	if len(recent) < 3 {
		return "insufficient 1m history for momentum check", false
	}

	bullish, bearish := 0, 0
	for _, c := range recent {
		if c.Bullish() {
			bullish++
		} else if c.Bearish() {
			bearish++
		}
	}

	switch direction {
	case models.DirectionLong:
		if bearish >= 2 {
			return fmt.Sprintf("recent 1m momentum conflicts: %d of 3 candles bearish", bearish), false
		}
	case models.DirectionShort:
		if bullish >= 2 {
			return fmt.Sprintf("recent 1m momentum conflicts: %d of 3 candles bullish", bullish), false
		}
	}
	return "", true
}

// promote создает pending сделку из валидного сигнала,
// предварительно сверившись с правилами Apex.
func (s *EvaluatorService) promote(signal *models.Signal) error {
	if s.blocker != nil {
		blocked, reason, err := s.blocker.ShouldBlock()
		if err != nil {
			return fmt.Errorf("apex check: %w", err)
		}
		if blocked {
			utils.L().Warn("Signal not promoted: trading blocked",
				zap.String("ticker", signal.Ticker),
				zap.String("reason", reason))
			signal.Reasons = append(signal.Reasons, "trade skipped: "+reason)
			return nil
		}
	}

	trade := &models.Trade{
		SignalID:    &signal.ID,
		Ticker:      signal.Ticker,
		Direction:   signal.Direction,
		EntryPrice:  signal.Entry,
		StopPrice:   signal.Stop,
		TargetPrice: signal.Target,
		Confidence:  signal.Confidence,
		Timestamp:   signal.Timestamp,
		Outcome:     models.OutcomePending,
	}
	if err := s.tradeRepo.Create(trade); err != nil {
		return fmt.Errorf("promote signal to trade: %w", err)
	}

	metrics.PendingTrades.Inc()
	if s.hub != nil {
		s.hub.BroadcastTradeOpened(trade)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySignal(signal); err != nil {
			utils.L().Sugar().Warnf("Signal notification failed: %v", err)
		}
	}

	utils.L().Info("Signal promoted to trade",
		zap.String("ticker", trade.Ticker),
		zap.String("direction", string(trade.Direction)),
		zap.Int("trade_id", trade.ID),
		zap.Int("confidence", trade.Confidence))

	return nil
}
