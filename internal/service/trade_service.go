package service

import (
	"time"

	"go.uber.org/zap"

	"signaldesk/internal/metrics"
	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// ResolutionRecorder - учет P&L закрытой сделки в правилах Apex
type ResolutionRecorder interface {
	RecordTradeResolution(trade *models.Trade) ([]*models.ApexAlert, error)
}

// TradeService - операции над журналом сделок.
//
// Единая точка разрешения сделки: и трекер, и ручной ввод с дашборда
// проходят через Resolve, поэтому побочные эффекты (Apex, уведомление,
// WebSocket, метрики) не дублируются. Повторное разрешение той же
// сделки отсечется на уровне SQL (первый писатель выигрывает).
type TradeService struct {
	tradeRepo TradeRepositoryInterface
	apex      ResolutionRecorder
	notifier  *NotificationService
	hub       Broadcaster
}

// NewTradeService создает новый экземпляр TradeService.
func NewTradeService(tradeRepo TradeRepositoryInterface) *TradeService {
	return &TradeService{tradeRepo: tradeRepo}
}

// SetApexRecorder устанавливает учет P&L в правилах Apex.
func (s *TradeService) SetApexRecorder(apex ResolutionRecorder) {
	s.apex = apex
}

// SetNotifier устанавливает сервис уведомлений.
func (s *TradeService) SetNotifier(notifier *NotificationService) {
	s.notifier = notifier
}

// SetBroadcaster устанавливает WebSocket hub.
func (s *TradeService) SetBroadcaster(hub Broadcaster) {
	s.hub = hub
}

// GetTrades возвращает страницу журнала (новые сверху).
func (s *TradeService) GetTrades(limit, offset int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.tradeRepo.GetRecent(limit, offset)
}

// GetTrade возвращает сделку по id.
func (s *TradeService) GetTrade(id int) (*models.Trade, error) {
	return s.tradeRepo.GetByID(id)
}

// GetPending возвращает открытые сделки (старые первыми).
func (s *TradeService) GetPending() ([]*models.Trade, error) {
	return s.tradeRepo.GetPending()
}

// Counts возвращает количество сделок по исходам.
func (s *TradeService) Counts() (map[models.Outcome]int, error) {
	return s.tradeRepo.CountByOutcome()
}

// Delete удаляет сделку. Разрешено только в статусе pending
// (пользователь отклонил сделку); иначе repository.ErrTradeAlreadyResolved.
func (s *TradeService) Delete(id int) error {
	if err := s.tradeRepo.Delete(id); err != nil {
		return err
	}
	metrics.PendingTrades.Dec()
	return nil
}

// Resolve переводит сделку pending -> {win, loss, expired} ровно один раз.
//
// P&L в тиках выводится из исхода:
//   - win: расстояние entry -> target (знак по направлению)
//   - loss: расстояние entry -> stop (отрицательный)
//   - expired: расстояние entry -> lastPrice (НЕ ноль: незакрытая
//     сделка оценивается по последней наблюдаемой цене)
//
// Возвращает сделку с заполненными полями исхода. Ошибки состояния
// (уже разрешена, не найдена) приходят сентинелами репозитория.
func (s *TradeService) Resolve(id int, outcome models.Outcome, lastPrice float64, at time.Time) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	price, pnlTicks := resolutionPnl(trade, outcome, lastPrice)
	if err := s.tradeRepo.SetOutcome(id, outcome, price, at, pnlTicks); err != nil {
		return nil, err
	}

	trade.Outcome = outcome
	trade.OutcomePrice = &price
	trade.OutcomeTime = &at
	trade.PnlTicks = &pnlTicks

	metrics.TradesResolved.WithLabelValues(string(outcome), trade.Ticker).Inc()
	metrics.PendingTrades.Dec()

	if s.apex != nil {
		if _, err := s.apex.RecordTradeResolution(trade); err != nil {
			utils.L().Error("Apex recording failed for resolved trade",
				zap.Int("trade_id", trade.ID),
				zap.Error(err))
		}
	}
	if s.hub != nil {
		s.hub.BroadcastTradeResolved(trade)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyTradeResolved(trade); err != nil {
			utils.L().Sugar().Warnf("Trade resolution notification failed: %v", err)
		}
	}

	utils.L().Info("Trade resolved",
		zap.Int("trade_id", trade.ID),
		zap.String("ticker", trade.Ticker),
		zap.String("outcome", string(outcome)),
		zap.Float64("pnl_ticks", pnlTicks))

	return trade, nil
}

// resolutionPnl возвращает цену фиксации и P&L в тиках для исхода.
func resolutionPnl(trade *models.Trade, outcome models.Outcome, lastPrice float64) (float64, float64) {
	tickSize := models.TickSize(trade.Ticker)
	sign := 1.0
	if trade.Direction == models.DirectionShort {
		sign = -1.0
	}

	switch outcome {
	case models.OutcomeWin:
		return trade.TargetPrice, sign * utils.PriceToTicks(trade.TargetPrice-trade.EntryPrice, tickSize)
	case models.OutcomeLoss:
		return trade.StopPrice, sign * utils.PriceToTicks(trade.StopPrice-trade.EntryPrice, tickSize)
	default: // expired
		if lastPrice <= 0 {
			// Цены нет - оцениваем по цене входа, как трекер без свечей
			lastPrice = trade.EntryPrice
		}
		return lastPrice, sign * utils.PriceToTicks(lastPrice-trade.EntryPrice, tickSize)
	}
}

// FormatPnl - P&L сделки в долларах по конфигурации Apex.
// Для сделок без P&L возвращает 0.
func FormatPnl(trade *models.Trade, cfg *models.ApexConfig) float64 {
	if trade.PnlTicks == nil || cfg == nil {
		return 0
	}
	return utils.Round2(utils.TicksToDollars(*trade.PnlTicks, cfg.TickValue(trade.Ticker)))
}
