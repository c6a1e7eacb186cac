package service

import (
	"errors"
	"fmt"
	"time"

	"signaldesk/internal/metrics"
	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// Ошибки сервиса Apex
var (
	ErrResetNotConfirmed = errors.New("apex reset requires explicit confirmation")
	ErrInvalidApexConfig = errors.New("apex config limits must be positive")
	ErrTradeNotResolved  = errors.New("trade has no resolved pnl to record")
)

// ApexService реализует правила Apex Trader Funding поверх журнала
// дневного P&L.
//
// Правила:
// - Daily Loss: предупреждение при 80% дневного лимита, блок при 100%
// - Trailing Drawdown: просадка от high water mark, те же пороги
// - Consistency: лучший день > 30% суммарного профита - предупреждение
//   (advisory, без блокировки)
//
// Статусы пересчитываются заново из полной истории дневного P&L при
// каждом запросе: current_balance и high_water_mark - свертка истории,
// кэша состояния нет.
type ApexService struct {
	apexRepo ApexRepositoryInterface
	notifier *NotificationService
	hub      Broadcaster
}

// NewApexService создает новый экземпляр ApexService.
func NewApexService(apexRepo ApexRepositoryInterface) *ApexService {
	return &ApexService{apexRepo: apexRepo}
}

// SetNotifier устанавливает сервис уведомлений для алертов правил.
func (s *ApexService) SetNotifier(notifier *NotificationService) {
	s.notifier = notifier
}

// SetBroadcaster устанавливает WebSocket hub для real-time алертов.
func (s *ApexService) SetBroadcaster(hub Broadcaster) {
	s.hub = hub
}

// Status возвращает полный снимок состояния правил для дашборда.
func (s *ApexService) Status() (*models.ApexStatus, error) {
	cfg, history, err := s.load()
	if err != nil {
		return nil, err
	}
	status := buildStatus(cfg, history, time.Now())
	return &status, nil
}

// RecordTradeResolution записывает P&L закрытой сделки в дневной журнал
// и возвращает алерты по правилам, которые эта запись эскалировала.
//
// Сумма в долларах: pnl_ticks x стоимость тика инструмента.
// Алерт создается только при переходе статуса правила вверх
// (ok -> warning, warning -> blocked), а не на каждую сделку.
func (s *ApexService) RecordTradeResolution(trade *models.Trade) ([]*models.ApexAlert, error) {
	if trade.PnlTicks == nil {
		return nil, ErrTradeNotResolved
	}

	cfg, history, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	before := buildStatus(cfg, history, now)

	dollars := utils.TicksToDollars(*trade.PnlTicks, cfg.TickValue(trade.Ticker))
	if err := s.apexRepo.AddDailyPnl(utils.DateKey(now), dollars); err != nil {
		return nil, fmt.Errorf("record daily pnl: %w", err)
	}

	history, err = s.apexRepo.GetAllDailyPnl()
	if err != nil {
		return nil, err
	}
	after := buildStatus(cfg, history, now)

	alerts := diffAlerts(before, after)
	for _, alert := range alerts {
		metrics.ApexAlerts.WithLabelValues(alert.Type, string(alert.Status)).Inc()
		if s.hub != nil {
			s.hub.BroadcastApexAlert(alert)
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyApexAlert(alert); err != nil {
				utils.L().Sugar().Warnf("Apex alert notification failed: %v", err)
			}
		}
	}

	return alerts, nil
}

// ShouldBlock проверяет, запрещено ли открытие новых сделок.
// Блокируют только daily loss 100% и пробой trailing drawdown;
// consistency - advisory и не блокирует.
func (s *ApexService) ShouldBlock() (bool, string, error) {
	cfg, history, err := s.load()
	if err != nil {
		return false, "", err
	}
	status := buildStatus(cfg, history, time.Now())

	if status.DailyLoss.Status == models.RuleStatusBlocked {
		return true, "daily loss limit reached", nil
	}
	if status.TrailingDrawdown.Status == models.RuleStatusBlocked {
		return true, "trailing drawdown breached", nil
	}
	return false, "", nil
}

// Reset очищает историю дневного P&L и возвращает аккаунт к
// initial_balance. Операция деструктивная и требует подтверждения.
func (s *ApexService) Reset(confirm bool) error {
	if !confirm {
		return ErrResetNotConfirmed
	}
	return s.apexRepo.ResetDailyPnl()
}

// GetConfig возвращает текущую конфигурацию правил.
func (s *ApexService) GetConfig() (*models.ApexConfig, error) {
	return s.apexRepo.GetConfig()
}

// UpdateConfig заменяет конфигурацию правил.
// Невалидная конфигурация отклоняется целиком, предыдущая остается.
func (s *ApexService) UpdateConfig(cfg *models.ApexConfig) error {
	if cfg.AccountSize <= 0 || cfg.InitialBalance <= 0 ||
		cfg.MaxDailyLoss <= 0 || cfg.MaxTrailingDrawdown <= 0 {
		return ErrInvalidApexConfig
	}
	if cfg.DailyLossWarningPct <= 0 || cfg.DailyLossWarningPct > cfg.DailyLossBlockPct {
		return ErrInvalidApexConfig
	}
	if cfg.MaxDayProfitPct <= 0 || cfg.MaxDayProfitPct > 100 {
		return ErrInvalidApexConfig
	}
	return s.apexRepo.UpdateConfig(cfg)
}

func (s *ApexService) load() (*models.ApexConfig, []models.DailyPnl, error) {
	cfg, err := s.apexRepo.GetConfig()
	if err != nil {
		return nil, nil, err
	}
	history, err := s.apexRepo.GetAllDailyPnl()
	if err != nil {
		return nil, nil, err
	}
	return cfg, history, nil
}

// foldAccount сворачивает историю дневного P&L в снимок аккаунта.
// history обязан быть отсортирован по дате по возрастанию:
// high_water_mark - максимум префиксных сумм и монотонно не убывает.
func foldAccount(cfg *models.ApexConfig, history []models.DailyPnl) models.ApexAccountSnapshot {
	balance := cfg.InitialBalance
	hwm := cfg.InitialBalance
	for _, day := range history {
		balance += day.Pnl
		if balance > hwm {
			hwm = balance
		}
	}
	return models.ApexAccountSnapshot{
		InitialBalance: cfg.InitialBalance,
		CurrentBalance: balance,
		HighWaterMark:  hwm,
		TotalPnl:       balance - cfg.InitialBalance,
	}
}

func ruleStatus(usedPct, warningPct, blockPct float64) models.RuleStatus {
	switch {
	case usedPct >= blockPct:
		return models.RuleStatusBlocked
	case usedPct >= warningPct:
		return models.RuleStatusWarning
	default:
		return models.RuleStatusOK
	}
}

// buildStatus пересчитывает состояние всех правил из истории.
func buildStatus(cfg *models.ApexConfig, history []models.DailyPnl, now time.Time) models.ApexStatus {
	account := foldAccount(cfg, history)

	todayKey := utils.DateKey(now)
	var todayPnl float64
	for _, day := range history {
		if day.Date == todayKey {
			todayPnl = day.Pnl
			break
		}
	}

	// Daily loss: учитывается только убыток за сегодня
	var lossUsedPct float64
	if todayPnl < 0 && cfg.MaxDailyLoss > 0 {
		lossUsedPct = -todayPnl / cfg.MaxDailyLoss * 100
	}
	dailyLoss := models.DailyLossStatus{
		TodayPnl:   todayPnl,
		MaxAllowed: cfg.MaxDailyLoss,
		UsedPct:    lossUsedPct,
		Remaining:  cfg.MaxDailyLoss - maxFloat(0, -todayPnl),
		Status:     ruleStatus(lossUsedPct, cfg.DailyLossWarningPct, cfg.DailyLossBlockPct),
	}

	// Trailing drawdown: просадка от high water mark
	drawdown := account.HighWaterMark - account.CurrentBalance
	var ddUsedPct float64
	if cfg.MaxTrailingDrawdown > 0 {
		ddUsedPct = drawdown / cfg.MaxTrailingDrawdown * 100
	}
	floor := account.HighWaterMark - cfg.MaxTrailingDrawdown
	trailing := models.TrailingDrawdownStatus{
		CurrentDrawdown: drawdown,
		MaxAllowed:      cfg.MaxTrailingDrawdown,
		UsedPct:         ddUsedPct,
		Floor:           floor,
		DistanceToFloor: account.CurrentBalance - floor,
		Status:          ruleStatus(ddUsedPct, cfg.DailyLossWarningPct, cfg.DailyLossBlockPct),
	}

	// Consistency: лучший прибыльный день против суммы прибыльных дней
	var totalProfit, bestPnl float64
	var bestDay string
	for _, day := range history {
		if day.Pnl > 0 {
			totalProfit += day.Pnl
			if day.Pnl > bestPnl {
				bestPnl = day.Pnl
				bestDay = day.Date
			}
		}
	}
	consistency := models.ConsistencyStatus{
		TotalProfit: totalProfit,
		MaxDayPct:   cfg.MaxDayProfitPct,
		Status:      models.RuleStatusOK,
	}
	if totalProfit > 0 {
		consistency.BestDay = bestDay
		consistency.BestDayPct = bestPnl / totalProfit * 100
		if consistency.BestDayPct > cfg.MaxDayProfitPct {
			consistency.Status = models.RuleStatusWarning
		}
	}

	return models.ApexStatus{
		Config:           *cfg,
		Account:          account,
		DailyLoss:        dailyLoss,
		TrailingDrawdown: trailing,
		Consistency:      consistency,
		DailyHistory:     history,
		LastUpdated:      now,
	}
}

func statusRank(s models.RuleStatus) int {
	switch s {
	case models.RuleStatusWarning:
		return 1
	case models.RuleStatusBlocked:
		return 2
	}
	return 0
}

func alertSeverity(s models.RuleStatus) string {
	if s == models.RuleStatusBlocked {
		return models.SeverityError
	}
	return models.SeverityWarn
}

// diffAlerts строит алерты для правил, чей статус эскалировал
// между двумя снимками.
func diffAlerts(before, after models.ApexStatus) []*models.ApexAlert {
	var alerts []*models.ApexAlert

	if statusRank(after.DailyLoss.Status) > statusRank(before.DailyLoss.Status) {
		alertType := "daily_loss_warning"
		msg := fmt.Sprintf("Daily loss $%.2f is at %.1f%% of limit ($%.2f). Reduce risk!",
			-after.DailyLoss.TodayPnl, after.DailyLoss.UsedPct, after.DailyLoss.MaxAllowed)
		if after.DailyLoss.Status == models.RuleStatusBlocked {
			alertType = "daily_loss_block"
			msg = fmt.Sprintf("Daily loss $%.2f has reached 100%% of limit ($%.2f). STOP TRADING!",
				-after.DailyLoss.TodayPnl, after.DailyLoss.MaxAllowed)
		}
		alerts = append(alerts, &models.ApexAlert{
			Type:       alertType,
			Severity:   alertSeverity(after.DailyLoss.Status),
			Message:    msg,
			Value:      -after.DailyLoss.TodayPnl,
			Limit:      after.DailyLoss.MaxAllowed,
			Percentage: after.DailyLoss.UsedPct,
			Status:     after.DailyLoss.Status,
		})
	}

	if statusRank(after.TrailingDrawdown.Status) > statusRank(before.TrailingDrawdown.Status) {
		alertType := "drawdown_warning"
		msg := fmt.Sprintf("Only $%.2f remaining before breaching drawdown limit",
			after.TrailingDrawdown.DistanceToFloor)
		if after.TrailingDrawdown.Status == models.RuleStatusBlocked {
			alertType = "drawdown_breach"
			msg = fmt.Sprintf("Account has fallen $%.2f below high water mark. Maximum allowed: $%.2f",
				after.TrailingDrawdown.CurrentDrawdown, after.TrailingDrawdown.MaxAllowed)
		}
		alerts = append(alerts, &models.ApexAlert{
			Type:       alertType,
			Severity:   alertSeverity(after.TrailingDrawdown.Status),
			Message:    msg,
			Value:      after.TrailingDrawdown.CurrentDrawdown,
			Limit:      after.TrailingDrawdown.MaxAllowed,
			Percentage: after.TrailingDrawdown.UsedPct,
			Status:     after.TrailingDrawdown.Status,
		})
	}

	if statusRank(after.Consistency.Status) > statusRank(before.Consistency.Status) {
		alerts = append(alerts, &models.ApexAlert{
			Type:     "consistency_warning",
			Severity: models.SeverityWarn,
			Message: fmt.Sprintf("Day %s profit is %.1f%% of total profits. Max allowed: %.0f%%",
				after.Consistency.BestDay, after.Consistency.BestDayPct, after.Consistency.MaxDayPct),
			Value:      after.Consistency.BestDayPct,
			Limit:      after.Consistency.MaxDayPct,
			Percentage: after.Consistency.BestDayPct,
			Status:     models.RuleStatusWarning,
		})
	}

	return alerts
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
