package models

import "time"

// RuleStatus - статус правила Apex
type RuleStatus string

// Статусы правил. Переходы ok -> warning -> blocked пересчитываются
// заново при каждом запросе из полной истории дневного P&L.
const (
	RuleStatusOK      RuleStatus = "ok"
	RuleStatusWarning RuleStatus = "warning"
	RuleStatusBlocked RuleStatus = "blocked"
)

// ApexConfig - конфигурация правил Apex Trader Funding.
// Значения по умолчанию соответствуют evaluation-аккаунту $50k.
type ApexConfig struct {
	AccountSize         float64            `json:"account_size"`
	InitialBalance      float64            `json:"initial_balance"`
	MaxDailyLoss        float64            `json:"max_daily_loss"`
	MaxTrailingDrawdown float64            `json:"max_trailing_drawdown"`
	DailyLossWarningPct float64            `json:"daily_loss_warning_pct"` // предупреждение при 80%
	DailyLossBlockPct   float64            `json:"daily_loss_block_pct"`   // блокировка при 100%
	MaxDayProfitPct     float64            `json:"max_day_profit_pct"`     // consistency: день не более 30% профита
	TickValues          map[string]float64 `json:"tick_values"`            // тикер -> $ за тик
}

// DefaultApexConfig возвращает конфигурацию по умолчанию
func DefaultApexConfig() ApexConfig {
	return ApexConfig{
		AccountSize:         50000,
		InitialBalance:      50000,
		MaxDailyLoss:        2500,
		MaxTrailingDrawdown: 2500,
		DailyLossWarningPct: 80,
		DailyLossBlockPct:   100,
		MaxDayProfitPct:     30,
		TickValues: map[string]float64{
			"MNQ": 0.50,
			"MES": 1.25,
			"MGC": 1.00,
		},
	}
}

// TickValue возвращает долларовую стоимость тика для тикера.
// Для неизвестных тикеров - $1 за тик.
func (c ApexConfig) TickValue(ticker string) float64 {
	if v, ok := c.TickValues[NormalizeTicker(ticker)]; ok {
		return v
	}
	return 1.0
}

// DailyPnl - P&L одного торгового дня
type DailyPnl struct {
	Date string  `json:"date"` // YYYY-MM-DD
	Pnl  float64 `json:"pnl"`  // в долларах
}

// ApexAccountSnapshot - производное состояние аккаунта.
// current_balance и high_water_mark сворачиваются из дневных P&L;
// high_water_mark монотонно не убывает по построению (максимум
// префиксных сумм).
type ApexAccountSnapshot struct {
	InitialBalance float64 `json:"initial_balance"`
	CurrentBalance float64 `json:"current_balance"`
	HighWaterMark  float64 `json:"high_water_mark"`
	TotalPnl       float64 `json:"total_pnl"`
}

// DailyLossStatus - состояние правила дневного убытка
type DailyLossStatus struct {
	TodayPnl   float64    `json:"today_pnl"`
	MaxAllowed float64    `json:"max_allowed"`
	UsedPct    float64    `json:"used_pct"`
	Remaining  float64    `json:"remaining"`
	Status     RuleStatus `json:"status"`
}

// TrailingDrawdownStatus - состояние правила trailing drawdown
type TrailingDrawdownStatus struct {
	CurrentDrawdown float64    `json:"current_drawdown"`
	MaxAllowed      float64    `json:"max_allowed"`
	UsedPct         float64    `json:"used_pct"`
	Floor           float64    `json:"floor"`
	DistanceToFloor float64    `json:"distance_to_floor"`
	Status          RuleStatus `json:"status"`
}

// ConsistencyStatus - состояние правила consistency.
// Правило advisory: блокировки нет, только warning.
type ConsistencyStatus struct {
	TotalProfit float64    `json:"total_profit"`
	MaxDayPct   float64    `json:"max_day_pct_allowed"`
	BestDay     string     `json:"best_day,omitempty"`
	BestDayPct  float64    `json:"best_day_pct"`
	Status      RuleStatus `json:"status"`
}

// ApexStatus - полный снимок состояния правил для дашборда
type ApexStatus struct {
	Config           ApexConfig             `json:"config"`
	Account          ApexAccountSnapshot    `json:"account"`
	DailyLoss        DailyLossStatus        `json:"daily_loss"`
	TrailingDrawdown TrailingDrawdownStatus `json:"trailing_drawdown"`
	Consistency      ConsistencyStatus      `json:"consistency"`
	DailyHistory     []DailyPnl             `json:"daily_history"`
	LastUpdated      time.Time              `json:"last_updated"`
}

// ApexAlert - событие нарушения/приближения к лимиту правила
type ApexAlert struct {
	Type       string     `json:"type"` // daily_loss_warning, daily_loss_block, drawdown_warning, drawdown_breach, consistency_warning
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Limit      float64    `json:"limit"`
	Percentage float64    `json:"percentage"`
	Status     RuleStatus `json:"status"`
}
