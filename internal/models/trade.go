package models

import (
	"strings"
	"time"
)

// Outcome - результат сделки
type Outcome string

// Каноническое представление исходов - строго в нижнем регистре.
// Любой внешний ввод нормализуется через NormalizeOutcome на границе API.
const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeExpired Outcome = "expired"
)

// Terminal возвращает true для финальных исходов.
// Переход pending -> terminal происходит ровно один раз.
func (o Outcome) Terminal() bool {
	return o == OutcomeWin || o == OutcomeLoss || o == OutcomeExpired
}

// NormalizeOutcome приводит внешнее представление исхода к каноническому.
// Исторически дашборд принимал и 'WIN' и 'win'; храним только нижний регистр.
func NormalizeOutcome(raw string) (Outcome, bool) {
	switch Outcome(strings.ToLower(strings.TrimSpace(raw))) {
	case OutcomeWin:
		return OutcomeWin, true
	case OutcomeLoss:
		return OutcomeLoss, true
	case OutcomeExpired:
		return OutcomeExpired, true
	case OutcomePending:
		return OutcomePending, true
	}
	return "", false
}

// Trade представляет гипотетическую сделку, созданную из валидного сигнала.
//
// Жизненный цикл:
// - создается со статусом pending из валидного Signal
// - ровно один переход pending -> {win, loss, expired} (трекер или ручной ввод)
// - PnlTicks и OutcomePrice выставляются атомарно вместе с переходом
// - удаление разрешено только в статусе pending (пользователь отклонил сделку)
type Trade struct {
	ID           int        `json:"id" db:"id"`
	SignalID     *int       `json:"signal_id,omitempty" db:"signal_id"`
	Ticker       string     `json:"ticker" db:"ticker"`
	Direction    Direction  `json:"direction" db:"direction"`
	EntryPrice   float64    `json:"entry_price" db:"entry_price"`
	StopPrice    float64    `json:"stop_price" db:"stop_price"`
	TargetPrice  float64    `json:"target_price" db:"target_price"`
	Confidence   int        `json:"confidence" db:"confidence"`
	Timestamp    time.Time  `json:"timestamp" db:"timestamp"`
	Outcome      Outcome    `json:"outcome" db:"outcome"`
	OutcomePrice *float64   `json:"outcome_price,omitempty" db:"outcome_price"`
	OutcomeTime  *time.Time `json:"outcome_time,omitempty" db:"outcome_time"`
	PnlTicks     *float64   `json:"pnl_ticks,omitempty" db:"pnl_ticks"`
}

// LevelsConsistent проверяет инвариант уровней сделки.
// Инвариант гарантируется фильтрами оценщика при создании,
// но проверяется и в репозитории перед записью.
func (t Trade) LevelsConsistent() bool {
	switch t.Direction {
	case DirectionLong:
		return t.StopPrice < t.EntryPrice && t.EntryPrice < t.TargetPrice
	case DirectionShort:
		return t.TargetPrice < t.EntryPrice && t.EntryPrice < t.StopPrice
	}
	return false
}
