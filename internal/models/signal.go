package models

import (
	"time"

	"signaldesk/pkg/utils"
)

// Direction - направление сделки
type Direction string

// Направления сигнала. NoTrade означает что классификатор
// не видит качественного сетапа.
const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNoTrade Direction = "no_trade"
)

// Tradeable возвращает true для направлений, которые могут стать сделкой
func (d Direction) Tradeable() bool {
	return d == DirectionLong || d == DirectionShort
}

// HTFBias - направление старшего таймфрейма (15m)
type HTFBias string

// Возможные значения bias старшего таймфрейма
const (
	BiasBullish HTFBias = "BULLISH"
	BiasBearish HTFBias = "BEARISH"
	BiasNeutral HTFBias = "NEUTRAL"
)

// Agrees проверяет согласованность направления сделки с bias 15m.
// Нейтральный bias не подтверждает ни одно направление.
func (b HTFBias) Agrees(d Direction) bool {
	switch d {
	case DirectionLong:
		return b == BiasBullish
	case DirectionShort:
		return b == BiasBearish
	}
	return false
}

// Signal представляет один результат оценки классификатора.
// Создается ровно один раз на вызов оценки и никогда не изменяется.
// Невалидные сигналы (Valid=false) сохраняются для видимости на
// дашборде, но никогда не становятся сделками.
type Signal struct {
	ID           int       `json:"id" db:"id"`
	Ticker       string    `json:"ticker" db:"ticker"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Direction    Direction `json:"direction" db:"direction"`
	Confidence   int       `json:"confidence" db:"confidence"` // 0-100
	Entry        float64   `json:"entry" db:"entry_price"`
	Stop         float64   `json:"stop" db:"stop_price"`
	Target       float64   `json:"target" db:"target_price"`
	CurrentPrice float64   `json:"current_price" db:"current_price"`
	HTFBias      HTFBias   `json:"htf_bias" db:"htf_bias"`
	EntryType    string    `json:"entry_type" db:"entry_type"` // IMMEDIATE, WAIT_FOR_PULLBACK, WAIT_FOR_BREAKOUT
	Rationale    string    `json:"rationale" db:"rationale"`
	Valid        bool      `json:"valid" db:"is_valid"`
	Reasons      []string  `json:"reasons,omitempty" db:"-"` // причины (не)прохождения фильтров
}

// Типы входа, которые возвращает классификатор
const (
	EntryTypeImmediate       = "IMMEDIATE"
	EntryTypeWaitForPullback = "WAIT_FOR_PULLBACK"
	EntryTypeWaitForBreakout = "WAIT_FOR_BREAKOUT"
	EntryTypeMTFConfluence   = "MTF_CONFLUENCE"
)

// RiskReward возвращает отношение потенциальной прибыли к риску.
// Возвращает 0 если риск нулевой (некорректные уровни).
func (s Signal) RiskReward() float64 {
	return utils.RiskReward(s.Entry, s.Stop, s.Target)
}

// LevelsConsistent проверяет инвариант уровней:
// long: stop < entry < target; short: target < entry < stop.
func (s Signal) LevelsConsistent() bool {
	switch s.Direction {
	case DirectionLong:
		return s.Stop < s.Entry && s.Entry < s.Target
	case DirectionShort:
		return s.Target < s.Entry && s.Entry < s.Stop
	}
	return false
}
