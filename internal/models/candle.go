package models

import (
	"regexp"
	"strings"
	"time"
)

// Timeframe - таймфрейм свечи
type Timeframe string

// Поддерживаемые таймфреймы
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
)

// Вместимость буферов свечей по таймфреймам.
// 100 x 1m покрывает ~1.5 часа истории, этого достаточно
// для построения 20 x 5m и 6 x 15m агрегатов.
const (
	CandleCapacity1m  = 100
	CandleCapacity5m  = 50
	CandleCapacity15m = 30
)

// Valid проверяет, что таймфрейм поддерживается
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe1m, Timeframe5m, Timeframe15m:
		return true
	}
	return false
}

// Candle представляет одну OHLC свечу.
// Свечи неизменяемы после сохранения: 1m свечи - источник истины,
// 5m/15m пересчитываются из последних 1m свечей.
type Candle struct {
	Ticker    string    `json:"ticker"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Bullish возвращает true если свеча закрылась выше открытия
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish возвращает true если свеча закрылась ниже открытия
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// tickSizes - минимальный шаг цены микро-фьючерсов CME.
// Ключи - нормализованные тикеры (см. NormalizeTicker).
var tickSizes = map[string]float64{
	"MNQ": 0.25, "NQ": 0.25,
	"MES": 0.25, "ES": 0.25,
	"MGC": 0.10, "GC": 0.10,
}

// TickSize возвращает шаг цены инструмента.
// Для неизвестных тикеров - 0.25 (шаг индексных микро-контрактов).
func TickSize(ticker string) float64 {
	if v, ok := tickSizes[NormalizeTicker(ticker)]; ok {
		return v
	}
	return 0.25
}

// contractMonthRe - суффиксы фьючерсных контрактов: месяц (FGHJKMNQUVXZ) + год
var contractMonthRe = regexp.MustCompile(`[FGHJKMNQUVXZ]\d{4}$`)

// NormalizeTicker приводит тикер к базовому виду:
// "CME_MINI:MNQZ2025" -> "MNQ", "MNQ=F" -> "MNQ".
// Используется на всех входных границах (webhook, API), чтобы
// хранилище свечей и журнал оперировали единым ключом.
func NormalizeTicker(ticker string) string {
	base := strings.ToUpper(strings.TrimSpace(ticker))
	if idx := strings.LastIndex(base, ":"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, "=F")
	base = contractMonthRe.ReplaceAllString(base, "")
	return base
}
