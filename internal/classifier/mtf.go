package classifier

import (
	"context"

	"github.com/markcheno/go-talib"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// Периоды EMA по таймфреймам
const (
	emaPeriod15m = 20
	emaPeriod5m  = 21
	emaPeriod1m  = 9
)

// Веса конфлюэнса
//
// Сумма всех слагаемых дает уверенность 0-100:
// старший таймфрейм весит больше всего
const (
	scoreHTFBias   = 40 // 15m тренд задает направление
	scoreTrend5m   = 30 // 5m подтверждает
	scoreMomentum  = 20 // 1m момент в ту же сторону
	scoreStructure = 10 // пробой локальной структуры
)

// Окно поиска свингов на 5m для стопа и проверки пробоя
const swingLookback = 10

// MTFClassifier - локальный multi-timeframe анализ без внешних вызовов
//
// Запасной провайдер: работает когда OpenAI недоступен или выключен.
// Направление задает 15m EMA, подтверждения добавляют уверенность,
// стоп ставится за ближайший 5m свинг, цель - 2R
type MTFClassifier struct{}

// NewMTFClassifier создает локальный классификатор
func NewMTFClassifier() *MTFClassifier {
	return &MTFClassifier{}
}

// Classify оценивает конфлюэнс трех таймфреймов
func (m *MTFClassifier) Classify(_ context.Context, req Request) (*Result, error) {
	if len(req.Candles15m) < emaPeriod15m || len(req.Candles5m) < emaPeriod5m || len(req.Candles1m) < emaPeriod1m {
		return &Result{
			Direction: models.DirectionNoTrade,
			HTFBias:   models.BiasNeutral,
			Rationale: "insufficient candle history for multi-timeframe analysis",
		}, nil
	}

	bias := htfBias(req.Candles15m)
	if bias == models.BiasNeutral {
		return &Result{
			Direction: models.DirectionNoTrade,
			HTFBias:   models.BiasNeutral,
			Rationale: "15m trend is flat, no directional edge",
		}, nil
	}

	var direction models.Direction
	if bias == models.BiasBullish {
		direction = models.DirectionLong
	} else {
		direction = models.DirectionShort
	}

	confidence := scoreHTFBias
	rationale := "15m trend aligned"

	if trendAgrees(req.Candles5m, emaPeriod5m, direction) {
		confidence += scoreTrend5m
		rationale += ", 5m confirms"
	}
	if momentumAgrees(req.Candles1m, direction) {
		confidence += scoreMomentum
		rationale += ", 1m momentum"
	}
	if structureBreak(req.Candles1m, req.Candles5m, direction) {
		confidence += scoreStructure
		rationale += ", structure break"
	}

	entry := req.CurrentPrice
	stop := swingStop(req.Candles5m, direction)

	// Стоп по ту же сторону от входа что и вход - сетапа нет
	if direction == models.DirectionLong && stop >= entry {
		return &Result{Direction: models.DirectionNoTrade, HTFBias: bias, Rationale: "no valid swing low below price"}, nil
	}
	if direction == models.DirectionShort && stop <= entry {
		return &Result{Direction: models.DirectionNoTrade, HTFBias: bias, Rationale: "no valid swing high above price"}, nil
	}

	// Цель - 2R от входа, выровненная на шаг цены инструмента
	risk := entry - stop
	target := utils.RoundToTick(entry+2*risk, models.TickSize(req.Ticker))

	return &Result{
		Direction:  direction,
		Confidence: confidence,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		HTFBias:    bias,
		EntryType:  models.EntryTypeMTFConfluence,
		Rationale:  rationale,
	}, nil
}

// htfBias определяет направление 15m тренда: цена относительно EMA20
// плюс наклон самой EMA. Расхождение цены и наклона - нейтрально
func htfBias(candles []models.Candle) models.HTFBias {
	closes := closePrices(candles)
	ema := talib.Ema(closes, emaPeriod15m)

	last := len(ema) - 1
	price := closes[last]
	rising := ema[last] > ema[last-1]

	switch {
	case price > ema[last] && rising:
		return models.BiasBullish
	case price < ema[last] && !rising:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}

// trendAgrees проверяет что цена на таймфрейме по нужную сторону EMA
func trendAgrees(candles []models.Candle, period int, direction models.Direction) bool {
	closes := closePrices(candles)
	ema := talib.Ema(closes, period)

	last := len(ema) - 1
	if direction == models.DirectionLong {
		return closes[last] > ema[last]
	}
	return closes[last] < ema[last]
}

// momentumAgrees требует чтобы последние три минутки шли в сторону
// сделки и цена была по нужную сторону 1m EMA9
func momentumAgrees(candles []models.Candle, direction models.Direction) bool {
	if len(candles) < 3 {
		return false
	}

	closes := closePrices(candles)
	ema := talib.Ema(closes, emaPeriod1m)
	last := len(candles) - 1

	aligned := 0
	for i := last - 2; i <= last; i++ {
		if direction == models.DirectionLong && candles[i].Bullish() {
			aligned++
		}
		if direction == models.DirectionShort && candles[i].Bearish() {
			aligned++
		}
	}
	if aligned < 2 {
		return false
	}

	if direction == models.DirectionLong {
		return closes[last] > ema[last]
	}
	return closes[last] < ema[last]
}

// structureBreak проверяет пробой локального 5m экстремума последней минуткой
func structureBreak(candles1m, candles5m []models.Candle, direction models.Direction) bool {
	if len(candles1m) == 0 {
		return false
	}

	lastClose := candles1m[len(candles1m)-1].Close
	high, low := swingPoints(candles5m)

	if direction == models.DirectionLong {
		return lastClose > high
	}
	return lastClose < low
}

// swingStop возвращает уровень стопа за ближайшим 5m свингом
func swingStop(candles []models.Candle, direction models.Direction) float64 {
	high, low := swingPoints(candles)
	if direction == models.DirectionLong {
		return low
	}
	return high
}

// swingPoints ищет максимум и минимум последних swingLookback 5m свечей,
// не считая самой последней (она еще формирует структуру)
func swingPoints(candles []models.Candle) (high, low float64) {
	end := len(candles) - 1
	start := end - swingLookback
	if start < 0 {
		start = 0
	}

	window := candles[start:end]
	if len(window) == 0 {
		window = candles
	}

	high = window[0].High
	low = window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

func closePrices(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
