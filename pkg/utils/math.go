package utils

import (
	"math"
)

// math.go - математические утилиты для расчета сделок
//
// Назначение:
// Вспомогательные функции для расчета риска, P&L и тиков.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RiskReward: отношение потенциальной прибыли к риску
// - PriceToTicks: перевод ценового расстояния в тики
// - TicksToDollars: перевод тиков в доллары по стоимости тика
// - RoundToTick: округление цены до шага инструмента

// RiskReward возвращает отношение reward/risk для уровней сделки.
//
// Параметры:
//   - entry: цена входа
//   - stop: цена стопа
//   - target: цена цели
//
// Возвращает:
//   - reward / risk, где risk = |entry-stop|, reward = |target-entry|
//   - 0 если risk == 0 (некорректные уровни)
//
// Примеры:
//   - RiskReward(21450.25, 21445.00, 21460.75) = 2.0
//   - RiskReward(100, 99, 101.5) = 1.5
func RiskReward(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// PriceToTicks переводит ценовое расстояние в количество тиков.
//
// Знак сохраняется: отрицательное расстояние дает отрицательные тики.
// Если tickSize <= 0, возвращает 0.
//
// Примеры:
//   - PriceToTicks(10.5, 0.25) = 42
//   - PriceToTicks(-5.25, 0.25) = -21
func PriceToTicks(distance, tickSize float64) float64 {
	if tickSize <= 0 {
		return 0
	}
	return distance / tickSize
}

// TicksToDollars переводит тики в доллары по стоимости тика инструмента
func TicksToDollars(ticks, tickValue float64) float64 {
	return ticks * tickValue
}

// RoundToTick округляет цену к ближайшему кратному tickSize.
//
// Если tickSize <= 0, возвращает исходное значение.
func RoundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// Round2 округляет до двух знаков после запятой (для снимков дашборда)
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SafePct возвращает part/total*100 или 0 при нулевом total
func SafePct(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
