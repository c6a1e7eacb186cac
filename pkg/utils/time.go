package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Вспомогательные функции для временных операций, используемые
// для агрегации дневной статистики и ключей дневного P&L.
//
// Функции:
// - DateKey: ключ календарного дня (YYYY-MM-DD)
// - GetDayStart / GetDayStartFrom: начало дня (00:00:00 UTC)
// - GetWeekStartFrom: начало недели (понедельник, ISO 8601)
// - AlignToWindow: выравнивание времени свечи к границе окна

// DateKeyLayout - формат ключа календарного дня в таблице дневного P&L
const DateKeyLayout = "2006-01-02"

// DateKey возвращает ключ календарного дня для указанного времени в UTC.
//
// Используется как ключ daily_pnl_by_date: только запись текущего дня
// изменяема в течение торгового дня.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStartFrom возвращает начало недели (понедельник 00:00:00 UTC)
// для указанного времени. Неделя начинается с понедельника (ISO 8601).
func GetWeekStartFrom(t time.Time) time.Time {
	t = GetDayStartFrom(t)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // воскресенье -> 7
	}
	return t.AddDate(0, 0, -(weekday - 1))
}

// AlignToWindow выравнивает время к началу окна заданной длины.
//
// Используется при агрегации 1m свечей в 5m/15m: окна фиксированные,
// непересекающиеся и выровнены по границам wall-clock.
//
// Пример:
//
//	AlignToWindow(12:37:00, 5*time.Minute) = 12:35:00
func AlignToWindow(t time.Time, window time.Duration) time.Time {
	return t.UTC().Truncate(window)
}
