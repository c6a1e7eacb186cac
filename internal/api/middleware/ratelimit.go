package middleware

import (
	"net/http"

	"signaldesk/pkg/ratelimit"
)

// RateLimit - ограничение частоты запросов по категории маршрутов
//
// Назначение:
// У дашборда две категории нагрузки с разными лимитами:
// - "webhook": TradingView шлет алерты пачками при закрытии минутной
//   свечи, burst должен покрывать количество отслеживаемых тикеров
// - "api": запросы из браузера, редкие
//
// Превышение лимита отклоняется сразу (429), без ожидания:
// отложенная минутная свеча бесполезна, а браузер повторит запрос сам.
func RateLimit(limiter *ratelimit.RouteLimiter, category string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(category) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
