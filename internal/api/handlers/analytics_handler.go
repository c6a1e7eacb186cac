package handlers

import (
	"net/http"

	"signaldesk/internal/service"
)

// AnalyticsHandler отвечает за аналитику журнала сделок
//
// Endpoints:
// - GET /api/v1/analytics - полный снимок для дашборда
// - GET /api/v1/analytics/performance - сводка win rate / P&L
// - GET /api/v1/analytics/streaks - серии побед/поражений
// - GET /api/v1/analytics/confidence - разбивка по уверенности
// - GET /api/v1/analytics/tickers - разбивка по инструментам
// - GET /api/v1/analytics/direction - long vs short
// - GET /api/v1/analytics/hourly - разбивка по часам (UTC)
// - GET /api/v1/analytics/weekday - разбивка по дням недели
// - GET /api/v1/analytics/daily - дневные точки для графика
//
// Все выборки считаются заново из журнала при каждом запросе;
// дашборд персональный, объем данных и частота запросов малы.
type AnalyticsHandler struct {
	analyticsService service.AnalyticsServiceInterface
}

// NewAnalyticsHandler создает новый AnalyticsHandler с внедрением зависимости
func NewAnalyticsHandler(analyticsService service.AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetFull возвращает полный аналитический снимок
// GET /api/v1/analytics
func (h *AnalyticsHandler) GetFull(w http.ResponseWriter, r *http.Request) {
	full, err := h.analyticsService.Full()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build analytics: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, full)
}

// GetPerformance возвращает сводку производительности
// GET /api/v1/analytics/performance
func (h *AnalyticsHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analyticsService.Performance()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get performance: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// GetStreaks возвращает серии побед и поражений
// GET /api/v1/analytics/streaks
func (h *AnalyticsHandler) GetStreaks(w http.ResponseWriter, r *http.Request) {
	streaks, err := h.analyticsService.Streaks()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get streaks: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, streaks)
}

// GetConfidence возвращает разбивку по диапазонам уверенности
// GET /api/v1/analytics/confidence
func (h *AnalyticsHandler) GetConfidence(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.analyticsService.ConfidenceBuckets()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get confidence buckets: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, buckets)
}

// GetTickers возвращает разбивку по инструментам
// GET /api/v1/analytics/tickers
func (h *AnalyticsHandler) GetTickers(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.analyticsService.Tickers()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get ticker breakdown: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, breakdown)
}

// GetDirection возвращает разбивку long vs short
// GET /api/v1/analytics/direction
func (h *AnalyticsHandler) GetDirection(w http.ResponseWriter, r *http.Request) {
	split, err := h.analyticsService.Direction()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get direction split: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, split)
}

// GetHourly возвращает разбивку по часам открытия (UTC)
// GET /api/v1/analytics/hourly
func (h *AnalyticsHandler) GetHourly(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.analyticsService.Hourly()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get hourly breakdown: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, buckets)
}

// GetWeekday возвращает разбивку по дням недели
// GET /api/v1/analytics/weekday
func (h *AnalyticsHandler) GetWeekday(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.analyticsService.Weekday()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get weekday breakdown: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, buckets)
}

// GetDaily возвращает дневные точки для графика cumulative P&L
//
// GET /api/v1/analytics/daily?days=30
//
// Query параметры:
// - days (int): глубина истории в днях (по умолчанию 30)
func (h *AnalyticsHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	days := parseQueryInt(r, "days", 30)

	points, err := h.analyticsService.Daily(days)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get daily points: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, points)
}
