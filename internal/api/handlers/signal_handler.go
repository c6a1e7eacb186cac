package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"signaldesk/internal/service"
)

// SignalHandler отвечает за сигналы классификатора
//
// Endpoints:
// - GET /api/v1/signals - последние сигналы (валидные и отклоненные)
// - POST /api/v1/scan/{ticker} - ручной запуск оценки тикера
type SignalHandler struct {
	evaluator service.EvaluatorServiceInterface
	counters  *service.RuntimeCounters
}

// NewSignalHandler создает новый SignalHandler с внедрением зависимости
func NewSignalHandler(evaluator service.EvaluatorServiceInterface, counters *service.RuntimeCounters) *SignalHandler {
	return &SignalHandler{
		evaluator: evaluator,
		counters:  counters,
	}
}

// GetSignals возвращает последние сигналы
//
// GET /api/v1/signals?limit=50
//
// Отклоненные сигналы возвращаются вместе с валидными: причины
// отказа фильтров видны на дашборде.
//
// HTTP коды:
// - 200 OK: массив сигналов (новые сверху)
// - 500 Internal Server Error: ошибка чтения журнала
func (h *SignalHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	signals, err := h.evaluator.GetRecentSignals(limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get signals: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"total":   len(signals),
	})
}

// ScanTicker запускает оценку тикера вручную
//
// POST /api/v1/scan/{ticker}
//
// Синхронный вызов: дашборд ждет вердикт классификатора.
// Ошибка классификатора не ретраится.
//
// HTTP коды:
// - 200 OK: сигнал записан (возможно отклоненный фильтрами)
// - 409 Conflict: у тикера еще не накоплена готовая история свечей
// - 502 Bad Gateway: внешний классификатор недоступен
func (h *SignalHandler) ScanTicker(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	signal, err := h.evaluator.Evaluate(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, service.ErrTickerNotReady) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		respondWithError(w, http.StatusBadGateway, "Evaluation failed: "+err.Error())
		return
	}

	h.counters.SignalsEvaluated.Add(1)
	respondWithJSON(w, http.StatusOK, signal)
}
