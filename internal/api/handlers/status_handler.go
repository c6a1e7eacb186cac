package handlers

import (
	"net/http"

	"signaldesk/internal/service"
)

// StatusHandler отвечает за снимок состояния сервиса
//
// Endpoints:
// - GET /api/v1/status - счетчики свечей/webhook'ов/сделок,
//   состояние трекера и классификатора
type StatusHandler struct {
	statusService service.StatusServiceInterface
}

// NewStatusHandler создает новый StatusHandler с внедрением зависимости
func NewStatusHandler(statusService service.StatusServiceInterface) *StatusHandler {
	return &StatusHandler{statusService: statusService}
}

// GetStatus возвращает снимок состояния
//
// GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.statusService.Snapshot()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build status snapshot: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}
