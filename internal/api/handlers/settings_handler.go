package handlers

import (
	"net/http"

	"signaldesk/internal/service"
)

// SettingsHandler отвечает за настройки сканера сигналов
//
// Endpoints:
// - GET /api/v1/settings - текущие настройки
// - PATCH /api/v1/settings - частичное обновление
//
// Назначение:
// Управление фильтрами качества (порог уверенности, минимальное R:R,
// допустимый дрейф цены, momentum-фильтр), списком тикеров и
// максимальным возрастом pending сделок.
type SettingsHandler struct {
	settingsService service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler с внедрением зависимости
func NewSettingsHandler(settingsService service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings возвращает текущие настройки
//
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get settings: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings частично обновляет настройки
//
// PATCH /api/v1/settings
//
// Body: только изменяемые поля, например {"min_confidence": 75}
//
// Объединенная конфигурация валидируется целиком: при любой ошибке
// диапазона обновление отклоняется и действующие настройки
// не меняются.
//
// HTTP коды:
// - 200 OK: обновленные настройки
// - 400 Bad Request: не-JSON тело или значения вне диапазонов
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(&req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}
