package handlers

import (
	"net/http"

	"signaldesk/internal/models"
	"signaldesk/internal/service"
)

// TuningHandler отвечает за самонастройку порога уверенности
// и правок промпта классификатора
//
// Endpoints:
// - GET /api/v1/tuning/analyze - прогон порогов по истории сделок
// - POST /api/v1/tuning/apply - применение рекомендованного порога
// - PUT /api/v1/tuning/prompt-rules - новая версия правок промпта
//
// Рекомендации advisory: ничего не применяется автоматически,
// пользователь подтверждает каждое изменение с дашборда.
type TuningHandler struct {
	analyticsService service.AnalyticsServiceInterface
	settingsService  service.SettingsServiceInterface
}

// NewTuningHandler создает новый TuningHandler с внедрением зависимостей
func NewTuningHandler(
	analyticsService service.AnalyticsServiceInterface,
	settingsService service.SettingsServiceInterface,
) *TuningHandler {
	return &TuningHandler{
		analyticsService: analyticsService,
		settingsService:  settingsService,
	}
}

// Analyze прогоняет пороги уверенности по истории сделок
//
// GET /api/v1/tuning/analyze
//
// Возвращает статистику по каждому порогу (50..95 с шагом 5) и
// рекомендацию, если более высокий порог дает строго лучшую
// ожидаемую прибыль на достаточной выборке.
func (h *TuningHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	report, err := h.analyticsService.AnalyzeConfidenceThresholds()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to analyze thresholds: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// ApplyThresholdRequest - применение порога уверенности
type ApplyThresholdRequest struct {
	Threshold int `json:"threshold"`
}

// ApplyThreshold применяет порог уверенности
//
// POST /api/v1/tuning/apply
//
// Body: {"threshold": 80}
//
// HTTP коды:
// - 200 OK: порог применен
// - 400 Bad Request: порог вне диапазона 0-100
func (h *TuningHandler) ApplyThreshold(w http.ResponseWriter, r *http.Request) {
	var req ApplyThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	if err := h.settingsService.ApplyConfidenceThreshold(req.Threshold); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Confidence threshold applied"})
}

// UpdatePromptRules сохраняет новую версию правок промпта
//
// PUT /api/v1/tuning/prompt-rules
//
// Body: {"emphasis_rules": [...], "caution_rules": [...], ...}
//
// Версия назначается сервером (монотонно растет), присланное
// клиентом поле version игнорируется.
//
// HTTP коды:
// - 200 OK: настройки с новой версией правок
// - 400 Bad Request: не-JSON тело
func (h *TuningHandler) UpdatePromptRules(w http.ResponseWriter, r *http.Request) {
	var rules models.PromptRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	settings, err := h.settingsService.UpdatePromptRules(rules)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to update prompt rules: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}
