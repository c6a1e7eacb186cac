package handlers

import (
	"net/http"

	"signaldesk/internal/models"
	"signaldesk/internal/service"
)

// ApexHandler отвечает за состояние правил Apex Trader Funding
//
// Endpoints:
// - GET /api/v1/apex - полный снимок правил для дашборда
// - GET /api/v1/apex/check - можно ли сейчас открывать сделку
// - GET /api/v1/apex/config - конфигурация правил
// - PUT /api/v1/apex/config - обновление конфигурации
// - POST /api/v1/apex/reset - сброс истории дневного P&L
type ApexHandler struct {
	apexService service.ApexServiceInterface
}

// NewApexHandler создает новый ApexHandler с внедрением зависимости
func NewApexHandler(apexService service.ApexServiceInterface) *ApexHandler {
	return &ApexHandler{apexService: apexService}
}

// GetStatus возвращает полный снимок состояния правил
//
// GET /api/v1/apex
//
// Снимок пересчитывается из полной истории дневного P&L при
// каждом запросе: баланс, high-water mark, дневной убыток,
// trailing drawdown и consistency.
//
// HTTP коды:
// - 200 OK: снимок
// - 500 Internal Server Error: ошибка чтения состояния
func (h *ApexHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.apexService.Status()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get apex status: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// CheckResponse - ответ проверки блокировки торговли
type CheckResponse struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// Check сообщает, заблокирована ли торговля правилами
//
// GET /api/v1/apex/check
//
// Блокируют только дневной убыток и trailing drawdown;
// consistency - advisory и торговлю не останавливает.
func (h *ApexHandler) Check(w http.ResponseWriter, r *http.Request) {
	blocked, reason, err := h.apexService.ShouldBlock()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to check apex rules: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, CheckResponse{Blocked: blocked, Reason: reason})
}

// GetConfig возвращает конфигурацию правил
//
// GET /api/v1/apex/config
func (h *ApexHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.apexService.GetConfig()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get apex config: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

// UpdateConfig обновляет конфигурацию правил
//
// PUT /api/v1/apex/config
//
// Невалидная конфигурация (нулевые лимиты, перепутанные пороги)
// отклоняется целиком, предыдущая остается действующей.
//
// HTTP коды:
// - 200 OK: новая конфигурация
// - 400 Bad Request: не-JSON тело или невалидные значения
func (h *ApexHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.ApexConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	if err := h.apexService.UpdateConfig(&cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid apex config: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, cfg)
}

// ResetRequest - подтверждение сброса истории P&L
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// Reset сбрасывает историю дневного P&L
//
// POST /api/v1/apex/reset
//
// Body: {"confirm": true}
//
// Используется при старте нового evaluation-аккаунта. Действие
// необратимо, поэтому требует явного подтверждения в теле.
//
// HTTP коды:
// - 200 OK: история очищена
// - 400 Bad Request: подтверждение отсутствует
func (h *ApexHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	if err := h.apexService.Reset(req.Confirm); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Apex daily P&L history reset"})
}
