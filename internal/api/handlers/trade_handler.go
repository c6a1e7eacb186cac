package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"signaldesk/internal/models"
	"signaldesk/internal/repository"
	"signaldesk/internal/service"
)

// TradeHandler отвечает за журнал гипотетических сделок
//
// Endpoints:
// - GET /api/v1/trades - страница журнала (новые сверху)
// - GET /api/v1/trades/{id} - одна сделка
// - DELETE /api/v1/trades/{id} - удаление pending сделки
// - POST /api/v1/trades/{id}/resolve - ручная фиксация исхода
//
// Ручная фиксация проходит через тот же service.Resolve, что и
// автоматический трекер: побочные эффекты (Apex, уведомления,
// WebSocket) не дублируются, повторная фиксация отклоняется.
type TradeHandler struct {
	tradeService service.TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимости
func NewTradeHandler(tradeService service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// GetTradesResponse представляет страницу журнала сделок
type GetTradesResponse struct {
	Trades []*models.Trade `json:"trades"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// GetTrades возвращает страницу журнала сделок
//
// GET /api/v1/trades?limit=50&offset=0
//
// Query параметры:
// - limit (int): размер страницы (по умолчанию 50, максимум 500)
// - offset (int): смещение от начала (новые сверху)
//
// HTTP коды:
// - 200 OK: страница сделок
// - 500 Internal Server Error: ошибка чтения журнала
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)

	trades, err := h.tradeService.GetTrades(limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trades: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetTradesResponse{
		Trades: trades,
		Limit:  limit,
		Offset: offset,
	})
}

// GetTrade возвращает одну сделку по id
//
// GET /api/v1/trades/{id}
//
// HTTP коды:
// - 200 OK: сделка
// - 400 Bad Request: нечисловой id
// - 404 Not Found: сделки нет
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTradeID(w, r)
	if !ok {
		return
	}

	trade, err := h.tradeService.GetTrade(id)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			respondWithError(w, http.StatusNotFound, "Trade not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get trade: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, trade)
}

// DeleteTrade удаляет сделку из журнала
//
// DELETE /api/v1/trades/{id}
//
// Удаление разрешено только для pending сделок (пользователь
// отклонил сделку до исхода). Разрешенные сделки - часть
// торговой истории и не удаляются.
//
// HTTP коды:
// - 200 OK: сделка удалена
// - 400 Bad Request: нечисловой id
// - 404 Not Found: сделки нет
// - 409 Conflict: сделка уже разрешена
func (h *TradeHandler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTradeID(w, r)
	if !ok {
		return
	}

	if err := h.tradeService.Delete(id); err != nil {
		switch {
		case errors.Is(err, repository.ErrTradeNotFound):
			respondWithError(w, http.StatusNotFound, "Trade not found")
		case errors.Is(err, repository.ErrTradeNotPending):
			respondWithError(w, http.StatusConflict, "Only pending trades can be deleted")
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to delete trade: "+err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Trade deleted"})
}

// ResolveTradeRequest - тело ручной фиксации исхода
type ResolveTradeRequest struct {
	Outcome string `json:"outcome"` // win, loss, expired

	// Price - последняя наблюдаемая цена; используется только
	// для expired (win/loss фиксируются по target/stop)
	Price float64 `json:"price,omitempty"`
}

// ResolveTrade фиксирует исход сделки вручную
//
// POST /api/v1/trades/{id}/resolve
//
// Body: {"outcome": "win" | "loss" | "expired", "price": 21450.25}
//
// Исход нормализуется на границе API ('WIN' и 'win' эквивалентны).
// P&L выводится из исхода, для expired - по переданной цене
// (не ноль). Повторная фиксация отклоняется: первый писатель
// выигрывает.
//
// HTTP коды:
// - 200 OK: сделка с заполненными полями исхода
// - 400 Bad Request: нечисловой id, неизвестный исход, expired без цены
// - 404 Not Found: сделки нет
// - 409 Conflict: сделка уже разрешена
func (h *TradeHandler) ResolveTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTradeID(w, r)
	if !ok {
		return
	}

	var req ResolveTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	outcome, valid := models.NormalizeOutcome(req.Outcome)
	if !valid || !outcome.Terminal() {
		respondWithError(w, http.StatusBadRequest, "Outcome must be one of: win, loss, expired")
		return
	}
	// expired фиксируется по последней наблюдаемой цене, нулевая цена
	// дала бы P&L в размере всей цены входа
	if outcome == models.OutcomeExpired && req.Price <= 0 {
		respondWithError(w, http.StatusBadRequest, "Expired outcome requires a positive price")
		return
	}

	trade, err := h.tradeService.Resolve(id, outcome, req.Price, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTradeNotFound):
			respondWithError(w, http.StatusNotFound, "Trade not found")
		case errors.Is(err, repository.ErrTradeAlreadyResolved):
			respondWithError(w, http.StatusConflict, "Trade is already resolved")
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to resolve trade: "+err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, trade)
}

// parseTradeID извлекает числовой id из пути, при ошибке отвечает 400
func parseTradeID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid trade id")
		return 0, false
	}
	return id, true
}

// parseQueryInt читает неотрицательный int из query параметра
func parseQueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
