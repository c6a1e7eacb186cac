package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"signaldesk/internal/candles"
	"signaldesk/internal/metrics"
	"signaldesk/internal/models"
	"signaldesk/internal/service"
	"signaldesk/pkg/utils"
)

// CandleSink - хранилище свечей с точки зрения webhook-приемника
type CandleSink interface {
	Add(c models.Candle) (candles.AddResult, error)
	Ready(ticker string) bool
}

// CandleBroadcaster - отправка принятой свечи на дашборд
type CandleBroadcaster interface {
	BroadcastCandle(candle *models.Candle)
}

// WebhookHandler принимает свечи от TradingView
//
// Endpoints:
// - POST /webhook - одна закрытая свеча в JSON
//
// Назначение:
// Горячий путь дашборда: TradingView шлет alert на закрытии каждой
// минутной свечи отслеживаемых тикеров. Свеча кладется в хранилище,
// и если у тикера накоплена готовая история, минутная свеча
// асинхронно запускает оценку сигнала.
//
// Счетчики принятых/отклоненных webhook'ов живут в явном объекте
// RuntimeCounters (создается в main), а не в глобальных переменных.
type WebhookHandler struct {
	store     CandleSink
	evaluator service.EvaluatorServiceInterface
	counters  *service.RuntimeCounters
	hub       CandleBroadcaster

	// evalTimeout ограничивает фоновую оценку (вызов классификатора)
	evalTimeout time.Duration
}

// NewWebhookHandler создает новый WebhookHandler
func NewWebhookHandler(
	store CandleSink,
	evaluator service.EvaluatorServiceInterface,
	counters *service.RuntimeCounters,
	evalTimeout time.Duration,
) *WebhookHandler {
	if evalTimeout <= 0 {
		evalTimeout = 60 * time.Second
	}
	return &WebhookHandler{
		store:       store,
		evaluator:   evaluator,
		counters:    counters,
		evalTimeout: evalTimeout,
	}
}

// SetBroadcaster подключает WebSocket hub для трансляции свечей
func (h *WebhookHandler) SetBroadcaster(hub CandleBroadcaster) {
	h.hub = hub
}

// CandlePayload - свеча из alert-сообщения TradingView
//
// Время приходит строкой: либо ISO ({{time}} в шаблоне алерта),
// либо unix-секунды ({{timenow}} у некоторых шаблонов)
type CandlePayload struct {
	Ticker    string  `json:"ticker"`
	Timeframe string  `json:"timeframe,omitempty"` // по умолчанию 1m
	Time      string  `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume,omitempty"`
}

// WebhookResponse - ответ на принятую свечу
type WebhookResponse struct {
	Status      string `json:"status"`
	Ticker      string `json:"ticker"`
	BecameReady bool   `json:"became_ready,omitempty"`
}

// ReceiveCandle принимает одну свечу
//
// POST /webhook
//
// HTTP коды:
// - 200 OK: свеча принята
// - 400 Bad Request: не-JSON тело, неизвестный таймфрейм, пустой
//   тикер, нечитаемое время или некорректный OHLC
func (h *WebhookHandler) ReceiveCandle(w http.ResponseWriter, r *http.Request) {
	h.counters.WebhooksReceived.Add(1)

	var payload CandlePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.reject(w, "payload", "Invalid JSON body: "+err.Error())
		return
	}

	metrics.WebhooksReceived.WithLabelValues("candle", models.NormalizeTicker(payload.Ticker)).Inc()

	candle, err := payload.toCandle()
	if err != nil {
		h.reject(w, "payload", err.Error())
		return
	}

	res, err := h.store.Add(candle)
	if err != nil {
		h.reject(w, "payload", err.Error())
		return
	}

	metrics.CandlesIngested.WithLabelValues(string(candle.Timeframe), candle.Ticker).Inc()

	if h.hub != nil {
		h.hub.BroadcastCandle(&candle)
		for i := range res.Aggregated {
			h.hub.BroadcastCandle(&res.Aggregated[i])
		}
	}

	if res.BecameReady {
		utils.L().Info("Ticker ready for evaluation",
			zap.String("ticker", candle.Ticker))
	}

	// Закрытая минутка готового тикера - триггер оценки.
	// Оценка асинхронная: webhook отвечает сразу, TradingView
	// не ждет классификатор
	if candle.Timeframe == models.Timeframe1m && h.store.Ready(candle.Ticker) {
		go h.evaluate(candle.Ticker)
	}

	respondWithJSON(w, http.StatusOK, WebhookResponse{
		Status:      "ok",
		Ticker:      candle.Ticker,
		BecameReady: res.BecameReady,
	})
}

// evaluate выполняет фоновую оценку тикера с ограничением по времени
func (h *WebhookHandler) evaluate(ticker string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.evalTimeout)
	defer cancel()

	if _, err := h.evaluator.Evaluate(ctx, ticker); err != nil {
		// Без retry: следующая минутка принесет свежие данные
		utils.L().Warn("Evaluation failed",
			zap.String("ticker", ticker),
			zap.Error(err))
		return
	}
	h.counters.SignalsEvaluated.Add(1)
}

// reject отклоняет webhook с учетом в счетчиках и метриках
func (h *WebhookHandler) reject(w http.ResponseWriter, reason, message string) {
	h.counters.WebhooksRejected.Add(1)
	metrics.WebhooksRejected.WithLabelValues(reason).Inc()
	respondWithError(w, http.StatusBadRequest, message)
}

// toCandle валидирует payload и превращает его в модель свечи
func (p CandlePayload) toCandle() (models.Candle, error) {
	tf := models.Timeframe(p.Timeframe)
	if p.Timeframe == "" {
		tf = models.Timeframe1m
	}

	openTime, err := parseCandleTime(p.Time)
	if err != nil {
		return models.Candle{}, err
	}

	c := models.Candle{
		Ticker:    p.Ticker,
		Timeframe: tf,
		OpenTime:  openTime,
		Open:      p.Open,
		High:      p.High,
		Low:       p.Low,
		Close:     p.Close,
		Volume:    p.Volume,
	}

	if c.High < c.Low || c.Open <= 0 || c.Close <= 0 {
		return models.Candle{}, errInvalidOHLC
	}
	return c, nil
}

var errInvalidOHLC = &payloadError{"invalid OHLC values"}

type payloadError struct{ msg string }

func (e *payloadError) Error() string { return e.msg }

// parseCandleTime разбирает время свечи: RFC3339 или unix-секунды
func parseCandleTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &payloadError{"candle time is required"}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Truncate(time.Minute), nil
	}
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC().Truncate(time.Minute), nil
	}
	return time.Time{}, &payloadError{"unparseable candle time: " + raw}
}
