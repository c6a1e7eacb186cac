package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signaldesk/internal/candles"
	"signaldesk/internal/models"
	"signaldesk/internal/service"
)

// ============ WebhookHandler Tests ============

func validCandleBody() string {
	return `{
		"ticker": "CME_MINI:MNQZ2025",
		"time": "2026-02-10T14:00:00Z",
		"open": 21450.0,
		"high": 21455.5,
		"low": 21448.25,
		"close": 21452.75,
		"volume": 1200
	}`
}

func postCandle(handler *WebhookHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ReceiveCandle(w, req)
	return w
}

func TestWebhookHandler_ReceiveCandle(t *testing.T) {
	t.Run("accepts valid candle and normalizes ticker", func(t *testing.T) {
		sink := NewMockCandleSink()
		evaluator := NewMockEvaluatorService()
		counters := service.NewRuntimeCounters()
		handler := NewWebhookHandler(sink, evaluator, counters, time.Second)

		w := postCandle(handler, validCandleBody())

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}

		if len(sink.Added) != 1 {
			t.Fatalf("expected 1 candle in store, got %d", len(sink.Added))
		}

		candle := sink.Added[0]
		if candle.Ticker != "MNQ" {
			t.Errorf("expected normalized ticker MNQ, got %s", candle.Ticker)
		}
		if candle.Timeframe != models.Timeframe1m {
			t.Errorf("expected default timeframe 1m, got %s", candle.Timeframe)
		}
		if candle.Close != 21452.75 {
			t.Errorf("expected close 21452.75, got %.2f", candle.Close)
		}

		if got := counters.WebhooksReceived.Load(); got != 1 {
			t.Errorf("expected 1 webhook received, got %d", got)
		}
		if got := counters.WebhooksRejected.Load(); got != 0 {
			t.Errorf("expected 0 webhooks rejected, got %d", got)
		}
	})

	t.Run("accepts unix seconds as candle time", func(t *testing.T) {
		sink := NewMockCandleSink()
		handler := NewWebhookHandler(sink, NewMockEvaluatorService(), service.NewRuntimeCounters(), time.Second)

		body := `{"ticker":"MES","time":"1770732000","open":6400,"high":6402,"low":6399,"close":6401}`
		w := postCandle(handler, body)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		want := time.Unix(1770732000, 0).UTC().Truncate(time.Minute)
		if !sink.Added[0].OpenTime.Equal(want) {
			t.Errorf("expected open time %v, got %v", want, sink.Added[0].OpenTime)
		}
	})

	t.Run("reports became_ready", func(t *testing.T) {
		sink := NewMockCandleSink()
		sink.SetResult(candles.AddResult{BecameReady: true})
		handler := NewWebhookHandler(sink, NewMockEvaluatorService(), service.NewRuntimeCounters(), time.Second)

		w := postCandle(handler, validCandleBody())

		var resp WebhookResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.BecameReady {
			t.Error("expected became_ready true")
		}
	})

	t.Run("triggers evaluation for ready ticker", func(t *testing.T) {
		sink := NewMockCandleSink()
		sink.SetReady(true)
		evaluator := NewMockEvaluatorService()
		counters := service.NewRuntimeCounters()
		handler := NewWebhookHandler(sink, evaluator, counters, time.Second)

		w := postCandle(handler, validCandleBody())
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		// Оценка асинхронная - ждем с дедлайном
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if len(evaluator.EvaluatedTickers()) > 0 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}

		evaluated := evaluator.EvaluatedTickers()
		if len(evaluated) != 1 || evaluated[0] != "MNQ" {
			t.Fatalf("expected evaluation of MNQ, got %v", evaluated)
		}
	})

	t.Run("does not evaluate ticker that is not ready", func(t *testing.T) {
		sink := NewMockCandleSink()
		evaluator := NewMockEvaluatorService()
		handler := NewWebhookHandler(sink, evaluator, service.NewRuntimeCounters(), time.Second)

		postCandle(handler, validCandleBody())

		time.Sleep(20 * time.Millisecond)
		if len(evaluator.EvaluatedTickers()) != 0 {
			t.Errorf("expected no evaluations, got %v", evaluator.EvaluatedTickers())
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		counters := service.NewRuntimeCounters()
		handler := NewWebhookHandler(NewMockCandleSink(), NewMockEvaluatorService(), counters, time.Second)

		w := postCandle(handler, "{not json")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
		if got := counters.WebhooksRejected.Load(); got != 1 {
			t.Errorf("expected 1 webhook rejected, got %d", got)
		}
	})

	t.Run("rejects candle without time", func(t *testing.T) {
		handler := NewWebhookHandler(NewMockCandleSink(), NewMockEvaluatorService(), service.NewRuntimeCounters(), time.Second)

		body := `{"ticker":"MNQ","open":21450,"high":21455,"low":21448,"close":21452}`
		w := postCandle(handler, body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("rejects invalid OHLC", func(t *testing.T) {
		handler := NewWebhookHandler(NewMockCandleSink(), NewMockEvaluatorService(), service.NewRuntimeCounters(), time.Second)

		// high < low
		body := `{"ticker":"MNQ","time":"2026-02-10T14:00:00Z","open":21450,"high":21440,"low":21448,"close":21452}`
		w := postCandle(handler, body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("rejects unknown timeframe", func(t *testing.T) {
		sink := NewMockCandleSink()
		sink.SetAddError(candles.ErrUnknownTimeframe)
		counters := service.NewRuntimeCounters()
		handler := NewWebhookHandler(sink, NewMockEvaluatorService(), counters, time.Second)

		body := `{"ticker":"MNQ","timeframe":"4h","time":"2026-02-10T14:00:00Z","open":21450,"high":21455,"low":21448,"close":21452}`
		w := postCandle(handler, body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
		if got := counters.WebhooksRejected.Load(); got != 1 {
			t.Errorf("expected 1 webhook rejected, got %d", got)
		}
	})
}
