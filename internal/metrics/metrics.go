package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики приложения для /metrics (Prometheus)

var (
	// WebhooksReceived - входящие webhook'и по типу полезной нагрузки
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "webhooks_received_total",
		Help:      "Incoming TradingView webhooks by payload kind and ticker",
	}, []string{"kind", "ticker"})

	// WebhooksRejected - отклоненные webhook'и по причине
	WebhooksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "webhooks_rejected_total",
		Help:      "Rejected webhooks by reason (auth, rate_limit, payload)",
	}, []string{"reason"})

	// SignalsEvaluated - оцененные сигналы по результату фильтров
	SignalsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "signals_evaluated_total",
		Help:      "Evaluated signals by verdict (accepted, rejected, no_trade)",
	}, []string{"verdict", "ticker"})

	// ClassifierLatency - длительность вызова классификатора
	ClassifierLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signaldesk",
		Name:      "classifier_latency_seconds",
		Help:      "Classifier call duration by provider",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"provider"})

	// ClassifierErrors - ошибки классификатора
	ClassifierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "classifier_errors_total",
		Help:      "Classifier failures by provider",
	}, []string{"provider"})

	// TradesResolved - разрешенные сделки по исходу
	TradesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "trades_resolved_total",
		Help:      "Resolved trades by outcome (win, loss, expired)",
	}, []string{"outcome", "ticker"})

	// PendingTrades - количество неразрешенных сделок
	PendingTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaldesk",
		Name:      "pending_trades",
		Help:      "Number of trades awaiting resolution",
	})

	// ApexAlerts - срабатывания правил Apex
	ApexAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "apex_alerts_total",
		Help:      "Apex rule alerts by rule and level (warning, blocked)",
	}, []string{"rule", "level"})

	// CandlesIngested - принятые свечи по таймфрейму
	CandlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaldesk",
		Name:      "candles_ingested_total",
		Help:      "Candles accepted into the store by timeframe",
	}, []string{"timeframe", "ticker"})

	// WSClients - подключенные WebSocket клиенты
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaldesk",
		Name:      "websocket_clients",
		Help:      "Connected dashboard WebSocket clients",
	})
)
