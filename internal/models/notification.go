package models

import "time"

// Notification представляет уведомление о событии для дашборда
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // SIGNAL, TRADE_RESOLVED, APEX_ALERT, CLASSIFIER_ERROR, TUNING
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	TradeID   *int                   `json:"trade_id,omitempty" db:"trade_id"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeSignal          = "SIGNAL"           // новый валидный сигнал
	NotificationTypeTradeResolved   = "TRADE_RESOLVED"   // сделка закрыта (win/loss/expired)
	NotificationTypeApexAlert       = "APEX_ALERT"       // предупреждение/блокировка правил Apex
	NotificationTypeClassifierError = "CLASSIFIER_ERROR" // ошибка внешнего классификатора
	NotificationTypeTuning          = "TUNING"           // рекомендация по настройкам
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
