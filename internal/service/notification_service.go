package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// NotificationService предоставляет бизнес-логику для управления уведомлениями.
//
// Отвечает за:
// - Создание уведомлений о событиях сканера
// - Получение журнала уведомлений для дашборда
// - Broadcast уведомлений через WebSocket
// - Best-effort отправку email (ошибки логируются, не фатальны)
//
// Типы уведомлений:
// - SIGNAL: новый валидный сигнал
// - TRADE_RESOLVED: сделка закрыта (win/loss/expired)
// - APEX_ALERT: предупреждение/блокировка правил Apex
// - CLASSIFIER_ERROR: ошибка внешнего классификатора
// - TUNING: рекомендация по настройкам
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	hub              Broadcaster
	email            EmailSender
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(notificationRepo NotificationRepositoryInterface) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
	}
}

// SetBroadcaster устанавливает WebSocket hub для broadcast уведомлений.
//
// Вызывается после инициализации Hub в main.go:
//
//	notifService := service.NewNotificationService(notifRepo)
//	notifService.SetBroadcaster(wsHub)
func (s *NotificationService) SetBroadcaster(hub Broadcaster) {
	s.hub = hub
}

// SetEmailSender устанавливает отправителя email.
// Если не установлен, уведомления остаются только в журнале и WS.
func (s *NotificationService) SetEmailSender(sender EmailSender) {
	s.email = sender
}

// Create сохраняет уведомление и рассылает его подписчикам.
//
// Порядок: БД -> WebSocket -> email. Ошибка БД прерывает обработку,
// email отправляется в фоне и никогда не блокирует вызывающего.
func (s *NotificationService) Create(notif *models.Notification) error {
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}

	if err := s.notificationRepo.Create(notif); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if s.hub != nil {
		s.hub.BroadcastNotification(notif)
	}

	// Email только для warn/error: info-события слишком частые
	if s.email != nil && notif.Severity != models.SeverityInfo {
		go func(n models.Notification) {
			subject := fmt.Sprintf("[signaldesk] %s", n.Type)
			if err := s.email.Send(subject, n.Message); err != nil {
				utils.L().Warn("Email notification failed",
					zap.String("type", n.Type),
					zap.Error(err))
			}
		}(*notif)
	}

	return nil
}

// GetNotifications возвращает последние уведомления (новые сверху).
//
// Лимит по умолчанию 50, максимум 500.
func (s *NotificationService) GetNotifications(limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.notificationRepo.GetRecent(limit)
}

// Clear очищает журнал уведомлений.
func (s *NotificationService) Clear() error {
	return s.notificationRepo.DeleteAll()
}

// CleanupOlderThan удаляет уведомления старше заданного возраста.
// Возвращает количество удаленных записей.
func (s *NotificationService) CleanupOlderThan(maxAge time.Duration) (int64, error) {
	return s.notificationRepo.DeleteOlderThan(time.Now().Add(-maxAge))
}

// NotifySignal создает уведомление о новом валидном сигнале.
func (s *NotificationService) NotifySignal(signal *models.Signal) error {
	return s.Create(&models.Notification{
		Type:     models.NotificationTypeSignal,
		Severity: models.SeverityInfo,
		Message: fmt.Sprintf("%s %s @ %.2f (confidence %d%%)",
			signal.Ticker, signal.Direction, signal.Entry, signal.Confidence),
		Meta: map[string]interface{}{
			"ticker":     signal.Ticker,
			"direction":  string(signal.Direction),
			"confidence": signal.Confidence,
			"entry":      signal.Entry,
			"stop":       signal.Stop,
			"target":     signal.Target,
		},
	})
}

// NotifyTradeResolved создает уведомление о закрытии сделки.
func (s *NotificationService) NotifyTradeResolved(trade *models.Trade) error {
	severity := models.SeverityInfo
	if trade.Outcome == models.OutcomeLoss {
		severity = models.SeverityWarn
	}

	var pnl float64
	if trade.PnlTicks != nil {
		pnl = *trade.PnlTicks
	}

	return s.Create(&models.Notification{
		Type:     models.NotificationTypeTradeResolved,
		Severity: severity,
		TradeID:  &trade.ID,
		Message: fmt.Sprintf("%s %s resolved %s (%.1f ticks)",
			trade.Ticker, trade.Direction, trade.Outcome, pnl),
		Meta: map[string]interface{}{
			"ticker":    trade.Ticker,
			"outcome":   string(trade.Outcome),
			"pnl_ticks": pnl,
		},
	})
}

// NotifyApexAlert создает уведомление о срабатывании правила Apex.
func (s *NotificationService) NotifyApexAlert(alert *models.ApexAlert) error {
	return s.Create(&models.Notification{
		Type:     models.NotificationTypeApexAlert,
		Severity: alert.Severity,
		Message:  alert.Message,
		Meta: map[string]interface{}{
			"rule":       alert.Type,
			"value":      alert.Value,
			"limit":      alert.Limit,
			"percentage": alert.Percentage,
			"status":     string(alert.Status),
		},
	})
}

// NotifyClassifierError создает уведомление об ошибке классификатора.
func (s *NotificationService) NotifyClassifierError(ticker string, cause error) error {
	return s.Create(&models.Notification{
		Type:     models.NotificationTypeClassifierError,
		Severity: models.SeverityError,
		Message:  fmt.Sprintf("%s: classifier failed: %v", ticker, cause),
		Meta: map[string]interface{}{
			"ticker": ticker,
		},
	})
}

// NotifyTuning создает уведомление с рекомендацией по настройкам.
func (s *NotificationService) NotifyTuning(message string, meta map[string]interface{}) error {
	return s.Create(&models.Notification{
		Type:     models.NotificationTypeTuning,
		Severity: models.SeverityInfo,
		Message:  message,
		Meta:     meta,
	})
}
