package handlers

import (
	"net/http"

	"signaldesk/internal/models"
	"signaldesk/internal/service"
)

// NotificationHandler отвечает за журнал уведомлений
//
// Endpoints:
// - GET /api/v1/notifications - последние уведомления
// - DELETE /api/v1/notifications - очистка журнала
//
// Типы уведомлений:
// - SIGNAL: новый валидный сигнал
// - TRADE_RESOLVED: сделка закрыта (win/loss/expired)
// - APEX_ALERT: предупреждение/блокировка правил Apex
// - CLASSIFIER_ERROR: ошибка внешнего классификатора
// - TUNING: рекомендация или применение настроек
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int                    `json:"total"`
}

// GetNotifications возвращает последние уведомления
//
// GET /api/v1/notifications?limit=50
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 50)
//
// HTTP коды:
// - 200 OK: массив уведомлений (новые сверху)
// - 500 Internal Server Error: ошибка чтения журнала
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)

	notifications, err := h.notificationService.GetNotifications(limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

// ClearNotifications очищает журнал уведомлений
//
// DELETE /api/v1/notifications
//
// Удаляет все уведомления. Действие необратимо.
//
// HTTP коды:
// - 200 OK: журнал очищен
// - 500 Internal Server Error: ошибка при очистке
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.Clear(); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to clear notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Notifications cleared"})
}
