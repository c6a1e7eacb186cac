package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"signaldesk/internal/models"
)

// NotificationRepository - работа с таблицей notifications
//
// Назначение: Data Access Layer для ленты событий дашборда
//
// Типы уведомлений:
// - SIGNAL, TRADE_RESOLVED, APEX_ALERT, CLASSIFIER_ERROR, TUNING
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create записывает новое уведомление
func (r *NotificationRepository) Create(n *models.Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	metaJSON, err := json.Marshal(n.Meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (timestamp, type, severity, trade_id, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(query,
		n.Timestamp,
		n.Type,
		n.Severity,
		n.TradeID,
		n.Message,
		metaJSON,
	).Scan(&n.ID)
}

// GetRecent возвращает последние уведомления (новые первыми)
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, type, severity, trade_id, message, meta
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var metaJSON []byte
		err := rows.Scan(
			&n.ID,
			&n.Timestamp,
			&n.Type,
			&n.Severity,
			&n.TradeID,
			&n.Message,
			&metaJSON,
		)
		if err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &n.Meta); err != nil {
				return nil, err
			}
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// DeleteOlderThan удаляет уведомления старше указанного времени
//
// Автоочистка: лента событий не нужна дольше пары недель
func (r *NotificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteAll очищает ленту уведомлений
func (r *NotificationRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM notifications`)
	return err
}
