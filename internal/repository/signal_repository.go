package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"signaldesk/internal/models"
)

// Ошибки репозитория сигналов
var (
	ErrSignalNotFound = errors.New("signal not found")
)

// SignalRepository - работа с таблицей signals
//
// Хранятся все оценённые сигналы, включая отбракованные фильтрами:
// статистика отказов нужна тюнингу порогов
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository создает новый экземпляр репозитория
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create записывает оценённый сигнал
func (r *SignalRepository) Create(signal *models.Signal) error {
	if signal.Timestamp.IsZero() {
		signal.Timestamp = time.Now()
	}

	query := `
		INSERT INTO signals (ticker, timestamp, direction, confidence, entry, stop, target,
		                     current_price, htf_bias, entry_type, rationale, valid, reject_reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	return r.db.QueryRow(query,
		signal.Ticker,
		signal.Timestamp,
		signal.Direction,
		signal.Confidence,
		signal.Entry,
		signal.Stop,
		signal.Target,
		signal.CurrentPrice,
		signal.HTFBias,
		signal.EntryType,
		signal.Rationale,
		signal.Valid,
		pq.Array(signal.Reasons),
	).Scan(&signal.ID)
}

// GetByID возвращает сигнал по ID
func (r *SignalRepository) GetByID(id int) (*models.Signal, error) {
	query := `
		SELECT id, ticker, timestamp, direction, confidence, entry, stop, target,
		       current_price, htf_bias, entry_type, rationale, valid, reject_reasons
		FROM signals
		WHERE id = $1`

	signal := &models.Signal{}
	err := r.db.QueryRow(query, id).Scan(
		&signal.ID,
		&signal.Ticker,
		&signal.Timestamp,
		&signal.Direction,
		&signal.Confidence,
		&signal.Entry,
		&signal.Stop,
		&signal.Target,
		&signal.CurrentPrice,
		&signal.HTFBias,
		&signal.EntryType,
		&signal.Rationale,
		&signal.Valid,
		pq.Array(&signal.Reasons),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignalNotFound
		}
		return nil, err
	}

	return signal, nil
}

// GetRecent возвращает последние сигналы (новые первыми)
func (r *SignalRepository) GetRecent(limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, ticker, timestamp, direction, confidence, entry, stop, target,
		       current_price, htf_bias, entry_type, rationale, valid, reject_reasons
		FROM signals
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		signal := &models.Signal{}
		err := rows.Scan(
			&signal.ID,
			&signal.Ticker,
			&signal.Timestamp,
			&signal.Direction,
			&signal.Confidence,
			&signal.Entry,
			&signal.Stop,
			&signal.Target,
			&signal.CurrentPrice,
			&signal.HTFBias,
			&signal.EntryType,
			&signal.Rationale,
			&signal.Valid,
			pq.Array(&signal.Reasons),
		)
		if err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}

	return signals, rows.Err()
}

// RejectionCounts возвращает частоту причин отбраковки с момента since
//
// Используется аналитикой: какие фильтры режут больше всего сигналов
func (r *SignalRepository) RejectionCounts(since time.Time) (map[string]int, error) {
	query := `
		SELECT reason, COUNT(*)
		FROM signals, unnest(reject_reasons) AS reason
		WHERE valid = false AND timestamp >= $1
		GROUP BY reason`

	rows, err := r.db.Query(query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		counts[reason] = count
	}

	return counts, rows.Err()
}
