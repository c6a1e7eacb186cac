package repository

import (
	"database/sql"
	"errors"
	"time"

	"signaldesk/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound        = errors.New("trade not found")
	ErrTradeAlreadyResolved = errors.New("trade outcome already set")
	ErrTradeNotPending      = errors.New("trade is not pending")
	ErrInvalidTradeLevels   = errors.New("trade levels are inconsistent with direction")
)

// TradeRepository - работа с таблицей trades (журнал сделок)
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create записывает новую сделку в журнал
//
// Уровни проверяются на согласованность с направлением:
// long требует stop < entry < target, short - зеркально.
// Исход всегда pending, outcome-поля пустые
func (r *TradeRepository) Create(trade *models.Trade) error {
	if !trade.LevelsConsistent() {
		return ErrInvalidTradeLevels
	}

	trade.Outcome = models.OutcomePending
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}

	query := `
		INSERT INTO trades (signal_id, ticker, direction, entry_price, stop_price, target_price, confidence, timestamp, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return r.db.QueryRow(query,
		trade.SignalID,
		trade.Ticker,
		trade.Direction,
		trade.EntryPrice,
		trade.StopPrice,
		trade.TargetPrice,
		trade.Confidence,
		trade.Timestamp,
		trade.Outcome,
	).Scan(&trade.ID)
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.Trade, error) {
	query := `
		SELECT id, signal_id, ticker, direction, entry_price, stop_price, target_price,
		       confidence, timestamp, outcome, outcome_price, outcome_time, pnl_ticks
		FROM trades
		WHERE id = $1`

	trade := &models.Trade{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.SignalID,
		&trade.Ticker,
		&trade.Direction,
		&trade.EntryPrice,
		&trade.StopPrice,
		&trade.TargetPrice,
		&trade.Confidence,
		&trade.Timestamp,
		&trade.Outcome,
		&trade.OutcomePrice,
		&trade.OutcomeTime,
		&trade.PnlTicks,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetRecent возвращает последние сделки (новые первыми)
func (r *TradeRepository) GetRecent(limit, offset int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, signal_id, ticker, direction, entry_price, stop_price, target_price,
		       confidence, timestamp, outcome, outcome_price, outcome_time, pnl_ticks
		FROM trades
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetPending возвращает все неразрешённые сделки (старые первыми)
//
// Порядок важен трекеру: при конкурентных разрешениях
// старые сделки проверяются первыми
func (r *TradeRepository) GetPending() ([]*models.Trade, error) {
	query := `
		SELECT id, signal_id, ticker, direction, entry_price, stop_price, target_price,
		       confidence, timestamp, outcome, outcome_price, outcome_time, pnl_ticks
		FROM trades
		WHERE outcome = $1
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(query, models.OutcomePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetResolved возвращает разрешённые сделки за период (для аналитики)
//
// since нулевое - без ограничения по времени
func (r *TradeRepository) GetResolved(since time.Time) ([]*models.Trade, error) {
	query := `
		SELECT id, signal_id, ticker, direction, entry_price, stop_price, target_price,
		       confidence, timestamp, outcome, outcome_price, outcome_time, pnl_ticks
		FROM trades
		WHERE outcome <> $1 AND timestamp >= $2
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(query, models.OutcomePending, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// SetOutcome помечает pending сделку разрешённой
//
// Гонка двух разрешений решается условием WHERE outcome = 'pending':
// побеждает первый UPDATE, второй получает ErrTradeAlreadyResolved
func (r *TradeRepository) SetOutcome(id int, outcome models.Outcome, price float64, at time.Time, pnlTicks float64) error {
	if !outcome.Terminal() {
		return ErrTradeNotPending
	}

	query := `
		UPDATE trades
		SET outcome = $1, outcome_price = $2, outcome_time = $3, pnl_ticks = $4
		WHERE id = $5 AND outcome = $6`

	result, err := r.db.Exec(query, outcome, price, at, pnlTicks, id, models.OutcomePending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Либо сделки нет, либо исход уже установлен
		if _, err := r.GetByID(id); errors.Is(err, ErrTradeNotFound) {
			return ErrTradeNotFound
		}
		return ErrTradeAlreadyResolved
	}

	return nil
}

// Delete удаляет сделку из журнала
//
// Удалять можно только pending: разрешённые сделки уже учтены
// в дневном P&L и статистике
func (r *TradeRepository) Delete(id int) error {
	query := `DELETE FROM trades WHERE id = $1 AND outcome = $2`

	result, err := r.db.Exec(query, id, models.OutcomePending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(id); errors.Is(err, ErrTradeNotFound) {
			return ErrTradeNotFound
		}
		return ErrTradeNotPending
	}

	return nil
}

// CountByOutcome возвращает количество сделок по каждому исходу
func (r *TradeRepository) CountByOutcome() (map[models.Outcome]int, error) {
	query := `SELECT outcome, COUNT(*) FROM trades GROUP BY outcome`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int)
	for rows.Next() {
		var outcome models.Outcome
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		counts[outcome] = count
	}

	return counts, rows.Err()
}

// scanTrades читает сделки из результата запроса
func scanTrades(rows *sql.Rows) ([]*models.Trade, error) {
	var trades []*models.Trade

	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.SignalID,
			&trade.Ticker,
			&trade.Direction,
			&trade.EntryPrice,
			&trade.StopPrice,
			&trade.TargetPrice,
			&trade.Confidence,
			&trade.Timestamp,
			&trade.Outcome,
			&trade.OutcomePrice,
			&trade.OutcomeTime,
			&trade.PnlTicks,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}
