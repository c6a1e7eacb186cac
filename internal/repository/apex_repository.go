package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"signaldesk/internal/models"
)

// Ошибки репозитория Apex
var (
	ErrApexConfigNotFound = errors.New("apex config not found")
)

// ApexRepository - работа с таблицами daily_pnl и apex_config
//
// daily_pnl: одна строка на торговый день (ключ - дата YYYY-MM-DD),
// P&L дня накапливается при разрешении сделок.
// apex_config: одна запись (id=1) с параметрами правил проп-фирмы
type ApexRepository struct {
	db *sql.DB
}

// NewApexRepository создает новый экземпляр репозитория
func NewApexRepository(db *sql.DB) *ApexRepository {
	return &ApexRepository{db: db}
}

// AddDailyPnl прибавляет результат сделки к P&L торгового дня
//
// Upsert по дате: первая сделка дня создаёт строку,
// остальные накапливают
func (r *ApexRepository) AddDailyPnl(date string, pnl float64) error {
	query := `
		INSERT INTO daily_pnl (date, pnl, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE
		SET pnl = daily_pnl.pnl + EXCLUDED.pnl, updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query, date, pnl, time.Now())
	return err
}

// GetDailyPnl возвращает P&L указанного дня (0 если записи нет)
func (r *ApexRepository) GetDailyPnl(date string) (float64, error) {
	query := `SELECT pnl FROM daily_pnl WHERE date = $1`

	var pnl float64
	err := r.db.QueryRow(query, date).Scan(&pnl)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return pnl, nil
}

// GetAllDailyPnl возвращает всю историю P&L по дням (старые первыми)
//
// Порядок по дате важен: баланс и high-water mark восстанавливаются
// свёрткой истории в хронологическом порядке
func (r *ApexRepository) GetAllDailyPnl() ([]models.DailyPnl, error) {
	query := `SELECT date, pnl FROM daily_pnl ORDER BY date ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []models.DailyPnl
	for rows.Next() {
		var d models.DailyPnl
		if err := rows.Scan(&d.Date, &d.Pnl); err != nil {
			return nil, err
		}
		days = append(days, d)
	}

	return days, rows.Err()
}

// ResetDailyPnl стирает всю историю P&L (новый цикл оценки Apex)
func (r *ApexRepository) ResetDailyPnl() error {
	_, err := r.db.Exec(`DELETE FROM daily_pnl`)
	return err
}

// GetConfig возвращает параметры правил Apex (всегда id=1, одна запись)
func (r *ApexRepository) GetConfig() (*models.ApexConfig, error) {
	query := `SELECT config FROM apex_config WHERE id = 1`

	var configJSON []byte
	err := r.db.QueryRow(query).Scan(&configJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Если записи нет, создаем ее с дефолтными значениями
			return r.createDefault()
		}
		return nil, err
	}

	cfg := &models.ApexConfig{}
	if err := json.Unmarshal(configJSON, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateConfig обновляет параметры правил Apex
func (r *ApexRepository) UpdateConfig(cfg *models.ApexConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	query := `
		UPDATE apex_config
		SET config = $1, updated_at = $2
		WHERE id = 1`

	result, err := r.db.Exec(query, configJSON, time.Now())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrApexConfigNotFound
	}

	return nil
}

// createDefault создает запись конфигурации с дефолтными значениями
func (r *ApexRepository) createDefault() (*models.ApexConfig, error) {
	cfg := models.DefaultApexConfig()

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO apex_config (id, config, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.Exec(query, configJSON, time.Now()); err != nil {
		return nil, err
	}

	return &cfg, nil
}
