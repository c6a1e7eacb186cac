package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"signaldesk/internal/models"
)

// Ошибки репозитория настроек
var (
	ErrSettingsNotFound = errors.New("settings not found")
)

// SettingsRepository - работа с таблицей settings
//
// Одна запись (id=1): пороги качества сигналов, список тикеров,
// правила промпта классификатора
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает глобальные настройки (всегда id=1, одна запись)
func (r *SettingsRepository) Get() (*models.Settings, error) {
	query := `
		SELECT id, min_confidence, min_risk_reward, max_price_drift_ticks, require_momentum,
		       tickers, track_max_age_hours, prompt_rules, updated_at
		FROM settings
		WHERE id = 1`

	settings := &models.Settings{}
	var rulesJSON []byte
	err := r.db.QueryRow(query).Scan(
		&settings.ID,
		&settings.MinConfidence,
		&settings.MinRiskReward,
		&settings.MaxPriceDriftTicks,
		&settings.RequireMomentum,
		pq.Array(&settings.Tickers),
		&settings.TrackMaxAgeHours,
		&rulesJSON,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Если записи нет, создаем ее с дефолтными значениями
			return r.createDefault()
		}
		return nil, err
	}

	// Десериализуем prompt_rules из JSON
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &settings.PromptRules); err != nil {
			return nil, err
		}
	} else {
		settings.PromptRules = models.DefaultSettings().PromptRules
	}

	return settings, nil
}

// Update обновляет настройки
//
// Валидация выполняется сервисом до вызова: в базу попадает
// только согласованный набор порогов
func (r *SettingsRepository) Update(settings *models.Settings) error {
	rulesJSON, err := json.Marshal(settings.PromptRules)
	if err != nil {
		return err
	}

	query := `
		UPDATE settings
		SET min_confidence = $1, min_risk_reward = $2, max_price_drift_ticks = $3,
		    require_momentum = $4, tickers = $5, track_max_age_hours = $6,
		    prompt_rules = $7, updated_at = $8
		WHERE id = 1`

	settings.UpdatedAt = time.Now()

	result, err := r.db.Exec(query,
		settings.MinConfidence,
		settings.MinRiskReward,
		settings.MaxPriceDriftTicks,
		settings.RequireMomentum,
		pq.Array(settings.Tickers),
		settings.TrackMaxAgeHours,
		rulesJSON,
		settings.UpdatedAt,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// UpdateMinConfidence обновляет только порог уверенности
//
// Отдельный метод для применения рекомендации тюнинга
func (r *SettingsRepository) UpdateMinConfidence(minConfidence int) error {
	query := `
		UPDATE settings
		SET min_confidence = $1, updated_at = $2
		WHERE id = 1`

	result, err := r.db.Exec(query, minConfidence, time.Now())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// createDefault создает запись настроек с дефолтными значениями
func (r *SettingsRepository) createDefault() (*models.Settings, error) {
	settings := models.DefaultSettings()
	settings.UpdatedAt = time.Now()

	rulesJSON, err := json.Marshal(settings.PromptRules)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO settings (id, min_confidence, min_risk_reward, max_price_drift_ticks,
		                      require_momentum, tickers, track_max_age_hours, prompt_rules, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.Exec(query,
		settings.MinConfidence,
		settings.MinRiskReward,
		settings.MaxPriceDriftTicks,
		settings.RequireMomentum,
		pq.Array(settings.Tickers),
		settings.TrackMaxAgeHours,
		rulesJSON,
		settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
