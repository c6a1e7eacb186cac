package models

import (
	"errors"
	"time"
)

// Ошибки валидации настроек
var (
	ErrSettingsConfidenceRange = errors.New("min_confidence must be between 0 and 100")
	ErrSettingsRiskRewardRange = errors.New("min_risk_reward must be between 0 and 10")
	ErrSettingsDriftRange      = errors.New("max_price_drift_ticks cannot be negative")
	ErrSettingsMaxAgeRange     = errors.New("track_max_age_hours must be between 1 and 168")
	ErrSettingsNoTickers       = errors.New("at least one ticker is required")
)

// Settings представляет глобальные настройки сканера сигналов
type Settings struct {
	ID                 int         `json:"id" db:"id"`
	MinConfidence      int         `json:"min_confidence" db:"min_confidence"`               // минимальная уверенность классификатора, %
	MinRiskReward      float64     `json:"min_risk_reward" db:"min_risk_reward"`             // минимальное R:R (>= проходит)
	MaxPriceDriftTicks float64     `json:"max_price_drift_ticks" db:"max_price_drift_ticks"` // допустимый дрейф цены от entry в тиках
	RequireMomentum    bool        `json:"require_momentum" db:"require_momentum"`           // фильтр по последним 1m свечам
	Tickers            []string    `json:"tickers" db:"tickers"`                             // JSON в БД
	TrackMaxAgeHours   int         `json:"track_max_age_hours" db:"track_max_age_hours"`     // pending старше -> expired
	PromptRules        PromptRules `json:"prompt_rules" db:"prompt_rules"`                   // JSON в БД
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// PromptRules - версионируемые правки системного промпта классификатора.
// Заполняются через одобренные рекомендации коуча, никогда не мутируются
// на месте: каждое изменение создает новую версию.
type PromptRules struct {
	Version        int      `json:"version"`
	EmphasisRules  []string `json:"emphasis_rules,omitempty"`  // паттерны, которые стоит подчеркнуть
	CautionRules   []string `json:"caution_rules,omitempty"`   // паттерны, которых стоит избегать
	TimeRules      []string `json:"time_rules,omitempty"`      // временные фильтры (сессии, новости)
	DirectionRules []string `json:"direction_rules,omitempty"` // перекосы long/short
}

// DefaultSettings возвращает настройки по умолчанию.
// Граничное значение R:R == MinRiskReward проходит фильтр (сравнение через >=).
func DefaultSettings() *Settings {
	return &Settings{
		ID:                 1,
		MinConfidence:      70,
		MinRiskReward:      2.0,
		MaxPriceDriftTicks: 15,
		RequireMomentum:    true,
		Tickers:            []string{"MNQ", "MES", "MGC"},
		TrackMaxAgeHours:   24,
		PromptRules:        PromptRules{Version: 1},
	}
}

// Validate проверяет диапазоны настроек.
// Невалидное обновление отклоняется целиком, предыдущая
// конфигурация остается действующей.
func (s *Settings) Validate() error {
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		return ErrSettingsConfidenceRange
	}
	if s.MinRiskReward <= 0 || s.MinRiskReward > 10 {
		return ErrSettingsRiskRewardRange
	}
	if s.MaxPriceDriftTicks < 0 {
		return ErrSettingsDriftRange
	}
	if s.TrackMaxAgeHours < 1 || s.TrackMaxAgeHours > 24*7 {
		return ErrSettingsMaxAgeRange
	}
	if len(s.Tickers) == 0 {
		return ErrSettingsNoTickers
	}
	return nil
}
