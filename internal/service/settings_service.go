package service

import (
	"fmt"
	"time"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// SettingsService предоставляет бизнес-логику для управления
// настройками сканера.
//
// Отвечает за:
// - Получение и частичное обновление настроек качества сигналов
// - Валидацию: невалидное обновление отклоняется целиком,
//   предыдущая конфигурация остается действующей
// - Версионирование правил промпта (правки не мутируются на месте)
type SettingsService struct {
	settingsRepo SettingsRepositoryInterface
	notifier     *NotificationService
}

// NewSettingsService создает новый экземпляр SettingsService.
func NewSettingsService(settingsRepo SettingsRepositoryInterface) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo}
}

// SetNotifier устанавливает сервис уведомлений для событий тюнинга.
func (s *SettingsService) SetNotifier(notifier *NotificationService) {
	s.notifier = notifier
}

// GetSettings возвращает текущие настройки.
//
// Если записи в БД нет, создается запись с дефолтными значениями.
func (s *SettingsService) GetSettings() (*models.Settings, error) {
	return s.settingsRepo.Get()
}

// UpdateSettingsRequest представляет запрос на обновление настроек.
// Все поля опциональны - обновляются только переданные.
type UpdateSettingsRequest struct {
	MinConfidence      *int     `json:"min_confidence,omitempty"`
	MinRiskReward      *float64 `json:"min_risk_reward,omitempty"`
	MaxPriceDriftTicks *float64 `json:"max_price_drift_ticks,omitempty"`
	RequireMomentum    *bool    `json:"require_momentum,omitempty"`
	Tickers            []string `json:"tickers,omitempty"`
	TrackMaxAgeHours   *int     `json:"track_max_age_hours,omitempty"`
}

// UpdateSettings обновляет настройки сканера.
//
// Принимает только те поля, которые нужно обновить. Объединенная
// конфигурация валидируется целиком перед сохранением: при любой
// ошибке диапазона обновление отклоняется и в БД ничего не пишется.
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error) {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	if req.MinConfidence != nil {
		settings.MinConfidence = *req.MinConfidence
	}
	if req.MinRiskReward != nil {
		settings.MinRiskReward = *req.MinRiskReward
	}
	if req.MaxPriceDriftTicks != nil {
		settings.MaxPriceDriftTicks = *req.MaxPriceDriftTicks
	}
	if req.RequireMomentum != nil {
		settings.RequireMomentum = *req.RequireMomentum
	}
	if req.Tickers != nil {
		normalized := make([]string, 0, len(req.Tickers))
		for _, t := range req.Tickers {
			if n := models.NormalizeTicker(t); n != "" {
				normalized = append(normalized, n)
			}
		}
		settings.Tickers = normalized
	}
	if req.TrackMaxAgeHours != nil {
		settings.TrackMaxAgeHours = *req.TrackMaxAgeHours
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if err := s.settingsRepo.Update(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// UpdatePromptRules заменяет правила промпта классификатора.
//
// Каждая правка создает новую версию: номер берется от текущей +1,
// что бы ни пришло в запросе. История версий видна в журнале тюнинга.
func (s *SettingsService) UpdatePromptRules(rules models.PromptRules) (*models.Settings, error) {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	rules.Version = settings.PromptRules.Version + 1
	settings.PromptRules = rules

	if err := s.settingsRepo.Update(settings); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyTuning(
			fmt.Sprintf("Prompt rules updated to version %d", rules.Version),
			map[string]interface{}{"version": rules.Version},
		); err != nil {
			utils.L().Sugar().Warnf("Tuning notification failed: %v", err)
		}
	}

	return settings, nil
}

// ApplyConfidenceThreshold применяет одобренную рекомендацию тюнинга.
//
// Рекомендации аналитики advisory: без этого явного действия
// пользователя min_confidence никогда не меняется автоматически.
func (s *SettingsService) ApplyConfidenceThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return models.ErrSettingsConfidenceRange
	}

	settings, err := s.settingsRepo.Get()
	if err != nil {
		return err
	}
	previous := settings.MinConfidence

	if err := s.settingsRepo.UpdateMinConfidence(threshold); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyTuning(
			fmt.Sprintf("min_confidence changed %d%% -> %d%% (approved recommendation)", previous, threshold),
			map[string]interface{}{
				"old_value":  previous,
				"new_value":  threshold,
				"applied_at": time.Now().Format(time.RFC3339),
			},
		); err != nil {
			utils.L().Sugar().Warnf("Tuning notification failed: %v", err)
		}
	}

	return nil
}
