package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Security   SecurityConfig
	Classifier ClassifierConfig
	Tracker    TrackerConfig
	Email      EmailConfig
	Logging    LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string

	// Rate limit для входящих webhook'ов от TradingView (req/sec)
	WebhookRate  float64
	WebhookBurst float64

	// Rate limit для запросов дашборда (req/sec)
	APIRate  float64
	APIBurst float64
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// WebhookSecret проверяется на каждом входящем webhook
	WebhookSecret string

	// DashboardPasswordHash - bcrypt хеш пароля дашборда
	// Пустое значение = аутентификация выключена (локальный запуск)
	DashboardPasswordHash string

	SessionTimeout int
}

// ClassifierConfig - настройки AI классификатора сигналов
type ClassifierConfig struct {
	// Provider: "openai" или "mtf" (локальный multi-timeframe анализ)
	Provider string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Rate limit для запросов к OpenAI (req/sec)
	RequestRate float64

	// Таймаут фоновой оценки, запущенной webhook'ом
	EvalTimeout time.Duration
}

// TrackerConfig - настройки отслеживания исходов сделок
type TrackerConfig struct {
	// Интервал проверки pending сделок
	PollInterval time.Duration

	// Сделки старше этого возраста помечаются expired
	MaxAge time.Duration
}

// EmailConfig - настройки SMTP уведомлений
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:     getEnvAsBool("USE_HTTPS", false),
			CertFile:     getEnv("CERT_FILE", ""),
			KeyFile:      getEnv("KEY_FILE", ""),
			WebhookRate:  getEnvAsFloat("WEBHOOK_RATE", 10),
			WebhookBurst: getEnvAsFloat("WEBHOOK_BURST", 20),
			APIRate:      getEnvAsFloat("API_RATE", 20),
			APIBurst:     getEnvAsFloat("API_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "signaldesk"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			WebhookSecret:         getEnv("WEBHOOK_SECRET", ""),
			DashboardPasswordHash: getEnv("DASHBOARD_PASSWORD_HASH", ""),
			SessionTimeout:        getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Classifier: ClassifierConfig{
			Provider:      strings.ToLower(getEnv("CLASSIFIER_PROVIDER", "openai")),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAITimeout: getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
			RequestRate:   getEnvAsFloat("CLASSIFIER_RATE", 1),
			EvalTimeout:   getEnvAsDuration("EVAL_TIMEOUT", 60*time.Second),
		},
		Tracker: TrackerConfig{
			PollInterval: getEnvAsDuration("TRACKER_INTERVAL", 30*time.Second),
			MaxAge:       getEnvAsDuration("TRACKER_MAX_AGE", 24*time.Hour),
		},
		Email: EmailConfig{
			Enabled:  getEnvAsBool("EMAIL_ENABLED", false),
			Host:     getEnv("EMAIL_HOST", ""),
			Port:     getEnvAsInt("EMAIL_PORT", 587),
			User:     getEnv("EMAIL_USER", ""),
			Password: getEnv("EMAIL_PASSWORD", ""),
			From:     getEnv("EMAIL_FROM", ""),
			To:       getEnv("EMAIL_TO", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// WEBHOOK_SECRET обязателен: webhook эндпоинт открыт в интернет
	if c.Security.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required to authenticate incoming webhooks")
	}

	if len(c.Security.WebhookSecret) < 16 {
		return fmt.Errorf("WEBHOOK_SECRET must be at least 16 characters")
	}

	// API ключ нужен только если классификатор - OpenAI
	if c.Classifier.Provider == "openai" && c.Classifier.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when CLASSIFIER_PROVIDER=openai")
	}

	if c.Classifier.Provider != "openai" && c.Classifier.Provider != "mtf" {
		return fmt.Errorf("CLASSIFIER_PROVIDER must be \"openai\" or \"mtf\", got %q", c.Classifier.Provider)
	}

	// Email: при включённой доставке нужны хост и получатель
	if c.Email.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("EMAIL_HOST is required when EMAIL_ENABLED=true")
		}
		if c.Email.To == "" {
			return fmt.Errorf("EMAIL_TO is required when EMAIL_ENABLED=true")
		}
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация таймаутов (должны быть положительными)
	if c.Classifier.OpenAITimeout <= 0 {
		return fmt.Errorf("OPENAI_TIMEOUT must be positive, got %v", c.Classifier.OpenAITimeout)
	}

	if c.Tracker.PollInterval < time.Second {
		return fmt.Errorf("TRACKER_INTERVAL must be at least 1s, got %v", c.Tracker.PollInterval)
	}

	if c.Tracker.MaxAge < time.Minute {
		return fmt.Errorf("TRACKER_MAX_AGE must be at least 1m, got %v", c.Tracker.MaxAge)
	}

	// Rate limits
	if c.Server.WebhookRate <= 0 {
		return fmt.Errorf("WEBHOOK_RATE must be positive, got %v", c.Server.WebhookRate)
	}

	if c.Server.APIRate <= 0 {
		return fmt.Errorf("API_RATE must be positive, got %v", c.Server.APIRate)
	}

	if c.Classifier.RequestRate <= 0 {
		return fmt.Errorf("CLASSIFIER_RATE must be positive, got %v", c.Classifier.RequestRate)
	}

	if c.Classifier.EvalTimeout <= 0 {
		return fmt.Errorf("EVAL_TIMEOUT must be positive, got %v", c.Classifier.EvalTimeout)
	}

	// Валидация SessionTimeout
	if c.Security.SessionTimeout < 60 {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 60 seconds, got %d", c.Security.SessionTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
