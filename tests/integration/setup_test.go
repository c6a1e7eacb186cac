// Package integration contains integration tests for the signal dashboard backend.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, repository round trips
//
// Tests require a local Postgres and skip themselves when it is unavailable.
// Run with: go test ./tests/integration/...
package integration

import (
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"signaldesk/internal/api"
	"signaldesk/internal/candles"
	"signaldesk/internal/classifier"
	"signaldesk/internal/repository"
	"signaldesk/internal/service"
	"signaldesk/internal/websocket"

	_ "github.com/lib/pq"
)

// TestWebhookSecret используется всеми интеграционными тестами webhook
const TestWebhookSecret = "integration-test-secret-0123456789"

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB      *sql.DB
	Server  *httptest.Server
	Hub     *websocket.Hub
	Store   *candles.Store
	Repos   *TestRepositories
	Svc     *TestServices
	Cleanup func()
}

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Signal       *repository.SignalRepository
	Trade        *repository.TradeRepository
	Apex         *repository.ApexRepository
	Settings     *repository.SettingsRepository
	Notification *repository.NotificationRepository
}

// TestServices contains all service instances for testing
type TestServices struct {
	Evaluator    *service.EvaluatorService
	Trade        *service.TradeService
	Apex         *service.ApexService
	Analytics    *service.AnalyticsService
	Settings     *service.SettingsService
	Notification *service.NotificationService
	Status       *service.StatusService
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "signaldesk_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	config := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName, config.DBSSLMode,
	)

	db, err := sql.Open(config.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	hub := websocket.NewHub()
	go hub.Run()

	store := candles.NewStore()

	repos := &TestRepositories{
		Signal:       repository.NewSignalRepository(db),
		Trade:        repository.NewTradeRepository(db),
		Apex:         repository.NewApexRepository(db),
		Settings:     repository.NewSettingsRepository(db),
		Notification: repository.NewNotificationRepository(db),
	}

	// MTF классификатор: работает без внешних сервисов и ключей
	counters := service.NewRuntimeCounters()
	notificationSvc := service.NewNotificationService(repos.Notification)
	apexSvc := service.NewApexService(repos.Apex)
	tradeSvc := service.NewTradeService(repos.Trade)
	tradeSvc.SetApexRecorder(apexSvc)
	tradeSvc.SetNotifier(notificationSvc)

	evaluatorSvc := service.NewEvaluatorService(
		store, classifier.NewMTFClassifier(), "mtf",
		repos.Settings, repos.Signal, repos.Trade,
	)
	evaluatorSvc.SetBlocker(apexSvc)

	svc := &TestServices{
		Evaluator:    evaluatorSvc,
		Trade:        tradeSvc,
		Apex:         apexSvc,
		Analytics:    service.NewAnalyticsService(repos.Trade, repos.Signal, repos.Settings),
		Settings:     service.NewSettingsService(repos.Settings),
		Notification: notificationSvc,
		Status:       service.NewStatusService("mtf", counters, store, repos.Trade),
	}
	svc.Notification.SetBroadcaster(hub)
	svc.Trade.SetBroadcaster(hub)
	svc.Status.SetHub(hub)

	deps := &api.Dependencies{
		Store:               store,
		EvaluatorService:    svc.Evaluator,
		TradeService:        svc.Trade,
		ApexService:         svc.Apex,
		AnalyticsService:    svc.Analytics,
		SettingsService:     svc.Settings,
		NotificationService: svc.Notification,
		StatusService:       svc.Status,
		Counters:            counters,
		Hub:                 hub,
		WebhookSecret:       TestWebhookSecret,
	}
	router := api.SetupRoutes(deps)

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		hub.Stop()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:      db,
		Server:  server,
		Hub:     hub,
		Store:   store,
		Repos:   repos,
		Svc:     svc,
		Cleanup: cleanup,
	}
}

// initTestTables creates or truncates tables for testing
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id SERIAL PRIMARY KEY,
			ticker VARCHAR(20) NOT NULL,
			timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
			direction VARCHAR(10) NOT NULL,
			confidence INT NOT NULL DEFAULT 0,
			entry DECIMAL(20, 4) NOT NULL DEFAULT 0,
			stop DECIMAL(20, 4) NOT NULL DEFAULT 0,
			target DECIMAL(20, 4) NOT NULL DEFAULT 0,
			current_price DECIMAL(20, 4) NOT NULL DEFAULT 0,
			htf_bias VARCHAR(10) DEFAULT '',
			entry_type VARCHAR(30) DEFAULT '',
			rationale TEXT DEFAULT '',
			valid BOOLEAN DEFAULT false,
			reject_reasons TEXT[] DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			signal_id INT REFERENCES signals(id) ON DELETE SET NULL,
			ticker VARCHAR(20) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 4) NOT NULL,
			stop_price DECIMAL(20, 4) NOT NULL,
			target_price DECIMAL(20, 4) NOT NULL,
			confidence INT NOT NULL DEFAULT 0,
			timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
			outcome VARCHAR(10) NOT NULL DEFAULT 'pending',
			outcome_price DECIMAL(20, 4),
			outcome_time TIMESTAMP,
			pnl_ticks DECIMAL(20, 4)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_pnl (
			date VARCHAR(10) PRIMARY KEY,
			pnl DECIMAL(20, 2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS apex_config (
			id INT PRIMARY KEY DEFAULT 1,
			config JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY DEFAULT 1,
			min_confidence INT NOT NULL DEFAULT 70,
			min_risk_reward DECIMAL(10, 2) NOT NULL DEFAULT 2.0,
			max_price_drift_ticks DECIMAL(10, 2) NOT NULL DEFAULT 15,
			require_momentum BOOLEAN DEFAULT true,
			tickers TEXT[] DEFAULT '{MNQ,MES,MGC}',
			track_max_age_hours INT NOT NULL DEFAULT 24,
			prompt_rules JSONB DEFAULT '{"version":1}',
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP DEFAULT NOW(),
			type VARCHAR(50) NOT NULL,
			severity VARCHAR(10) DEFAULT 'info',
			trade_id INT,
			message TEXT NOT NULL,
			meta JSONB DEFAULT '{}'
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{
		"notifications",
		"trades",
		"signals",
		"daily_pnl",
		"apex_config",
		"settings",
	}

	for _, table := range tables {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// TruncateTable truncates a specific table for testing
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}
