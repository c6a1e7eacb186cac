package service

import (
	"testing"
	"time"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// ============ ТЕСТЫ AnalyticsService ============

func newAnalytics(tradeRepo *MockTradeRepository) *AnalyticsService {
	return NewAnalyticsService(tradeRepo, NewMockSignalRepository(), NewMockSettingsRepository())
}

// seed добавляет завершенную сделку напрямую в хранилище мока
func seed(repo *MockTradeRepository, trade *models.Trade) {
	if trade.ID == 0 {
		trade.ID = repo.nextID
	}
	repo.trades[trade.ID] = trade
	if trade.ID >= repo.nextID {
		repo.nextID = trade.ID + 1
	}
}

func TestAnalyticsService_Performance(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-72 * time.Hour)

	seed(mockRepo, resolvedTrade(1, "MNQ", models.OutcomeWin, 85, 42, base))
	seed(mockRepo, resolvedTrade(2, "MNQ", models.OutcomeWin, 80, 42, base.Add(time.Hour)))
	seed(mockRepo, resolvedTrade(3, "MES", models.OutcomeLoss, 75, -21, base.Add(2*time.Hour)))
	seed(mockRepo, resolvedTrade(4, "MNQ", models.OutcomeExpired, 72, -3, base.Add(3*time.Hour)))
	seed(mockRepo, &models.Trade{
		ID: 5, Ticker: "MNQ", Direction: models.DirectionLong,
		EntryPrice: 21450.25, StopPrice: 21445.00, TargetPrice: 21460.75,
		Timestamp: time.Now(), Outcome: models.OutcomePending,
	})

	svc := newAnalytics(mockRepo)
	summary, err := svc.Performance()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalTrades != 4 {
		t.Errorf("expected 4 resolved trades, got %d", summary.TotalTrades)
	}
	if summary.Wins != 2 || summary.Losses != 1 || summary.Expired != 1 {
		t.Errorf("unexpected outcome counts: %+v", summary)
	}
	if summary.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", summary.Pending)
	}
	// win_rate только по win/loss: 2/3
	if summary.WinRate != 66.67 {
		t.Errorf("expected win rate 66.67, got %.2f", summary.WinRate)
	}
	if summary.TotalPnlTicks != 60 {
		t.Errorf("expected total pnl 60 ticks, got %.2f", summary.TotalPnlTicks)
	}
}

func TestAnalyticsService_Performance_WeekSlice(t *testing.T) {
	mockRepo := NewMockTradeRepository()

	// Сделка месячной давности не попадает в недельный срез
	seed(mockRepo, resolvedTrade(1, "MNQ", models.OutcomeWin, 85, 42, time.Now().AddDate(0, 0, -30)))
	seed(mockRepo, resolvedTrade(2, "MNQ", models.OutcomeLoss, 80, -21, time.Now()))

	svc := newAnalytics(mockRepo)
	summary, err := svc.Performance()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.WeekTrades != 1 {
		t.Errorf("expected 1 trade this week, got %d", summary.WeekTrades)
	}
	if summary.WeekPnlTicks != -21 {
		t.Errorf("expected week pnl -21 ticks, got %.2f", summary.WeekPnlTicks)
	}
	if summary.TotalTrades != 2 {
		t.Errorf("expected 2 resolved trades, got %d", summary.TotalTrades)
	}
}

func TestAnalyticsService_Streaks(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-24 * time.Hour)

	// Хронология: W W L L L (expired) W
	outcomes := []models.Outcome{
		models.OutcomeWin, models.OutcomeWin,
		models.OutcomeLoss, models.OutcomeLoss, models.OutcomeLoss,
		models.OutcomeExpired,
		models.OutcomeWin,
	}
	for i, outcome := range outcomes {
		pnl := 42.0
		if outcome == models.OutcomeLoss {
			pnl = -21
		}
		seed(mockRepo, resolvedTrade(i+1, "MNQ", outcome, 80, pnl, base.Add(time.Duration(i)*time.Hour)))
	}

	svc := newAnalytics(mockRepo)
	streaks, err := svc.Streaks()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if streaks.MaxWinStreak != 2 {
		t.Errorf("expected max win streak 2, got %d", streaks.MaxWinStreak)
	}
	if streaks.MaxLossStreak != 3 {
		t.Errorf("expected max loss streak 3, got %d", streaks.MaxLossStreak)
	}
	// Expired не обрывает серию: текущая серия - 1 win
	if streaks.CurrentStreak != 1 || streaks.CurrentStreakType != "win" {
		t.Errorf("expected current streak 1 win, got %d %s",
			streaks.CurrentStreak, streaks.CurrentStreakType)
	}
}

func TestAnalyticsService_ConfidenceBuckets(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-24 * time.Hour)

	seed(mockRepo, resolvedTrade(1, "MNQ", models.OutcomeWin, 92, 42, base))
	seed(mockRepo, resolvedTrade(2, "MNQ", models.OutcomeWin, 85, 42, base.Add(time.Hour)))
	seed(mockRepo, resolvedTrade(3, "MNQ", models.OutcomeLoss, 85, -21, base.Add(2*time.Hour)))
	seed(mockRepo, resolvedTrade(4, "MES", models.OutcomeLoss, 72, -21, base.Add(3*time.Hour)))
	seed(mockRepo, resolvedTrade(5, "MES", models.OutcomeWin, 45, 42, base.Add(4*time.Hour)))
	// Expired в бакеты не попадает
	seed(mockRepo, resolvedTrade(6, "MNQ", models.OutcomeExpired, 95, -3, base.Add(5*time.Hour)))

	svc := newAnalytics(mockRepo)
	buckets, err := svc.ConfidenceBuckets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{"90-100": 1, "80-89": 2, "70-79": 1, "below 50": 1}
	if len(buckets) != len(want) {
		t.Fatalf("expected %d buckets, got %d: %+v", len(want), len(buckets), buckets)
	}
	// Порядок от высокой уверенности к низкой
	if buckets[0].Label != "90-100" || buckets[len(buckets)-1].Label != "below 50" {
		t.Errorf("unexpected bucket ordering: %+v", buckets)
	}
	for _, b := range buckets {
		if b.Trades != want[b.Label] {
			t.Errorf("bucket %s: expected %d trades, got %d", b.Label, want[b.Label], b.Trades)
		}
	}

	// 80-89: 1 win 1 loss
	for _, b := range buckets {
		if b.Label == "80-89" {
			if b.WinRate != 50 {
				t.Errorf("expected 50%% win rate in 80-89, got %.2f", b.WinRate)
			}
			if b.TotalPnl != 21 {
				t.Errorf("expected total pnl 21 in 80-89, got %.2f", b.TotalPnl)
			}
		}
	}
}

func TestAnalyticsService_Thresholds_InsufficientData(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 9; i++ {
		seed(mockRepo, resolvedTrade(i+1, "MNQ", models.OutcomeWin, 80, 42, base.Add(time.Duration(i)*time.Hour)))
	}

	svc := newAnalytics(mockRepo)
	report, err := svc.AnalyzeConfidenceThresholds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != "insufficient_data" {
		t.Errorf("expected insufficient_data with 9 trades, got %s", report.Status)
	}
	if report.RecommendedThreshold != nil {
		t.Errorf("no recommendation expected on insufficient data")
	}
}

func TestAnalyticsService_Thresholds_Recommendation(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-30 * 24 * time.Hour)
	id := 1
	add := func(confidence int, outcome models.Outcome, pnl float64) {
		seed(mockRepo, resolvedTrade(id, "MNQ", outcome, confidence, pnl, base.Add(time.Duration(id)*time.Hour)))
		id++
	}

	// Уверенность 75: 10 побед, 10 убытков (матожидание 10.5)
	for i := 0; i < 10; i++ {
		add(75, models.OutcomeWin, 42)
		add(75, models.OutcomeLoss, -21)
	}
	// Уверенность 85: 20 побед, 5 убытков (матожидание 29.4)
	for i := 0; i < 20; i++ {
		add(85, models.OutcomeWin, 42)
	}
	for i := 0; i < 5; i++ {
		add(85, models.OutcomeLoss, -21)
	}

	svc := newAnalytics(mockRepo)
	report, err := svc.AnalyzeConfidenceThresholds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != "success" {
		t.Fatalf("expected success, got %s: %s", report.Status, report.Message)
	}
	if report.CurrentThreshold != 70 {
		t.Errorf("expected current threshold 70, got %d", report.CurrentThreshold)
	}

	// Порог 80 отсекает сделки с уверенностью 75: 25 сделок, 80% побед
	var stat80 *ThresholdStat
	for i := range report.Analysis {
		if report.Analysis[i].Threshold == 80 {
			stat80 = &report.Analysis[i]
		}
	}
	if stat80 == nil {
		t.Fatalf("expected threshold 80 in analysis: %+v", report.Analysis)
	}
	if stat80.Trades != 25 || stat80.Wins != 20 {
		t.Errorf("expected 25 trades 20 wins at threshold 80, got %d/%d", stat80.Trades, stat80.Wins)
	}
	if stat80.WinRate != 80 {
		t.Errorf("expected 80%% win rate, got %.2f", stat80.WinRate)
	}
	// profit factor: 840 / 105 = 8
	if stat80.ProfitFactor != 8 {
		t.Errorf("expected profit factor 8, got %.2f", stat80.ProfitFactor)
	}
	if stat80.Expectancy != 29.4 {
		t.Errorf("expected expectancy 29.40, got %.2f", stat80.Expectancy)
	}

	if report.RecommendedThreshold == nil {
		t.Fatal("expected recommendation for strictly better expectancy with >= 20 samples")
	}
	if *report.RecommendedThreshold != 80 {
		t.Errorf("expected recommended threshold 80, got %d", *report.RecommendedThreshold)
	}
	if report.Recommendation == "" {
		t.Errorf("expected advisory text")
	}
}

func TestAnalyticsService_Thresholds_NoSmallSampleRecommendation(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-30 * 24 * time.Hour)
	id := 1
	add := func(confidence int, outcome models.Outcome, pnl float64) {
		seed(mockRepo, resolvedTrade(id, "MNQ", outcome, confidence, pnl, base.Add(time.Duration(id)*time.Hour)))
		id++
	}

	// База: 20 посредственных сделок на 72%
	for i := 0; i < 10; i++ {
		add(72, models.OutcomeWin, 42)
		add(72, models.OutcomeLoss, -21)
	}
	// Отличные результаты на 90%, но всего 8 сделок - мало для рекомендации
	for i := 0; i < 8; i++ {
		add(90, models.OutcomeWin, 42)
	}

	svc := newAnalytics(mockRepo)
	report, err := svc.AnalyzeConfidenceThresholds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != "success" {
		t.Fatalf("expected success, got %s", report.Status)
	}
	if report.RecommendedThreshold != nil {
		t.Errorf("small sample must not produce recommendation, got %d", *report.RecommendedThreshold)
	}
}

func TestAnalyticsService_Tickers(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-24 * time.Hour)

	seed(mockRepo, resolvedTrade(1, "MNQ", models.OutcomeWin, 85, 42, base))
	seed(mockRepo, resolvedTrade(2, "MNQ", models.OutcomeWin, 85, 42, base.Add(time.Hour)))
	seed(mockRepo, resolvedTrade(3, "MES", models.OutcomeLoss, 80, -21, base.Add(2*time.Hour)))
	seed(mockRepo, resolvedTrade(4, "MGC", models.OutcomeWin, 75, 10, base.Add(3*time.Hour)))

	svc := newAnalytics(mockRepo)
	breakdown, err := svc.Tickers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(breakdown.All) != 3 {
		t.Fatalf("expected 3 tickers, got %d", len(breakdown.All))
	}
	if breakdown.Best == nil || breakdown.Best.Label != "MNQ" {
		t.Errorf("expected best ticker MNQ, got %+v", breakdown.Best)
	}
	if breakdown.Worst == nil || breakdown.Worst.Label != "MES" {
		t.Errorf("expected worst ticker MES, got %+v", breakdown.Worst)
	}
}

func TestAnalyticsService_DirectionAndTimeSplits(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	// Вторник 2026-02-10, 14:00 и 15:00 UTC
	at14 := time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC)
	at15 := time.Date(2026, 2, 10, 15, 5, 0, 0, time.UTC)

	long := resolvedTrade(1, "MNQ", models.OutcomeWin, 85, 42, at14)
	short := resolvedTrade(2, "MNQ", models.OutcomeLoss, 80, -21, at15)
	short.Direction = models.DirectionShort
	short.StopPrice = 21455.50
	short.TargetPrice = 21439.75
	seed(mockRepo, long)
	seed(mockRepo, short)

	svc := newAnalytics(mockRepo)

	direction, err := svc.Direction()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if direction["long"].Wins != 1 || direction["short"].Losses != 1 {
		t.Errorf("unexpected direction split: %+v", direction)
	}

	hourly, err := svc.Hourly()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hourly) != 2 || hourly[0].Label != "14:00" || hourly[1].Label != "15:00" {
		t.Errorf("unexpected hourly split: %+v", hourly)
	}

	weekday, err := svc.Weekday()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(weekday) != 1 || weekday[0].Label != "Tue" || weekday[0].Trades != 2 {
		t.Errorf("unexpected weekday split: %+v", weekday)
	}
}

func TestAnalyticsService_Daily_CumulativePnl(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	yesterday := time.Now().UTC().Add(-26 * time.Hour)
	today := time.Now().UTC().Add(-2 * time.Hour)

	seed(mockRepo, resolvedTrade(1, "MNQ", models.OutcomeWin, 85, 42, yesterday))
	seed(mockRepo, resolvedTrade(2, "MNQ", models.OutcomeLoss, 80, -21, yesterday.Add(time.Hour)))
	seed(mockRepo, resolvedTrade(3, "MNQ", models.OutcomeWin, 85, 42, today))

	svc := newAnalytics(mockRepo)
	series, err := svc.Daily(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(series) != 2 {
		t.Fatalf("expected 2 days, got %d", len(series))
	}
	first, second := series[0], series[1]
	if first.Date != utils.DateKey(yesterday) {
		t.Errorf("expected first day %s, got %s", utils.DateKey(yesterday), first.Date)
	}
	if first.DailyPnl != 21 || first.CumulativePnl != 21 {
		t.Errorf("expected day 1 pnl 21/21, got %.2f/%.2f", first.DailyPnl, first.CumulativePnl)
	}
	if second.DailyPnl != 42 || second.CumulativePnl != 63 {
		t.Errorf("expected day 2 pnl 42/63, got %.2f/%.2f", second.DailyPnl, second.CumulativePnl)
	}
	if first.WinRate != 50 || second.WinRate != 100 {
		t.Errorf("unexpected win rates: %.2f %.2f", first.WinRate, second.WinRate)
	}
}

func TestAnalyticsService_Full(t *testing.T) {
	mockRepo := NewMockTradeRepository()
	base := time.Now().Add(-24 * time.Hour)
	seed(mockRepo, resolvedTrade(1, "MNQ", models.OutcomeWin, 85, 42, base))
	seed(mockRepo, resolvedTrade(2, "MES", models.OutcomeLoss, 75, -21, base.Add(time.Hour)))

	svc := newAnalytics(mockRepo)
	full, err := svc.Full()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if full.Performance.TotalTrades != 2 {
		t.Errorf("expected 2 trades in performance, got %d", full.Performance.TotalTrades)
	}
	if len(full.Confidence) == 0 || len(full.Tickers.All) != 2 {
		t.Errorf("expected populated breakdowns")
	}
	if full.GeneratedAt.IsZero() {
		t.Errorf("expected generated_at to be set")
	}
}
