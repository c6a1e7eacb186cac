package service

import (
	"fmt"
	"sort"
	"time"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// Минимальные выборки для аналитики и рекомендаций
const (
	minTradesForAnalysis       = 10
	minTradesPerThreshold      = 5
	minTradesForRecommendation = 20
)

// PerformanceSummary - сводка результатов для дашборда
type PerformanceSummary struct {
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Expired       int     `json:"expired"`
	Pending       int     `json:"pending"`
	WinRate       float64 `json:"win_rate"`
	TotalPnlTicks float64 `json:"total_pnl_ticks"`
	AvgPnlTicks   float64 `json:"avg_pnl_ticks"`
	TodayTrades   int     `json:"today_trades"`
	TodayPnlTicks float64 `json:"today_pnl_ticks"`
	WeekTrades    int     `json:"week_trades"`
	WeekPnlTicks  float64 `json:"week_pnl_ticks"`
}

// StreakInfo - текущая и максимальные серии исходов
type StreakInfo struct {
	CurrentStreak     int    `json:"current_streak"`
	CurrentStreakType string `json:"current_streak_type,omitempty"`
	MaxWinStreak      int    `json:"max_win_streak"`
	MaxLossStreak     int    `json:"max_loss_streak"`
}

// BucketStat - агрегат группы сделок (диапазон уверенности, тикер,
// направление, час, день недели)
type BucketStat struct {
	Label    string  `json:"label"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
	TotalPnl float64 `json:"total_pnl"`
	AvgPnl   float64 `json:"avg_pnl"`
}

// ThresholdStat - результаты "что если брать только сигналы >= порога"
type ThresholdStat struct {
	Threshold    int     `json:"threshold"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	TotalPnl     float64 `json:"total_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`
}

// TuningReport - анализ порога уверенности с рекомендацией
type TuningReport struct {
	Status               string          `json:"status"` // success | insufficient_data
	Message              string          `json:"message,omitempty"`
	CurrentThreshold     int             `json:"current_threshold"`
	Analysis             []ThresholdStat `json:"analysis,omitempty"`
	RecommendedThreshold *int            `json:"recommended_threshold,omitempty"`
	Recommendation       string          `json:"recommendation,omitempty"`
}

// DailyPoint - точка временного ряда для графиков
type DailyPoint struct {
	Date          string  `json:"date"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	DailyPnl      float64 `json:"daily_pnl"`
	CumulativePnl float64 `json:"cumulative_pnl"`
}

// TickerBreakdown - разбивка по инструментам
type TickerBreakdown struct {
	All   []BucketStat `json:"all"`
	Best  *BucketStat  `json:"best,omitempty"`
	Worst *BucketStat  `json:"worst,omitempty"`
}

// FullAnalytics - все аналитические срезы одним снимком
type FullAnalytics struct {
	Performance PerformanceSummary    `json:"performance"`
	Streaks     StreakInfo            `json:"streaks"`
	Confidence  []BucketStat          `json:"confidence"`
	Tickers     TickerBreakdown       `json:"tickers"`
	Direction   map[string]BucketStat `json:"direction"`
	Hourly      []BucketStat          `json:"hourly"`
	Weekday     []BucketStat          `json:"weekday"`
	Daily       []DailyPoint          `json:"daily"`
	Rejections  map[string]int        `json:"rejections,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// AnalyticsService считает производную статистику журнала сделок.
//
// Все агрегаты вычисляются в памяти из полного списка разрешенных
// сделок: журнал личный и маленький, отдельные SQL-агрегации не нужны,
// зато вся математика покрывается юнит-тестами без БД.
type AnalyticsService struct {
	tradeRepo    TradeRepositoryInterface
	signalRepo   SignalRepositoryInterface
	settingsRepo SettingsRepositoryInterface
}

// NewAnalyticsService создает новый экземпляр AnalyticsService.
func NewAnalyticsService(
	tradeRepo TradeRepositoryInterface,
	signalRepo SignalRepositoryInterface,
	settingsRepo SettingsRepositoryInterface,
) *AnalyticsService {
	return &AnalyticsService{
		tradeRepo:    tradeRepo,
		signalRepo:   signalRepo,
		settingsRepo: settingsRepo,
	}
}

// Performance возвращает сводку результатов.
// win_rate считается только по win/loss; expired не участвует.
func (s *AnalyticsService) Performance() (*PerformanceSummary, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}
	counts, err := s.tradeRepo.CountByOutcome()
	if err != nil {
		return nil, err
	}

	summary := &PerformanceSummary{
		Pending: counts[models.OutcomePending],
		Expired: counts[models.OutcomeExpired],
	}

	today := utils.DateKey(time.Now())
	weekStart := utils.GetWeekStartFrom(time.Now())
	var decided int
	for _, t := range trades {
		pnl := pnlOf(t)
		summary.TotalTrades++
		summary.TotalPnlTicks += pnl

		switch t.Outcome {
		case models.OutcomeWin:
			summary.Wins++
			decided++
		case models.OutcomeLoss:
			summary.Losses++
			decided++
		}

		if utils.DateKey(t.Timestamp) == today {
			summary.TodayTrades++
			summary.TodayPnlTicks += pnl
		}
		if !t.Timestamp.UTC().Before(weekStart) {
			summary.WeekTrades++
			summary.WeekPnlTicks += pnl
		}
	}

	summary.WinRate = utils.Round2(utils.SafePct(float64(summary.Wins), float64(decided)))
	if summary.TotalTrades > 0 {
		summary.AvgPnlTicks = utils.Round2(summary.TotalPnlTicks / float64(summary.TotalTrades))
	}
	summary.TotalPnlTicks = utils.Round2(summary.TotalPnlTicks)
	summary.TodayPnlTicks = utils.Round2(summary.TodayPnlTicks)
	summary.WeekPnlTicks = utils.Round2(summary.WeekPnlTicks)

	return summary, nil
}

// Streaks возвращает серии исходов в хронологическом порядке.
// Expired серию не продлевает и не обрывает - пропускается.
func (s *AnalyticsService) Streaks() (*StreakInfo, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}

	var outcomes []models.Outcome
	for _, t := range trades {
		if t.Outcome == models.OutcomeWin || t.Outcome == models.OutcomeLoss {
			outcomes = append(outcomes, t.Outcome)
		}
	}

	info := &StreakInfo{}
	if len(outcomes) == 0 {
		return info, nil
	}

	var curWin, curLoss int
	for _, o := range outcomes {
		if o == models.OutcomeWin {
			curWin++
			curLoss = 0
			if curWin > info.MaxWinStreak {
				info.MaxWinStreak = curWin
			}
		} else {
			curLoss++
			curWin = 0
			if curLoss > info.MaxLossStreak {
				info.MaxLossStreak = curLoss
			}
		}
	}

	last := outcomes[len(outcomes)-1]
	info.CurrentStreakType = string(last)
	for i := len(outcomes) - 1; i >= 0 && outcomes[i] == last; i-- {
		info.CurrentStreak++
	}

	return info, nil
}

// ConfidenceBuckets группирует win/loss сделки по диапазонам уверенности.
// Диапазоны фиксированные: 90-100, 80-89, ..., 50-59, below 50.
func (s *AnalyticsService) ConfidenceBuckets() ([]BucketStat, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}

	labels := []string{"90-100", "80-89", "70-79", "60-69", "50-59", "below 50"}
	byLabel := make(map[string]*BucketStat, len(labels))

	for _, t := range trades {
		if t.Outcome != models.OutcomeWin && t.Outcome != models.OutcomeLoss {
			continue
		}
		label := confidenceLabel(t.Confidence)
		b := byLabel[label]
		if b == nil {
			b = &BucketStat{Label: label}
			byLabel[label] = b
		}
		addToBucket(b, t)
	}

	var result []BucketStat
	for _, label := range labels {
		if b, ok := byLabel[label]; ok {
			finishBucket(b)
			result = append(result, *b)
		}
	}
	return result, nil
}

// AnalyzeConfidenceThresholds перебирает пороги 50..95 с шагом 5:
// какие результаты дал бы журнал, если бы min_confidence был равен
// порогу. Рекомендация повышения выдается только когда более высокий
// порог показывает СТРОГО лучшее матожидание на выборке >= 20 сделок.
// Рекомендация advisory: применяется отдельным явным действием.
func (s *AnalyticsService) AnalyzeConfidenceThresholds() (*TuningReport, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	report := &TuningReport{CurrentThreshold: settings.MinConfidence}

	var decided []*models.Trade
	for _, t := range trades {
		if t.Outcome == models.OutcomeWin || t.Outcome == models.OutcomeLoss {
			decided = append(decided, t)
		}
	}

	if len(decided) < minTradesForAnalysis {
		report.Status = "insufficient_data"
		report.Message = fmt.Sprintf("Need at least %d completed trades for analysis, have %d",
			minTradesForAnalysis, len(decided))
		return report, nil
	}

	for threshold := 50; threshold <= 95; threshold += 5 {
		stat := thresholdStat(decided, threshold)
		if stat.Trades < minTradesPerThreshold {
			continue
		}
		report.Analysis = append(report.Analysis, stat)
	}

	if len(report.Analysis) == 0 {
		report.Status = "insufficient_data"
		report.Message = "Not enough trades at various confidence levels"
		return report, nil
	}
	report.Status = "success"

	// База сравнения - текущий порог (или ближайший проанализированный снизу)
	baseline := report.Analysis[0]
	for _, stat := range report.Analysis {
		if stat.Threshold <= report.CurrentThreshold {
			baseline = stat
		}
	}

	var best *ThresholdStat
	for i := range report.Analysis {
		stat := &report.Analysis[i]
		if stat.Threshold <= report.CurrentThreshold || stat.Trades < minTradesForRecommendation {
			continue
		}
		if stat.Expectancy > baseline.Expectancy && (best == nil || stat.Expectancy > best.Expectancy) {
			best = stat
		}
	}

	if best != nil {
		threshold := best.Threshold
		report.RecommendedThreshold = &threshold
		report.Recommendation = fmt.Sprintf(
			"Raising min_confidence to %d%% would improve expectancy from %.2f to %.2f ticks/trade over %d trades",
			threshold, baseline.Expectancy, best.Expectancy, best.Trades)
	}

	return report, nil
}

// Tickers возвращает разбивку по инструментам (лучший/худший по P&L).
func (s *AnalyticsService) Tickers() (*TickerBreakdown, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}

	byTicker := groupBuckets(trades, func(t *models.Trade) string { return t.Ticker })
	sort.Slice(byTicker, func(i, j int) bool { return byTicker[i].TotalPnl > byTicker[j].TotalPnl })

	breakdown := &TickerBreakdown{All: byTicker}
	if len(byTicker) > 0 {
		breakdown.Best = &byTicker[0]
		breakdown.Worst = &byTicker[len(byTicker)-1]
	}
	return breakdown, nil
}

// Direction возвращает разбивку long против short.
func (s *AnalyticsService) Direction() (map[string]BucketStat, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}

	result := make(map[string]BucketStat)
	for _, b := range groupBuckets(trades, func(t *models.Trade) string { return string(t.Direction) }) {
		result[b.Label] = b
	}
	return result, nil
}

// Hourly возвращает распределение результатов по часам (UTC).
func (s *AnalyticsService) Hourly() ([]BucketStat, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}

	buckets := groupBuckets(trades, func(t *models.Trade) string {
		return fmt.Sprintf("%02d:00", t.Timestamp.UTC().Hour())
	})
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Label < buckets[j].Label })
	return buckets, nil
}

// Weekday возвращает распределение результатов по дням недели.
func (s *AnalyticsService) Weekday() ([]BucketStat, error) {
	trades, err := s.tradeRepo.GetResolved(time.Time{})
	if err != nil {
		return nil, err
	}

	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	byDay := make(map[string]*BucketStat)
	for _, t := range trades {
		if t.Outcome != models.OutcomeWin && t.Outcome != models.OutcomeLoss {
			continue
		}
		label := t.Timestamp.UTC().Weekday().String()[:3]
		b := byDay[label]
		if b == nil {
			b = &BucketStat{Label: label}
			byDay[label] = b
		}
		addToBucket(b, t)
	}

	var result []BucketStat
	for _, day := range order {
		if b, ok := byDay[day.String()[:3]]; ok {
			finishBucket(b)
			result = append(result, *b)
		}
	}
	return result, nil
}

// Daily возвращает дневные ряды win-rate и кумулятивного P&L
// за последние days дней (для графиков дашборда).
func (s *AnalyticsService) Daily(days int) ([]DailyPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := utils.GetDayStartFrom(time.Now().AddDate(0, 0, -days))

	trades, err := s.tradeRepo.GetResolved(since)
	if err != nil {
		return nil, err
	}

	type dayAgg struct {
		wins, losses int
		pnl          float64
	}
	byDate := make(map[string]*dayAgg)
	var dates []string
	for _, t := range trades {
		if t.Outcome != models.OutcomeWin && t.Outcome != models.OutcomeLoss {
			continue
		}
		date := utils.DateKey(t.Timestamp)
		agg := byDate[date]
		if agg == nil {
			agg = &dayAgg{}
			byDate[date] = agg
			dates = append(dates, date)
		}
		if t.Outcome == models.OutcomeWin {
			agg.wins++
		} else {
			agg.losses++
		}
		agg.pnl += pnlOf(t)
	}
	sort.Strings(dates)

	var result []DailyPoint
	var cumulative float64
	for _, date := range dates {
		agg := byDate[date]
		cumulative += agg.pnl
		result = append(result, DailyPoint{
			Date:          date,
			Wins:          agg.wins,
			Losses:        agg.losses,
			WinRate:       utils.Round2(utils.SafePct(float64(agg.wins), float64(agg.wins+agg.losses))),
			DailyPnl:      utils.Round2(agg.pnl),
			CumulativePnl: utils.Round2(cumulative),
		})
	}
	return result, nil
}

// Full собирает все срезы одним снимком для дашборда.
func (s *AnalyticsService) Full() (*FullAnalytics, error) {
	performance, err := s.Performance()
	if err != nil {
		return nil, err
	}
	streaks, err := s.Streaks()
	if err != nil {
		return nil, err
	}
	confidence, err := s.ConfidenceBuckets()
	if err != nil {
		return nil, err
	}
	tickers, err := s.Tickers()
	if err != nil {
		return nil, err
	}
	direction, err := s.Direction()
	if err != nil {
		return nil, err
	}
	hourly, err := s.Hourly()
	if err != nil {
		return nil, err
	}
	weekday, err := s.Weekday()
	if err != nil {
		return nil, err
	}
	daily, err := s.Daily(30)
	if err != nil {
		return nil, err
	}

	// Счетчики отказов за последние 7 дней: чем чаще всего режутся сигналы
	rejections, err := s.signalRepo.RejectionCounts(time.Now().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	return &FullAnalytics{
		Performance: *performance,
		Streaks:     *streaks,
		Confidence:  confidence,
		Tickers:     *tickers,
		Direction:   direction,
		Hourly:      hourly,
		Weekday:     weekday,
		Daily:       daily,
		Rejections:  rejections,
		GeneratedAt: time.Now(),
	}, nil
}

// ============ Внутренние помощники ============

func pnlOf(t *models.Trade) float64 {
	if t.PnlTicks == nil {
		return 0
	}
	return *t.PnlTicks
}

func confidenceLabel(confidence int) string {
	switch {
	case confidence >= 90:
		return "90-100"
	case confidence >= 80:
		return "80-89"
	case confidence >= 70:
		return "70-79"
	case confidence >= 60:
		return "60-69"
	case confidence >= 50:
		return "50-59"
	default:
		return "below 50"
	}
}

func addToBucket(b *BucketStat, t *models.Trade) {
	b.Trades++
	if t.Outcome == models.OutcomeWin {
		b.Wins++
	} else {
		b.Losses++
	}
	b.TotalPnl += pnlOf(t)
}

func finishBucket(b *BucketStat) {
	b.WinRate = utils.Round2(utils.SafePct(float64(b.Wins), float64(b.Wins+b.Losses)))
	if b.Trades > 0 {
		b.AvgPnl = utils.Round2(b.TotalPnl / float64(b.Trades))
	}
	b.TotalPnl = utils.Round2(b.TotalPnl)
}

// groupBuckets агрегирует win/loss сделки по произвольному ключу
func groupBuckets(trades []*models.Trade, keyFn func(*models.Trade) string) []BucketStat {
	byKey := make(map[string]*BucketStat)
	var order []string
	for _, t := range trades {
		if t.Outcome != models.OutcomeWin && t.Outcome != models.OutcomeLoss {
			continue
		}
		key := keyFn(t)
		b := byKey[key]
		if b == nil {
			b = &BucketStat{Label: key}
			byKey[key] = b
			order = append(order, key)
		}
		addToBucket(b, t)
	}

	result := make([]BucketStat, 0, len(order))
	for _, key := range order {
		finishBucket(byKey[key])
		result = append(result, *byKey[key])
	}
	return result
}

// thresholdStat считает результаты выборки "confidence >= threshold"
func thresholdStat(trades []*models.Trade, threshold int) ThresholdStat {
	stat := ThresholdStat{Threshold: threshold}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.Confidence < threshold {
			continue
		}
		pnl := pnlOf(t)
		stat.Trades++
		stat.TotalPnl += pnl
		if t.Outcome == models.OutcomeWin {
			stat.Wins++
			grossProfit += pnl
		} else {
			stat.Losses++
			grossLoss += -pnl
		}
	}

	if stat.Trades == 0 {
		return stat
	}

	stat.WinRate = utils.Round2(utils.SafePct(float64(stat.Wins), float64(stat.Trades)))
	stat.TotalPnl = utils.Round2(stat.TotalPnl)

	if grossLoss > 0 {
		stat.ProfitFactor = utils.Round2(grossProfit / grossLoss)
	} else if grossProfit > 0 {
		// без убытков фактор не определен, отдаем валовую прибыль
		stat.ProfitFactor = utils.Round2(grossProfit)
	}

	// Матожидание: p(win) x средний win - p(loss) x средний loss
	winRate := float64(stat.Wins) / float64(stat.Trades)
	var avgWin, avgLoss float64
	if stat.Wins > 0 {
		avgWin = grossProfit / float64(stat.Wins)
	}
	if stat.Losses > 0 {
		avgLoss = grossLoss / float64(stat.Losses)
	}
	stat.Expectancy = utils.Round2(winRate*avgWin - (1-winRate)*avgLoss)

	return stat
}
