package candles

import (
	"errors"
	"sort"
	"sync"
	"time"

	"signaldesk/internal/models"
	"signaldesk/pkg/utils"
)

// ReadyThreshold - минимальное количество минутных свечей
// для включения оценки сигналов по тикеру
const ReadyThreshold = 50

// Ошибки хранилища свечей
var (
	ErrUnknownTimeframe = errors.New("unknown candle timeframe")
	ErrEmptyTicker      = errors.New("candle ticker is empty")
)

// AddResult - результат добавления свечи
type AddResult struct {
	// BecameReady - тикер только что пересёк порог готовности
	BecameReady bool

	// Aggregated - свечи старших таймфреймов, собранные из этой минутки
	// (полные окна 5m/15m). Пустой срез если окно ещё не закрыто
	Aggregated []models.Candle
}

// Store - in-memory хранилище свечей по тикерам
//
// Назначение:
// - принимает минутные свечи из webhook'ов и ведёт кольцевые буферы
// - агрегирует полные окна 5m/15m из минуток
// - отдаёт срезы свечей классификатору и последнюю цену трекеру
//
// Буферы ограничены: 100 x 1m, 50 x 5m, 30 x 15m на тикер.
// Вставка идемпотентна по OpenTime - повторная свеча с тем же
// временем открытия перезаписывает предыдущую (last-write-wins,
// TradingView может прислать алерт повторно)
type Store struct {
	mu      sync.RWMutex
	tickers map[string]*tickerBuffers
}

// tickerBuffers - буферы одного тикера по таймфреймам
type tickerBuffers struct {
	m1  *ring
	m5  *ring
	m15 *ring
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		tickers: make(map[string]*tickerBuffers),
	}
}

// Add добавляет свечу в буфер её тикера и таймфрейма
//
// Для минутных свечей дополнительно:
// - проверяет пересечение порога готовности (49 -> 50)
// - пытается собрать завершённые окна 5m и 15m
//
// Тикер нормализуется на входе: "CME_MINI:MNQ1!" и "MNQ=F"
// попадают в один буфер MNQ
func (s *Store) Add(c models.Candle) (AddResult, error) {
	var res AddResult

	if !c.Timeframe.Valid() {
		return res, ErrUnknownTimeframe
	}

	ticker := models.NormalizeTicker(c.Ticker)
	if ticker == "" {
		return res, ErrEmptyTicker
	}
	c.Ticker = ticker

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.tickers[ticker]
	if !ok {
		b = &tickerBuffers{
			m1:  newRing(models.CandleCapacity1m),
			m5:  newRing(models.CandleCapacity5m),
			m15: newRing(models.CandleCapacity15m),
		}
		s.tickers[ticker] = b
	}

	switch c.Timeframe {
	case models.Timeframe1m:
		before := b.m1.len()
		b.m1.upsert(c)
		res.BecameReady = before < ReadyThreshold && b.m1.len() >= ReadyThreshold

		// Завершилось ли окно старшего таймфрейма этой минуткой
		if agg, ok := b.aggregate(c.OpenTime, 5*time.Minute, models.Timeframe5m); ok {
			b.m5.upsert(agg)
			res.Aggregated = append(res.Aggregated, agg)
		}
		if agg, ok := b.aggregate(c.OpenTime, 15*time.Minute, models.Timeframe15m); ok {
			b.m15.upsert(agg)
			res.Aggregated = append(res.Aggregated, agg)
		}

	case models.Timeframe5m:
		b.m5.upsert(c)

	case models.Timeframe15m:
		b.m15.upsert(c)
	}

	return res, nil
}

// aggregate собирает свечу таймфрейма window из минуток,
// если свеча last закрывает выровненное окно и все минутки окна на месте
//
// Правила агрегации: open первой минутки, max high, min low,
// close последней, сумма volume
func (b *tickerBuffers) aggregate(last time.Time, window time.Duration, tf models.Timeframe) (models.Candle, bool) {
	start := utils.AlignToWindow(last, window)
	n := int(window / time.Minute)

	// Окно завершено только последней минуткой
	if !last.Equal(start.Add(time.Duration(n-1) * time.Minute)) {
		return models.Candle{}, false
	}

	var out models.Candle
	for i := 0; i < n; i++ {
		c, ok := b.m1.at(start.Add(time.Duration(i) * time.Minute))
		if !ok {
			// Пропуск минутки - окно неполное, не агрегируем
			return models.Candle{}, false
		}

		if i == 0 {
			out = c
			out.Timeframe = tf
			out.OpenTime = start
			continue
		}

		if c.High > out.High {
			out.High = c.High
		}
		if c.Low < out.Low {
			out.Low = c.Low
		}
		out.Close = c.Close
		out.Volume += c.Volume
	}

	return out, true
}

// Ready сообщает, накоплено ли достаточно минуток для оценки сигналов
func (s *Store) Ready(ticker string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.tickers[models.NormalizeTicker(ticker)]
	if !ok {
		return false
	}
	return b.m1.len() >= ReadyThreshold
}

// Count возвращает количество свечей в буфере тикера и таймфрейма
func (s *Store) Count(ticker string, tf models.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.tickers[models.NormalizeTicker(ticker)]
	if !ok {
		return 0
	}
	r := b.buffer(tf)
	if r == nil {
		return 0
	}
	return r.len()
}

// Recent возвращает копию последних n свечей (по возрастанию OpenTime)
//
// n <= 0 или n больше буфера - возвращается весь буфер
func (s *Store) Recent(ticker string, tf models.Timeframe, n int) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.tickers[models.NormalizeTicker(ticker)]
	if !ok {
		return nil
	}
	r := b.buffer(tf)
	if r == nil {
		return nil
	}
	return r.tail(n)
}

// LastClose возвращает цену закрытия последней минутки тикера
//
// Используется трекером исходов как текущая цена
func (s *Store) LastClose(ticker string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.tickers[models.NormalizeTicker(ticker)]
	if !ok || b.m1.len() == 0 {
		return 0, false
	}
	return b.m1.last().Close, true
}

// LastCandle возвращает последнюю свечу тикера и таймфрейма
func (s *Store) LastCandle(ticker string, tf models.Timeframe) (models.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.tickers[models.NormalizeTicker(ticker)]
	if !ok {
		return models.Candle{}, false
	}
	r := b.buffer(tf)
	if r == nil || r.len() == 0 {
		return models.Candle{}, false
	}
	return r.last(), true
}

// Tickers возвращает отсортированный список тикеров с данными
func (s *Store) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tickers))
	for t := range s.tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (b *tickerBuffers) buffer(tf models.Timeframe) *ring {
	switch tf {
	case models.Timeframe1m:
		return b.m1
	case models.Timeframe5m:
		return b.m5
	case models.Timeframe15m:
		return b.m15
	}
	return nil
}

// ============================================================
// ring - ограниченный буфер свечей, отсортированный по OpenTime
// ============================================================

type ring struct {
	capacity int
	data     []models.Candle
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity}
}

func (r *ring) len() int {
	return len(r.data)
}

func (r *ring) last() models.Candle {
	return r.data[len(r.data)-1]
}

// upsert вставляет свечу с сохранением порядка по OpenTime
// Совпадение OpenTime - перезапись (last-write-wins)
func (r *ring) upsert(c models.Candle) {
	// Обычный случай - свеча новее всех, сканируем с конца
	for i := len(r.data) - 1; i >= 0; i-- {
		if r.data[i].OpenTime.Equal(c.OpenTime) {
			r.data[i] = c
			return
		}
		if r.data[i].OpenTime.Before(c.OpenTime) {
			r.data = append(r.data, models.Candle{})
			copy(r.data[i+2:], r.data[i+1:])
			r.data[i+1] = c
			r.trim()
			return
		}
	}

	// Старше всех имеющихся
	r.data = append(r.data, models.Candle{})
	copy(r.data[1:], r.data)
	r.data[0] = c
	r.trim()
}

func (r *ring) trim() {
	if len(r.data) > r.capacity {
		r.data = r.data[len(r.data)-r.capacity:]
	}
}

// at ищет свечу по точному OpenTime
func (r *ring) at(t time.Time) (models.Candle, bool) {
	// Буферы короткие, линейный поиск с конца дешевле бинарного
	for i := len(r.data) - 1; i >= 0; i-- {
		if r.data[i].OpenTime.Equal(t) {
			return r.data[i], true
		}
		if r.data[i].OpenTime.Before(t) {
			break
		}
	}
	return models.Candle{}, false
}

// tail возвращает копию последних n свечей
func (r *ring) tail(n int) []models.Candle {
	if n <= 0 || n > len(r.data) {
		n = len(r.data)
	}
	out := make([]models.Candle, n)
	copy(out, r.data[len(r.data)-n:])
	return out
}
