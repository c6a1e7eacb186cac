package classifier

import (
	"context"
	"fmt"

	"signaldesk/internal/models"
)

// Request - входные данные для оценки рыночной ситуации по тикеру
type Request struct {
	Ticker       string
	CurrentPrice float64

	// Свечи по таймфреймам, по возрастанию времени
	Candles1m  []models.Candle
	Candles5m  []models.Candle
	Candles15m []models.Candle

	// Правки промпта из одобренных рекомендаций тюнинга
	Rules models.PromptRules
}

// Result - вердикт классификатора
//
// Direction == no_trade означает отсутствие сетапа, уровни
// в этом случае нулевые
type Result struct {
	Direction  models.Direction `json:"direction"`
	Confidence int              `json:"confidence"`
	Entry      float64          `json:"entry"`
	Stop       float64          `json:"stop"`
	Target     float64          `json:"target"`
	HTFBias    models.HTFBias   `json:"htf_bias"`
	EntryType  string           `json:"entry_type"`
	Rationale  string           `json:"rationale"`
}

// Classifier оценивает рыночную ситуацию и выдает торговый вердикт
//
// Реализации: OpenAIClassifier (chat completions) и MTFClassifier
// (локальный multi-timeframe анализ без внешних вызовов)
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Result, error)
}

// Error - ошибка внешнего классификатора
//
// Сигнал, на котором классификатор упал, пропускается без retry:
// через минуту придет следующая свеча и данные будут свежее
type Error struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classifier %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classifier %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable помечает ошибку классификатора как не подлежащую retry
func (e *Error) Retryable() bool {
	return false
}
