package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"signaldesk/internal/models"
	"signaldesk/pkg/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClassifier - классификатор на chat completions API
//
// Каждый вызов ограничен таймаутом и rate limiter'ом. Ответ модели
// запрашивается в режиме json_object и парсится в Result.
// Любая ошибка (сеть, статус, парсинг, бессмысленный вердикт)
// возвращается как *Error и не ретраится
type OpenAIClassifier struct {
	apiKey  string
	model   string
	url     string
	timeout time.Duration
	client  *http.Client
	limiter *ratelimit.RateLimiter
}

// NewOpenAIClassifier создает классификатор с указанной моделью
func NewOpenAIClassifier(apiKey, model string, timeout time.Duration, requestRate float64) *OpenAIClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClassifier{
		apiKey:  apiKey,
		model:   model,
		url:     openAIChatCompletionsURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		limiter: ratelimit.NewRateLimiter(requestRate, requestRate*2),
	}
}

// Структуры запроса/ответа chat completions

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat responseFmt   `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Classify отправляет рыночный контекст модели и разбирает вердикт
func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: "openai", Err: err}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(req)},
			{Role: "user", Content: BuildUserPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: responseFmt{Type: "json_object"},
	})
	if err != nil {
		return nil, &Error{Provider: "openai", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: "openai", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Provider: "openai", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(respBody))),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &Error{Provider: "openai", StatusCode: resp.StatusCode, Err: err}
	}
	if chatResp.Error != nil {
		return nil, &Error{Provider: "openai", StatusCode: resp.StatusCode, Err: errors.New(chatResp.Error.Message)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &Error{Provider: "openai", Err: errors.New("empty choices in response")}
	}

	return parseVerdict(chatResp.Choices[0].Message.Content)
}

// parseVerdict разбирает JSON-вердикт модели и проверяет его на вменяемость
func parseVerdict(content string) (*Result, error) {
	result := &Result{}
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return nil, &Error{Provider: "openai", Err: fmt.Errorf("malformed verdict: %w", err)}
	}

	switch result.Direction {
	case models.DirectionLong, models.DirectionShort, models.DirectionNoTrade:
	default:
		return nil, &Error{Provider: "openai", Err: fmt.Errorf("unknown direction %q", result.Direction)}
	}

	if result.Confidence < 0 || result.Confidence > 100 {
		return nil, &Error{Provider: "openai", Err: fmt.Errorf("confidence out of range: %d", result.Confidence)}
	}

	// Торговый вердикт обязан нести уровни
	if result.Direction.Tradeable() && (result.Entry == 0 || result.Stop == 0 || result.Target == 0) {
		return nil, &Error{Provider: "openai", Err: errors.New("tradeable verdict without levels")}
	}

	return result, nil
}
