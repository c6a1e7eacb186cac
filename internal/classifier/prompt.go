package classifier

import (
	"fmt"
	"strings"

	"signaldesk/internal/models"
)

// Базовый системный промпт классификатора
//
// Плейсхолдеры {emphasis_rules}, {caution_rules}, {time_rules},
// {direction_rules} заполняются из версионируемых PromptRules:
// тюнинг никогда не переписывает базовый текст, только секции правок
const systemPromptTemplate = `You are a disciplined intraday futures analyst evaluating micro futures setups (MNQ, MES, MGC).

Analyze the provided multi-timeframe candle data and decide whether a high-probability setup exists RIGHT NOW.

Rules:
- Respond with strict JSON only, no prose outside the JSON object.
- Direction must be "long", "short" or "no_trade".
- When direction is "no_trade", set entry, stop and target to 0.
- Stop must be beyond the most recent opposing swing point.
- Target must give at least 2:1 reward-to-risk unless the setup is exceptional.
- Confidence is an integer 0-100 reflecting setup quality, not hope.

{emphasis_rules}
{caution_rules}
{time_rules}
{direction_rules}

JSON schema:
{"direction": "long|short|no_trade", "confidence": 0-100, "entry": number, "stop": number, "target": number, "htf_bias": "BULLISH|BEARISH|NEUTRAL", "entry_type": "IMMEDIATE|WAIT_FOR_PULLBACK|WAIT_FOR_BREAKOUT", "rationale": "one short sentence"}`

// BuildSystemPrompt собирает системный промпт из базового шаблона
// и секций правок. Пустая секция заменяется пустой строкой
func BuildSystemPrompt(req Request) string {
	prompt := systemPromptTemplate

	prompt = strings.Replace(prompt, "{emphasis_rules}", renderRules("Emphasize", req.Rules.EmphasisRules), 1)
	prompt = strings.Replace(prompt, "{caution_rules}", renderRules("Avoid", req.Rules.CautionRules), 1)
	prompt = strings.Replace(prompt, "{time_rules}", renderRules("Time filters", req.Rules.TimeRules), 1)
	prompt = strings.Replace(prompt, "{direction_rules}", renderRules("Direction bias", req.Rules.DirectionRules), 1)

	// Схлопываем пустые строки от незаполненных секций
	for strings.Contains(prompt, "\n\n\n") {
		prompt = strings.ReplaceAll(prompt, "\n\n\n", "\n\n")
	}

	return prompt
}

// renderRules форматирует секцию правок как маркированный список
func renderRules(title string, rules []string) string {
	if len(rules) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":\n")
	for _, rule := range rules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildUserPrompt собирает пользовательскую часть промпта:
// тикер, текущая цена и сводка свечей по таймфреймам
func BuildUserPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ticker: %s\nCurrent price: %.2f\n", req.Ticker, req.CurrentPrice)

	writeCandleBlock(&b, "15m candles (oldest first)", req.Candles15m, 10)
	writeCandleBlock(&b, "5m candles (oldest first)", req.Candles5m, 12)
	writeCandleBlock(&b, "1m candles (oldest first)", req.Candles1m, 20)

	return b.String()
}

// writeCandleBlock печатает последние limit свечей блока
func writeCandleBlock(b *strings.Builder, title string, candles []models.Candle, limit int) {
	if len(candles) == 0 {
		return
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	fmt.Fprintf(b, "\n%s:\n", title)
	for _, c := range candles {
		fmt.Fprintf(b, "%s O:%.2f H:%.2f L:%.2f C:%.2f V:%.0f\n",
			c.OpenTime.UTC().Format("15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
}
