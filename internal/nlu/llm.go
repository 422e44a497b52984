package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/scheduling-assistant/internal/llm"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/pkg/metrics"
)

const systemPrompt = `You extract meeting requests for a calendar assistant.
Today is %s (%s). Reply with a single JSON object and nothing else:
{
  "intent": "book_meeting" | "check_availability" | null,
  "date": "YYYY-MM-DD" or null,
  "time": "HH:MM" (24h) or null,
  "end_time": "HH:MM" (24h) or null,
  "duration": minutes as a number or null,
  "clarification_needed": true | false,
  "clarification_question": string or null
}
Resolve relative dates such as "tomorrow" or "next Friday" against today.
If the message is ambiguous, set clarification_needed and ask one short question.`

// llmResult mirrors the JSON the model is asked for. Fields are loose
// because models return numbers as strings and nulls freely.
type llmResult struct {
	Intent                *string         `json:"intent"`
	Date                  *string         `json:"date"`
	Time                  *string         `json:"time"`
	EndTime               *string         `json:"end_time"`
	Duration              json.RawMessage `json:"duration"`
	ClarificationNeeded   bool            `json:"clarification_needed"`
	ClarificationQuestion *string         `json:"clarification_question"`
}

// LLMParser asks a language model to extract the request.
type LLMParser struct {
	client      llm.Client
	model       string
	loc         *time.Location
	now         func() time.Time
	maxTokens   int
	temperature float64
}

// NewLLMParser creates a parser backed by client. An empty model uses the
// provider default.
func NewLLMParser(client llm.Client, modelName string, loc *time.Location, now func() time.Time) *LLMParser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &LLMParser{
		client:    client,
		model:     modelName,
		loc:       loc,
		now:       now,
		maxTokens: 256,
	}
}

// Parse implements Parser.
func (p *LLMParser) Parse(ctx context.Context, message string) (model.ParsedRequest, error) {
	if strings.TrimSpace(message) == "" {
		return model.ParsedRequest{}, fmt.Errorf("%w: empty message", ErrParseFailure)
	}

	today := p.now().In(p.loc)
	req := &llm.CompletionRequest{
		Model: p.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPrompt, today.Format("2006-01-02"), today.Weekday())},
			{Role: llm.RoleUser, Content: message},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	start := time.Now()
	resp, err := p.client.Complete(ctx, req)
	if err != nil {
		metrics.RecordLLMRequest(p.client.Name(), "error", time.Since(start).Seconds(), 0, 0)
		return model.ParsedRequest{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	metrics.RecordLLMRequest(p.client.Name(), "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	return decodeResult(resp.Content)
}

// decodeResult reads the first {...} block of the model output.
func decodeResult(content string) (model.ParsedRequest, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return model.ParsedRequest{}, fmt.Errorf("%w: no JSON object in model output", ErrParseFailure)
	}

	var res llmResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &res); err != nil {
		return model.ParsedRequest{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	parsed := model.ParsedRequest{
		Intent:              mapIntent(deref(res.Intent)),
		Date:                deref(res.Date),
		Time:                deref(res.Time),
		EndTime:             deref(res.EndTime),
		DurationMinutes:     flexibleMinutes(res.Duration),
		ClarificationNeeded: res.ClarificationNeeded,
	}
	if parsed.ClarificationNeeded {
		parsed.ClarificationQuestion = deref(res.ClarificationQuestion)
	}
	return parsed, nil
}

func mapIntent(raw string) model.Intent {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "book_meeting", "book", "schedule", "booking":
		return model.IntentBook
	case "check_availability", "availability":
		return model.IntentCheckAvailability
	default:
		return model.IntentUnknown
	}
}

// flexibleMinutes accepts 30, "30", "30 minutes" or "1.5 hours".
func flexibleMinutes(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	if len(fields) > 1 && strings.HasPrefix(fields[1], "h") {
		n *= 60
	}
	return int(n)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
