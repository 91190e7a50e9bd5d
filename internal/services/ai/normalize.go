package ai

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/verveo/todo-generator/internal/datetime"
	"github.com/verveo/todo-generator/internal/models"
)

const (
	// CreatedByModel attributes a record to the model. Only records built
	// from a parsed completion carry it.
	CreatedByModel = "DeepSeek-R1"

	// DefaultLabel is the category used when no usable labels were given.
	DefaultLabel = "Công việc"

	// DefaultConfidence applies to parsed completions that omit a score.
	DefaultConfidence = 0.8

	// TitlePromptRunes is how much of the prompt a synthesized title quotes.
	// The value is arbitrary; titles only need to be recognizable.
	TitlePromptRunes = 50

	// StartOffsetHours places a missing start time relative to now.
	StartOffsetHours = 1
)

// partialTodo is the shape the model is asked to return. Any field may be
// missing or of the wrong type; decodePartial leaves those nil.
type partialTodo struct {
	Title       *string
	Description *string
	StartTime   *string
	EndTime     *string
	Labels      []string
	Priority    *string
	Message     *string
	Confidence  *float64
}

// ExtractJSONObject returns the text between the first '{' and the last '}'.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// parseCompletion extracts and decodes the JSON object embedded in text.
// ok is false when there is no object or it does not parse.
func parseCompletion(text string) (partialTodo, bool) {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return partialTodo{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return partialTodo{}, false
	}
	return decodePartial(fields), true
}

// decodePartial decodes each field on its own so one mistyped value does not
// discard the others.
func decodePartial(fields map[string]json.RawMessage) partialTodo {
	var p partialTodo
	p.Title = decodeField[string](fields, "title")
	p.Description = decodeField[string](fields, "description")
	p.StartTime = decodeField[string](fields, "startTime")
	p.EndTime = decodeField[string](fields, "endTime")
	p.Priority = decodeField[string](fields, "priority")
	p.Message = decodeField[string](fields, "message")
	p.Confidence = decodeConfidence(fields)
	if labels := decodeField[[]string](fields, "labels"); labels != nil {
		p.Labels = *labels
	}
	return p
}

func decodeField[T any](fields map[string]json.RawMessage, key string) *T {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// decodeConfidence reads the score as a JSON number. Magnitudes beyond
// float64 become the matching infinity so the clamp still applies.
func decodeConfidence(fields map[string]json.RawMessage) *float64 {
	raw, ok := fields["confidence"]
	// json.Number would also accept a quoted number
	if !ok || len(raw) == 0 || raw[0] == '"' {
		return nil
	}
	n := decodeField[json.Number](fields, "confidence")
	if n == nil {
		return nil
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil
	}
	return &v
}

// Normalize turns a completion into a complete record. It reports false when
// the text holds no parsable JSON object, in which case the caller should use
// Fallback. Otherwise every missing or invalid field gets its own default.
func Normalize(text, prompt string, clock datetime.Clock, durationHours int) (models.GeneratedTodo, bool) {
	partial, ok := parseCompletion(text)
	if !ok {
		return models.GeneratedTodo{}, false
	}
	return coerce(partial, prompt, clock, durationHours), true
}

// coerce fills every field of the record from partial or its default.
func coerce(p partialTodo, prompt string, clock datetime.Clock, durationHours int) models.GeneratedTodo {
	if durationHours <= 0 {
		durationHours = DefaultDurationHours
	}

	title, hasTitle := nonEmpty(p.Title)
	if !hasTitle {
		title = "Todo từ: " + truncateRunes(prompt, TitlePromptRunes) + "..."
	}

	description, ok := nonEmpty(p.Description)
	if !ok {
		description = "Thực hiện: " + prompt
	}

	startTime, ok := nonEmpty(p.StartTime)
	if !ok {
		startTime = clock.OffsetHours(StartOffsetHours)
	}

	endTime, ok := nonEmpty(p.EndTime)
	if !ok || endsBeforeStart(clock, startTime, endTime) {
		endTime = clock.OffsetHoursFrom(startTime, durationHours)
	}

	labels := p.Labels
	if len(labels) == 0 {
		labels = []string{DefaultLabel}
	}

	priority := models.PriorityMedium
	if p.Priority != nil && models.Priority(*p.Priority).Valid() {
		priority = models.Priority(*p.Priority)
	}

	message, ok := nonEmpty(p.Message)
	if !ok {
		subject := prompt
		if hasTitle {
			subject = title
		}
		message = "Hãy hoàn thành: " + subject
	}

	confidence := DefaultConfidence
	if p.Confidence != nil {
		confidence = clamp01(*p.Confidence)
	}

	createdBy := CreatedByModel
	return models.GeneratedTodo{
		Title:       title,
		Description: description,
		StartTime:   startTime,
		EndTime:     endTime,
		Labels:      labels,
		Priority:    priority,
		Message:     message,
		Confidence:  confidence,
		CreatedBy:   &createdBy,
	}
}

// endsBeforeStart reports an inverted window. Values that do not parse are
// passed through untouched.
func endsBeforeStart(clock datetime.Clock, start, end string) bool {
	s, ok := clock.Parse(start)
	if !ok {
		return false
	}
	e, ok := clock.Parse(end)
	if !ok {
		return false
	}
	return e.Before(s)
}

func nonEmpty(s *string) (string, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", false
	}
	return *s, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
