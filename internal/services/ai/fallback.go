package ai

import (
	"github.com/verveo/todo-generator/internal/datetime"
	"github.com/verveo/todo-generator/internal/models"
)

// FallbackConfidence marks a record synthesized without the model.
const FallbackConfidence = 0.3

// Fallback builds a complete record from the prompt alone. It never touches
// the network and has no CreatedBy.
func Fallback(prompt string, clock datetime.Clock, durationHours int) models.GeneratedTodo {
	if durationHours <= 0 {
		durationHours = DefaultDurationHours
	}
	startTime := clock.OffsetHours(StartOffsetHours)
	return models.GeneratedTodo{
		Title:       "Todo: " + truncateRunes(prompt, TitlePromptRunes) + "...",
		Description: "Thực hiện công việc: " + prompt,
		StartTime:   startTime,
		EndTime:     clock.OffsetHoursFrom(startTime, durationHours),
		Labels:      []string{DefaultLabel},
		Priority:    models.PriorityMedium,
		Message:     "Hãy hoàn thành: " + prompt,
		Confidence:  FallbackConfidence,
	}
}
