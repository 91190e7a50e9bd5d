package models

// GeneratedTodo is the structured record inferred from a free-text prompt.
// Timestamps use the "YYYY-MM-DD HH:MM:SS" wall-clock form. CreatedBy is nil
// when every field was synthesized locally.
type GeneratedTodo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Labels      []string `json:"labels"`
	Priority    Priority `json:"priority"`
	Message     string   `json:"message"`
	Confidence  float64  `json:"confidence"`
	CreatedBy   *string  `json:"createdBy"`
}

// ModelDerived reports whether the record came from a parsed model response.
func (g GeneratedTodo) ModelDerived() bool {
	return g.CreatedBy != nil
}
