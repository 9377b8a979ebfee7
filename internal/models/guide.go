package models

import "time"

// GuideSource says which path produced a guide. Fallback results are never
// reported as model output.
type GuideSource string

const (
	SourceGemini           GuideSource = "gemini"
	SourceFallback         GuideSource = "fallback"
	SourceFallbackDisabled GuideSource = "fallback_disabled"
)

type Guide struct {
	WorkDuration    string   `json:"work_duration"`
	BreakDuration   string   `json:"break_duration"`
	ScreenTimeLimit string   `json:"screen_time_limit"`
	Exercises       []string `json:"exercises"`
}

type GuideResult struct {
	Guide       Guide       `json:"guide"`
	Source      GuideSource `json:"source"`
	GeneratedAt time.Time   `json:"generated_at"`
}

type ExerciseGuide struct {
	Message      string   `json:"message"`
	ActivityType string   `json:"activity_type"`
	Duration     string   `json:"duration"`
	Tips         []string `json:"tips"`
}

type ExerciseRequest struct {
	UserPreferences   []string `json:"user_preferences"`
	CurrentBreakCount int      `json:"current_break_count"`
	WorkDuration      int      `json:"work_duration"`
}

type ExerciseResult struct {
	Exercise   ExerciseGuide `json:"exercise"`
	BreakCount int           `json:"break_count"`
	Source     GuideSource   `json:"source"`
}
