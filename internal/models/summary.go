package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSummary is one finished visit.
type SessionSummary struct {
	ID                     uuid.UUID `json:"id"`
	UserID                 uuid.UUID `json:"user_id"`
	Routine                string    `json:"routine"`
	TotalScreenTimeSeconds int       `json:"total_screen_time_seconds"`
	TotalBreakTimeSeconds  int       `json:"total_break_time_seconds"`
	BreakCompletionRate    *float64  `json:"break_completion_rate"`
	BlinkCount             int       `json:"blink_count"`
	CreatedAt              time.Time `json:"created_at"`
}

type SummaryRequest struct {
	TotalScreenTime     *float64 `json:"total_screen_time"`
	TotalBreakTime      *float64 `json:"total_break_time"`
	BreakCompletionRate *float64 `json:"break_completion_rate"`
}

type SummaryResult struct {
	TotalScreenTime     float64   `json:"total_screen_time"`
	TotalBreakTime      float64   `json:"total_break_time"`
	BreakCompletionRate float64   `json:"break_completion_rate"`
	SessionEfficiency   float64   `json:"session_efficiency"`
	AverageScreenTime   float64   `json:"average_screen_time"`
	AverageBreakTime    float64   `json:"average_break_time"`
	TotalRecentSessions int       `json:"total_recent_sessions"`
	RecentScreenTimes   []float64 `json:"recent_screen_times"`
	RecentBreakTimes    []float64 `json:"recent_break_times"`
}

type BlinkCountRequest struct {
	BlinkCount      *float64 `json:"blink_count"`
	SessionDuration *float64 `json:"session_duration"`
}

type BlinkCountResult struct {
	NewBlinkCount   float64 `json:"new_blink_count"`
	UpdatedAverage  float64 `json:"updated_average"`
	SessionDuration float64 `json:"session_duration"`
}
