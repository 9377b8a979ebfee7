package models

import (
	"time"

	"blinkfit-backend/internal/blink"
)

// StartSessionRequest picks a preset routine by name, or "custom" with both
// durations set.
type StartSessionRequest struct {
	Routine      string `json:"routine"`
	FocusSeconds int    `json:"focus_seconds,omitempty"`
	BreakSeconds int    `json:"break_seconds,omitempty"`
}

type FrameInput struct {
	Landmarks []blink.Point `json:"landmarks"`
	At        *time.Time    `json:"at,omitempty"`
}

type FramesRequest struct {
	Frames []FrameInput `json:"frames"`
}

type FramesResult struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}
