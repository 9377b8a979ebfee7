package session

import (
	"time"

	"blinkfit-backend/internal/blink"
)

// Phase is one half of a routine cycle.
type Phase string

const (
	PhaseFocus Phase = "focus"
	PhaseBreak Phase = "break"
)

// EventType names a Session notification.
type EventType string

const (
	EventBlink         EventType = "blink"
	EventPhaseComplete EventType = "phase_complete"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventEnded         EventType = "ended"
)

// PhaseChange is carried by EventPhaseComplete.
type PhaseChange struct {
	From        Phase `json:"from"`
	To          Phase `json:"to"`
	Seconds     int   `json:"seconds"`
	BlinkCount  int   `json:"blink_count"`
	CyclesSoFar int   `json:"cycles"`
}

// Event is delivered to the Session listener. Exactly one of Blink, Change
// and Summary is set, depending on Type.
type Event struct {
	Type    EventType         `json:"type"`
	Phase   Phase             `json:"phase"`
	Blink   *blink.BlinkEvent `json:"blink,omitempty"`
	Change  *PhaseChange      `json:"change,omitempty"`
	Summary *Summary          `json:"summary,omitempty"`
	At      time.Time         `json:"at"`
}

// Summary is what a visit reports when it ends.
type Summary struct {
	Routine                string    `json:"routine"`
	TotalScreenTimeSeconds int       `json:"total_screen_time_seconds"`
	TotalBreakTimeSeconds  int       `json:"total_break_time_seconds"`
	BreakCompletionRate    float64   `json:"break_completion_rate"`
	BreaksStarted          int       `json:"breaks_started"`
	BreaksCompleted        int       `json:"breaks_completed"`
	BlinkCount             int       `json:"blink_count"`
	StartedAt              time.Time `json:"started_at"`
	EndedAt                time.Time `json:"ended_at"`
}

// BlinksPerMinute is the focus-time blink rate of the visit, 0 when no
// screen time was measured.
func (s Summary) BlinksPerMinute() float64 {
	if s.TotalScreenTimeSeconds <= 0 {
		return 0
	}
	return float64(s.BlinkCount) / (float64(s.TotalScreenTimeSeconds) / 60)
}

// State is a point-in-time view of a running Session.
type State struct {
	Routine                string `json:"routine"`
	Phase                  Phase  `json:"phase"`
	BlinkCount             int    `json:"blink_count"`
	SecondsRemaining       int    `json:"seconds_remaining"`
	Paused                 bool   `json:"paused"`
	TotalScreenTimeSeconds int    `json:"total_screen_time_seconds"`
	TotalBreakTimeSeconds  int    `json:"total_break_time_seconds"`
	Ended                  bool   `json:"ended"`
}
