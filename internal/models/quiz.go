package models

import (
	"time"

	"github.com/google/uuid"
)

// Quiz question templates, indexed by question_id - 1.
var QuizQuestions = []string{
	"Vision device usage",
	"Eye conditions",
	"Eye fatigue frequency",
	"Daily screen time",
	"Break habits",
	"Light sensitivity",
	"Headaches/blurred vision",
}

type QuizAnswer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
	Level      int    `json:"level"`
}

// Subjective holds the free-form part of the onboarding quiz. Durations are
// in hours.
type Subjective struct {
	BreakPreference    string   `json:"break_preference,omitempty"`
	FavoriteSnack      string   `json:"favorite_snack,omitempty"`
	FocusSessionLength *float64 `json:"focus_session_length,omitempty"`
	ScreenTimeGoal     *float64 `json:"screen_time_goal,omitempty"`
}

type QuizResponse struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	SessionID   uuid.UUID    `json:"session_id"`
	Responses   []QuizAnswer `json:"responses"`
	Subjective  Subjective   `json:"subjective"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

type SubmitQuizRequest struct {
	Quiz       []QuizAnswer `json:"quiz"`
	Subjective *Subjective  `json:"subjective"`
}

type SubmitQuizResponse struct {
	Response *QuizResponse `json:"response"`
	Guide    *GuideResult  `json:"guide"`
}
