package models

import (
	"time"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is stamped on every user row written by this build.
const CurrentSchemaVersion = 1

const (
	DefaultBlinkRate          = 15.0
	DefaultScreenTimeGoal     = 8.0
	DefaultFocusSessionLength = 60
	MaxRecentEntries          = 7
)

type User struct {
	ID                        uuid.UUID `json:"id"`
	Username                  string    `json:"username"`
	PasswordHash              string    `json:"-"`
	SchemaVersion             int       `json:"schema_version"`
	LatestBlinkCount          float64   `json:"latest_blink_count"`
	LatestBreakSuccessRate    float64   `json:"latest_break_success_rate"`
	RecentScreenTimes         []float64 `json:"recent_screen_times"`
	RecentBreakTimes          []float64 `json:"recent_break_times"`
	BreakVibe                 string    `json:"break_vibe"`
	FavoriteSnack             string    `json:"favorite_snack"`
	ScreenTimeGoalHours       float64   `json:"screen_time_goal_hours"`
	FocusSessionLengthMinutes int       `json:"focus_session_length_minutes"`
	Hobbies                   []string  `json:"hobbies"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// Preferences are the free-text answers that personalise guidance.
type Preferences struct {
	BreakVibe     string `json:"break_vibe"`
	FavoriteSnack string `json:"favorite_snack"`
}

func (u *User) Preferences() Preferences {
	return Preferences{BreakVibe: u.BreakVibe, FavoriteSnack: u.FavoriteSnack}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type LoginResponse struct {
	AuthTokens
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsSurvey bool      `json:"is_survey"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Profile is what GET /user/me returns.
type Profile struct {
	UserID             uuid.UUID   `json:"user_id"`
	Username           string      `json:"username"`
	AverageBlink       float64     `json:"average_blink"`
	BreakSuccessRate   float64     `json:"break_success_rate"`
	RecentScreenTimes  []float64   `json:"recent_screen_times"`
	RecentBreakTimes   []float64   `json:"recent_break_times"`
	AverageUsageTime   float64     `json:"average_usage_time"`
	WeeklyTrend        string      `json:"weekly_trend"`
	ScreenTimeGoal     float64     `json:"screen_time_goal"`
	FocusSessionLength int         `json:"focus_session_length"`
	Hobbies            []string    `json:"hobbies"`
	Preferences        Preferences `json:"preferences"`
}

// UpdateProfileRequest carries optional fields; nil means unchanged.
type UpdateProfileRequest struct {
	ScreenTimeGoalHours       *float64  `json:"screen_time_goal_hours"`
	FocusSessionLengthMinutes *int      `json:"focus_session_length_minutes"`
	BreakVibe                 *string   `json:"break_vibe"`
	FavoriteSnack             *string   `json:"favorite_snack"`
	Hobbies                   *[]string `json:"hobbies"`
}
