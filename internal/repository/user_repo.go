package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"blinkfit-backend/internal/database"
	"blinkfit-backend/internal/models"
)

type UserRepo struct {
	db database.Querier
}

func NewUserRepo(db database.Querier) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, username, password_hash, schema_version, latest_blink_count, latest_break_success_rate,
	recent_screen_times, recent_break_times, break_vibe, favorite_snack,
	screen_time_goal_hours, focus_session_length_minutes, hobbies, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.SchemaVersion, &u.LatestBlinkCount, &u.LatestBreakSuccessRate,
		&u.RecentScreenTimes, &u.RecentBreakTimes, &u.BreakVibe, &u.FavoriteSnack,
		&u.ScreenTimeGoalHours, &u.FocusSessionLengthMinutes, &u.Hobbies, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts the user and fills in the column defaults.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, schema_version)
		VALUES ($1, $2, $3, $4)
		RETURNING latest_blink_count, latest_break_success_rate, screen_time_goal_hours,
			focus_session_length_minutes, created_at, updated_at`

	user.ID = uuid.New()
	user.SchemaVersion = models.CurrentSchemaVersion
	user.RecentScreenTimes = []float64{}
	user.RecentBreakTimes = []float64{}
	user.Hobbies = []string{}

	return r.db.QueryRow(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.SchemaVersion,
	).Scan(
		&user.LatestBlinkCount, &user.LatestBreakSuccessRate, &user.ScreenTimeGoalHours,
		&user.FocusSessionLengthMinutes, &user.CreatedAt, &user.UpdatedAt,
	)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// UpdateProfile writes the user-editable fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET break_vibe = $1, favorite_snack = $2, screen_time_goal_hours = $3,
			focus_session_length_minutes = $4, hobbies = $5, schema_version = $6, updated_at = NOW()
		WHERE id = $7`,
		user.BreakVibe, user.FavoriteSnack, user.ScreenTimeGoalHours,
		user.FocusSessionLengthMinutes, user.Hobbies, models.CurrentSchemaVersion, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepo) UpdateBlinkAverage(ctx context.Context, id uuid.UUID, average float64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE users SET latest_blink_count = $1, updated_at = NOW() WHERE id = $2",
		average, id,
	)
	if err != nil {
		return fmt.Errorf("update blink average: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AppendSessionTimes pushes one visit's minutes onto the recent arrays,
// keeping only the newest MaxRecentEntries, and optionally records the break
// completion rate. The trim happens in SQL so concurrent summaries for the
// same user cannot grow the arrays past the limit.
func (r *UserRepo) AppendSessionTimes(ctx context.Context, id uuid.UUID, screenMinutes, breakMinutes float64, completionRate *float64) (*models.User, error) {
	query := `
		UPDATE users SET
			recent_screen_times = (recent_screen_times || $2::float8)[greatest(cardinality(recent_screen_times) + 2 - $5, 1):],
			recent_break_times = (recent_break_times || $3::float8)[greatest(cardinality(recent_break_times) + 2 - $5, 1):],
			latest_break_success_rate = COALESCE($4, latest_break_success_rate),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRow(ctx, query, id, screenMinutes, breakMinutes, completionRate, models.MaxRecentEntries))
}
