package repository

import (
	"context"

	"github.com/google/uuid"

	"blinkfit-backend/internal/database"
	"blinkfit-backend/internal/models"
)

type SessionRepo struct {
	db database.Querier
}

func NewSessionRepo(db database.Querier) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.SessionSummary) error {
	query := `
		INSERT INTO session_summaries (id, user_id, routine, total_screen_time_seconds,
			total_break_time_seconds, break_completion_rate, blink_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	s.ID = uuid.New()
	return r.db.QueryRow(ctx, query,
		s.ID, s.UserID, s.Routine, s.TotalScreenTimeSeconds,
		s.TotalBreakTimeSeconds, s.BreakCompletionRate, s.BlinkCount,
	).Scan(&s.CreatedAt)
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.SessionSummary, error) {
	query := `SELECT id, user_id, routine, total_screen_time_seconds, total_break_time_seconds,
			break_completion_rate, blink_count, created_at
		FROM session_summaries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SessionSummary
	for rows.Next() {
		s := &models.SessionSummary{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Routine, &s.TotalScreenTimeSeconds, &s.TotalBreakTimeSeconds,
			&s.BreakCompletionRate, &s.BlinkCount, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
