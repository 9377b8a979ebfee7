package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"blinkfit-backend/internal/database"
	"blinkfit-backend/internal/models"
)

type QuizRepo struct {
	db database.Querier
}

func NewQuizRepo(db database.Querier) *QuizRepo {
	return &QuizRepo{db: db}
}

func (r *QuizRepo) Create(ctx context.Context, q *models.QuizResponse) error {
	responses, err := json.Marshal(q.Responses)
	if err != nil {
		return fmt.Errorf("encode quiz responses: %w", err)
	}
	subjective, err := json.Marshal(q.Subjective)
	if err != nil {
		return fmt.Errorf("encode subjective answers: %w", err)
	}

	q.ID = uuid.New()
	if q.SessionID == uuid.Nil {
		q.SessionID = uuid.New()
	}

	query := `
		INSERT INTO quiz_responses (id, user_id, session_id, responses, subjective)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING submitted_at`

	return r.db.QueryRow(ctx, query, q.ID, q.UserID, q.SessionID, responses, subjective).Scan(&q.SubmittedAt)
}

func scanQuizResponse(row pgx.Row) (*models.QuizResponse, error) {
	q := &models.QuizResponse{}
	var responses, subjective []byte
	if err := row.Scan(&q.ID, &q.UserID, &q.SessionID, &responses, &subjective, &q.SubmittedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(responses, &q.Responses); err != nil {
		return nil, fmt.Errorf("decode quiz responses %s: %w", q.ID, err)
	}
	if len(subjective) > 0 {
		if err := json.Unmarshal(subjective, &q.Subjective); err != nil {
			return nil, fmt.Errorf("decode subjective answers %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// Latest returns the newest response of the user, or pgx.ErrNoRows.
func (r *QuizRepo) Latest(ctx context.Context, userID uuid.UUID) (*models.QuizResponse, error) {
	query := `SELECT id, user_id, session_id, responses, subjective, submitted_at
		FROM quiz_responses WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT 1`
	return scanQuizResponse(r.db.QueryRow(ctx, query, userID))
}

func (r *QuizRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.QuizResponse, error) {
	query := `SELECT id, user_id, session_id, responses, subjective, submitted_at
		FROM quiz_responses WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.QuizResponse
	for rows.Next() {
		q, err := scanQuizResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ExistsForUser backs the is_survey flag returned at login.
func (r *QuizRepo) ExistsForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM quiz_responses WHERE user_id = $1)", userID).Scan(&exists)
	return exists, err
}
