package services

import (
	"context"

	"github.com/google/uuid"

	"blinkfit-backend/internal/models"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateBlinkAverage(ctx context.Context, id uuid.UUID, average float64) error
	AppendSessionTimes(ctx context.Context, id uuid.UUID, screenMinutes, breakMinutes float64, completionRate *float64) (*models.User, error)
}

// QuizStore is implemented by repository.QuizRepo.
type QuizStore interface {
	Create(ctx context.Context, q *models.QuizResponse) error
	Latest(ctx context.Context, userID uuid.UUID) (*models.QuizResponse, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.QuizResponse, error)
	ExistsForUser(ctx context.Context, userID uuid.UUID) (bool, error)
}

// SessionStore is implemented by repository.SessionRepo.
type SessionStore interface {
	Create(ctx context.Context, s *models.SessionSummary) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.SessionSummary, error)
}

// Publisher pushes a message to every live connection of a user.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}
