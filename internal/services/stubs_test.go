package services

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"blinkfit-backend/internal/models"
	"blinkfit-backend/internal/session"
)

// stubGenerator answers with fixed text and records prompts.
type stubGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

func (g *stubGenerator) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return g.err
	}
	return decodeStrict(g.text, out)
}

type stubUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newStubUserStore(users ...*models.User) *stubUserStore {
	s := &stubUserStore{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.New()
	user.SchemaVersion = models.CurrentSchemaVersion
	s.users[user.ID] = user
	return nil
}

func (s *stubUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *stubUserStore) UpdateProfile(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *stubUserStore) UpdateBlinkAverage(ctx context.Context, id uuid.UUID, average float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.LatestBlinkCount = average
	return nil
}

func (s *stubUserStore) AppendSessionTimes(ctx context.Context, id uuid.UUID, screenMinutes, breakMinutes float64, completionRate *float64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.RecentScreenTimes = lastN(append(u.RecentScreenTimes, screenMinutes), models.MaxRecentEntries)
	u.RecentBreakTimes = lastN(append(u.RecentBreakTimes, breakMinutes), models.MaxRecentEntries)
	if completionRate != nil {
		u.LatestBreakSuccessRate = *completionRate
	}
	cp := *u
	return &cp, nil
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

type stubQuizStore struct {
	responses []*models.QuizResponse
}

func (s *stubQuizStore) Create(ctx context.Context, q *models.QuizResponse) error {
	q.ID = uuid.New()
	s.responses = append(s.responses, q)
	return nil
}

func (s *stubQuizStore) Latest(ctx context.Context, userID uuid.UUID) (*models.QuizResponse, error) {
	for i := len(s.responses) - 1; i >= 0; i-- {
		if s.responses[i].UserID == userID {
			return s.responses[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubQuizStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.QuizResponse, error) {
	var out []*models.QuizResponse
	for i := len(s.responses) - 1; i >= 0 && len(out) < limit; i-- {
		if s.responses[i].UserID == userID {
			out = append(out, s.responses[i])
		}
	}
	return out, nil
}

func (s *stubQuizStore) ExistsForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := s.Latest(ctx, userID)
	return err == nil, nil
}

type stubSessionStore struct {
	rows []*models.SessionSummary
	err  error
}

func (s *stubSessionStore) Create(ctx context.Context, row *models.SessionSummary) error {
	if s.err != nil {
		return s.err
	}
	row.ID = uuid.New()
	s.rows = append(s.rows, row)
	return nil
}

func (s *stubSessionStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.SessionSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type stubPublisher struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (p *stubPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *stubPublisher) count(msgType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

type stubQueue struct {
	mu        sync.Mutex
	summaries []session.Summary
}

func (q *stubQueue) Enqueue(ctx context.Context, userID uuid.UUID, sum session.Summary) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.summaries = append(q.summaries, sum)
	return nil
}

func (q *stubQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.summaries)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func floatPtr(f float64) *float64 { return &f }
