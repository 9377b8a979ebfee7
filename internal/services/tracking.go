package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"blinkfit-backend/internal/blink"
	"blinkfit-backend/internal/models"
	"blinkfit-backend/internal/session"
)

const (
	customRoutine  = "custom"
	maxFrameBatch  = 300
	publishTimeout = 2 * time.Second
)

// SummaryQueue hands finished visits to the persistence worker.
type SummaryQueue interface {
	Enqueue(ctx context.Context, userID uuid.UUID, sum session.Summary) error
}

type liveSession struct {
	runner   *session.Runner
	cancel   context.CancelFunc
	finished chan struct{}
}

// TrackingService owns the live visits, one per user. Each visit runs on
// its own Runner goroutine; the registry only maps users to runners.
type TrackingService struct {
	mu           sync.Mutex
	live         map[uuid.UUID]*liveSession
	queue        SummaryQueue
	publisher    Publisher
	sampler      *blink.Sampler
	tickInterval time.Duration
	wg           sync.WaitGroup
}

func NewTrackingService(queue SummaryQueue, publisher Publisher, earThreshold float64) *TrackingService {
	return &TrackingService{
		live:         make(map[uuid.UUID]*liveSession),
		queue:        queue,
		publisher:    publisher,
		sampler:      blink.NewSampler(earThreshold),
		tickInterval: time.Second,
	}
}

func resolveRoutine(req models.StartSessionRequest) (session.Routine, error) {
	name := req.Routine
	if name == "" {
		name = "classic"
	}
	if name == customRoutine {
		r := session.Routine{Name: customRoutine, FocusSeconds: req.FocusSeconds, BreakSeconds: req.BreakSeconds}
		if err := r.Validate(); err != nil {
			return session.Routine{}, &ValidationError{Fields: map[string]string{
				"routine": "Custom routines need positive focus_seconds and break_seconds",
			}}
		}
		return r, nil
	}
	r, ok := session.LookupRoutine(name)
	if !ok {
		return session.Routine{}, &ValidationError{Fields: map[string]string{
			"routine": fmt.Sprintf("Unknown routine %q", name),
		}}
	}
	return r, nil
}

// Start begins a visit for the user. Only one visit may be live per user.
func (s *TrackingService) Start(ctx context.Context, userID uuid.UUID, req models.StartSessionRequest) (session.State, error) {
	routine, err := resolveRoutine(req)
	if err != nil {
		return session.State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[userID]; ok {
		return session.State{}, &ConflictError{Message: "A session is already running"}
	}

	sess, err := session.New(routine, s.sampler, session.WithListener(s.listener(userID)))
	if err != nil {
		return session.State{}, fmt.Errorf("start session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		runner:   session.NewRunner(sess, s.tickInterval),
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	s.live[userID] = ls
	state := sess.State()

	s.wg.Add(1)
	go s.run(runCtx, userID, ls)

	log.Printf("Session started: user %s routine %s", userID, routine.Name)
	return state, nil
}

func (s *TrackingService) run(ctx context.Context, userID uuid.UUID, ls *liveSession) {
	defer s.wg.Done()
	defer close(ls.finished)
	defer ls.cancel()

	ls.runner.Run(ctx)

	s.mu.Lock()
	if s.live[userID] == ls {
		delete(s.live, userID)
	}
	s.mu.Unlock()

	sum := ls.runner.Summary()
	if sum.TotalScreenTimeSeconds+sum.TotalBreakTimeSeconds == 0 {
		log.Printf("Session ended: user %s with no elapsed time, not recorded", userID)
		return
	}
	if err := s.queue.Enqueue(context.Background(), userID, sum); err != nil {
		log.Printf("failed to enqueue summary for user %s: %v", userID, err)
	}
}

// listener forwards session events to the user's sockets. It runs on the
// runner goroutine, so publishing is bounded by a short timeout.
func (s *TrackingService) listener(userID uuid.UUID) func(session.Event) {
	return func(ev session.Event) {
		if s.publisher == nil {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, userID, models.WSMessage{Type: string(ev.Type), Payload: data}); err != nil {
			log.Printf("failed to publish %s event for user %s: %v", ev.Type, userID, err)
		}
	}
}

func (s *TrackingService) lookup(userID uuid.UUID) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[userID]
	if !ok {
		return nil, &NotFoundError{Message: "No session is running"}
	}
	return ls, nil
}

func sessionErr(err error) error {
	if errors.Is(err, session.ErrSessionEnded) {
		return &NotFoundError{Message: "No session is running"}
	}
	return err
}

// SubmitFrames feeds a batch of detector frames into the live visit.
// Frames with no landmarks are skipped.
func (s *TrackingService) SubmitFrames(ctx context.Context, userID uuid.UUID, frames []models.FrameInput) (*models.FramesResult, error) {
	if len(frames) == 0 || len(frames) > maxFrameBatch {
		return nil, &ValidationError{Fields: map[string]string{
			"frames": fmt.Sprintf("Provide between 1 and %d frames", maxFrameBatch),
		}}
	}
	ls, err := s.lookup(userID)
	if err != nil {
		return nil, err
	}

	result := &models.FramesResult{}
	for _, f := range frames {
		if len(f.Landmarks) == 0 {
			result.Skipped++
			continue
		}
		at := time.Now()
		if f.At != nil {
			at = *f.At
		}
		if err := ls.runner.Submit(ctx, session.Frame{Landmarks: f.Landmarks, At: at}); err != nil {
			return nil, sessionErr(err)
		}
		result.Accepted++
	}
	return result, nil
}

// SubmitFrame feeds one socket frame. Missing sessions are reported so the
// socket can tell the client.
func (s *TrackingService) SubmitFrame(ctx context.Context, userID uuid.UUID, landmarks []blink.Point) error {
	if len(landmarks) == 0 {
		return nil
	}
	ls, err := s.lookup(userID)
	if err != nil {
		return err
	}
	return sessionErr(ls.runner.Submit(ctx, session.Frame{Landmarks: landmarks, At: time.Now()}))
}

func (s *TrackingService) Pause(ctx context.Context, userID uuid.UUID) (session.State, error) {
	ls, err := s.lookup(userID)
	if err != nil {
		return session.State{}, err
	}
	state, err := ls.runner.Pause(ctx)
	return state, sessionErr(err)
}

func (s *TrackingService) Resume(ctx context.Context, userID uuid.UUID) (session.State, error) {
	ls, err := s.lookup(userID)
	if err != nil {
		return session.State{}, err
	}
	state, err := ls.runner.Resume(ctx)
	return state, sessionErr(err)
}

func (s *TrackingService) Current(ctx context.Context, userID uuid.UUID) (session.State, error) {
	ls, err := s.lookup(userID)
	if err != nil {
		return session.State{}, err
	}
	state, err := ls.runner.State(ctx)
	return state, sessionErr(err)
}

// End finishes the live visit and returns its summary. The summary is
// persisted asynchronously by the worker.
func (s *TrackingService) End(ctx context.Context, userID uuid.UUID) (session.Summary, error) {
	ls, err := s.lookup(userID)
	if err != nil {
		return session.Summary{}, err
	}
	sum, err := ls.runner.End(ctx)
	if err != nil && !errors.Is(err, session.ErrSessionEnded) {
		return session.Summary{}, err
	}

	select {
	case <-ls.finished:
	case <-ctx.Done():
		return session.Summary{}, ctx.Err()
	}
	return sum, nil
}

// ReapIdle ends visits that have seen no frame or command for timeout and
// returns how many were ended.
func (s *TrackingService) ReapIdle(now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	var idle []*liveSession
	for userID, ls := range s.live {
		if now.Sub(ls.runner.LastActivity()) >= timeout {
			log.Printf("Session idle: ending visit for user %s", userID)
			idle = append(idle, ls)
		}
	}
	s.mu.Unlock()

	for _, ls := range idle {
		ls.cancel()
	}
	for _, ls := range idle {
		<-ls.finished
	}
	return len(idle)
}

// LiveCount is the number of visits currently running.
func (s *TrackingService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown ends every live visit, flushing their summaries to the queue.
func (s *TrackingService) Shutdown() {
	s.mu.Lock()
	for _, ls := range s.live {
		ls.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
