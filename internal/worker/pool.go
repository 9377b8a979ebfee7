package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"blinkfit-backend/internal/models"
	"blinkfit-backend/internal/session"
)

const (
	SummaryQueue = "queue:session-summary"
	// RetryQueue holds failed jobs scored by the Unix millisecond they may
	// run again.
	RetryQueue  = "queue:session-summary:retry"
	maxAttempts = 3
	lockTTL     = 2 * time.Minute
)

// SummaryJob carries one finished visit to the persistence worker.
type SummaryJob struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Summary    session.Summary `json:"summary"`
	RetryCount int             `json:"retry_count"`
}

// SummaryRecorder stores a finished visit.
type SummaryRecorder interface {
	RecordSessionSummary(ctx context.Context, userID uuid.UUID, sum session.Summary) error
}

// Notifier tells the user's live connections what happened to their visit.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// Queue pushes summary jobs onto the Redis list the pool consumes.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, userID uuid.UUID, sum session.Summary) error {
	job := SummaryJob{ID: uuid.New(), UserID: userID, Summary: sum}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal summary job: %w", err)
	}
	if err := q.redis.RPush(ctx, SummaryQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue summary job: %w", err)
	}
	return nil
}

type Pool struct {
	redis       *redis.Client
	recorder    SummaryRecorder
	notifier    Notifier
	workerCount int
	pollTimeout time.Duration
	backoff     func(attempt int) time.Duration
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(redisClient *redis.Client, recorder SummaryRecorder, notifier Notifier, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		recorder:    recorder,
		notifier:    notifier,
		workerCount: workerCount,
		pollTimeout: 5 * time.Second,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
		stopChan: make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Printf("Started %d summary workers", p.workerCount)
}

// Stop waits for in-flight jobs. Workers blocked in BLPOP notice within one
// poll timeout. Scheduled retries stay in RetryQueue for the next start.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			log.Printf("Summary worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		if _, err := p.promoteDue(ctx, time.Now()); err != nil {
			log.Printf("Summary worker %d: failed to promote retries: %v", id, err)
		}

		result, err := p.redis.BLPop(ctx, p.pollTimeout, SummaryQueue).Result()
		if err != nil {
			if err != redis.Nil {
				select {
				case <-p.stopChan:
				case <-time.After(time.Second):
				}
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job SummaryJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Summary worker %d: failed to parse job: %v", id, err)
			continue
		}
		p.process(ctx, id, &job)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job *SummaryJob) {
	lockKey := "summary_lock:" + job.ID.String()
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		log.Printf("Summary worker %d: lock for job %s failed, requeueing: %v", workerID, job.ID, err)
		p.requeue(ctx, job)
		return
	}
	if !locked {
		return
	}
	defer p.redis.Del(ctx, lockKey)

	log.Printf("Summary worker %d: recording visit %s for user %s", workerID, job.ID, job.UserID)

	if err := p.recorder.RecordSessionSummary(ctx, job.UserID, job.Summary); err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.notify(ctx, job.UserID, "summary_saved", job.Summary)
}

func (p *Pool) handleFailure(ctx context.Context, job *SummaryJob, err error) {
	job.RetryCount++
	if job.RetryCount < maxAttempts {
		log.Printf("Summary job %s failed (attempt %d): %v, retrying", job.ID, job.RetryCount, err)
		data, _ := json.Marshal(job)
		notBefore := time.Now().Add(p.backoff(job.RetryCount))
		if err := p.redis.ZAdd(ctx, RetryQueue, redis.Z{Score: float64(notBefore.UnixMilli()), Member: data}).Err(); err != nil {
			log.Printf("Summary job %s: failed to schedule retry, requeueing now: %v", job.ID, err)
			p.requeue(ctx, job)
		}
		return
	}

	log.Printf("Summary job %s failed permanently: %v", job.ID, err)
	p.notify(ctx, job.UserID, "error", map[string]string{
		"code":    "SUMMARY_FAILED",
		"message": "Your session summary could not be saved",
	})
}

// promoteDue moves retries whose backoff has elapsed back onto the work
// queue. Only the worker whose ZREM succeeds pushes a given job.
func (p *Pool) promoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := p.redis.ZRangeByScore(ctx, RetryQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, data := range due {
		removed, err := p.redis.ZRem(ctx, RetryQueue, data).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := p.redis.RPush(ctx, SummaryQueue, data).Err(); err != nil {
			p.redis.ZAdd(ctx, RetryQueue, redis.Z{Score: float64(now.UnixMilli()), Member: data})
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (p *Pool) requeue(ctx context.Context, job *SummaryJob) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("Summary job %s: failed to marshal for requeue: %v", job.ID, err)
		return
	}
	if err := p.redis.RPush(ctx, SummaryQueue, data).Err(); err != nil {
		log.Printf("Summary job %s lost, requeue failed: %v", job.ID, err)
	}
}

func (p *Pool) notify(ctx context.Context, userID uuid.UUID, msgType string, payload any) {
	if p.notifier == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.notifier.Publish(ctx, userID, models.WSMessage{Type: msgType, Payload: data}); err != nil {
		log.Printf("failed to notify user %s: %v", userID, err)
	}
}
