package session

import (
	"context"
	"sync/atomic"
	"time"

	"blinkfit-backend/internal/blink"
)

// Frame is one detector result queued for a Runner.
type Frame struct {
	Landmarks []blink.Point
	At        time.Time
}

type cmdKind int

const (
	cmdPause cmdKind = iota
	cmdResume
	cmdState
	cmdEnd
)

type command struct {
	kind  cmdKind
	reply chan cmdResult
}

type cmdResult struct {
	state   State
	summary Summary
	err     error
}

// Runner owns a Session on a single goroutine. Ticks, frames and commands
// are serialized through Run, so the Session has exactly one writer.
type Runner struct {
	session      *Session
	interval     time.Duration
	frames       chan Frame
	cmds         chan command
	done         chan struct{}
	summary      Summary
	lastActivity atomic.Int64
}

// NewRunner wraps s. A non-positive interval means one second.
func NewRunner(s *Session, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	r := &Runner{
		session:  s,
		interval: interval,
		frames:   make(chan Frame, 64),
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
	r.touch()
	return r
}

// Run blocks until the session ends, either through End or because ctx was
// cancelled. Cancellation still ends the session so elapsed time is flushed
// into the summary.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drainFrames()
			if summary, err := r.session.End(); err == nil {
				r.summary = summary
			}
			return
		case <-ticker.C:
			r.session.Tick()
		case f := <-r.frames:
			r.session.ObserveFrame(f.Landmarks, f.At)
		case c := <-r.cmds:
			r.drainFrames()
			res := r.apply(c.kind)
			c.reply <- res
			if c.kind == cmdEnd && res.err == nil {
				return
			}
		}
	}
}

// drainFrames observes frames already queued so a command sees every frame
// submitted before it.
func (r *Runner) drainFrames() {
	for {
		select {
		case f := <-r.frames:
			r.session.ObserveFrame(f.Landmarks, f.At)
		default:
			return
		}
	}
}

func (r *Runner) apply(kind cmdKind) cmdResult {
	switch kind {
	case cmdPause:
		return cmdResult{err: r.session.Pause(), state: r.session.State()}
	case cmdResume:
		return cmdResult{err: r.session.Resume(), state: r.session.State()}
	case cmdEnd:
		summary, err := r.session.End()
		if err == nil {
			r.summary = summary
		}
		return cmdResult{summary: summary, err: err}
	default:
		return cmdResult{state: r.session.State()}
	}
}

// Submit queues a frame for sampling.
func (r *Runner) Submit(ctx context.Context, f Frame) error {
	r.touch()
	select {
	case r.frames <- f:
		return nil
	case <-r.done:
		return ErrSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) send(ctx context.Context, kind cmdKind) (cmdResult, error) {
	r.touch()
	reply := make(chan cmdResult, 1)
	select {
	case r.cmds <- command{kind: kind, reply: reply}:
	case <-r.done:
		return cmdResult{}, ErrSessionEnded
	case <-ctx.Done():
		return cmdResult{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, res.err
	case <-ctx.Done():
		return cmdResult{}, ctx.Err()
	}
}

func (r *Runner) Pause(ctx context.Context) (State, error) {
	res, err := r.send(ctx, cmdPause)
	return res.state, err
}

func (r *Runner) Resume(ctx context.Context) (State, error) {
	res, err := r.send(ctx, cmdResume)
	return res.state, err
}

func (r *Runner) State(ctx context.Context) (State, error) {
	res, err := r.send(ctx, cmdState)
	return res.state, err
}

// End finishes the session and returns its summary. If the runner already
// stopped, the summary it produced is returned with ErrSessionEnded.
func (r *Runner) End(ctx context.Context) (Summary, error) {
	res, err := r.send(ctx, cmdEnd)
	if err == ErrSessionEnded {
		<-r.done
		return r.summary, ErrSessionEnded
	}
	return res.summary, err
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Summary is valid after Done is closed.
func (r *Runner) Summary() Summary { return r.summary }

// LastActivity is the time of the most recent frame or command.
func (r *Runner) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

func (r *Runner) touch() {
	r.lastActivity.Store(time.Now().UnixNano())
}
