package session

import (
	"errors"
	"math"
	"time"

	"blinkfit-backend/internal/blink"
)

var ErrSessionEnded = errors.New("session has ended")

// Session is one visit: a routine cycling Focus -> Break -> Focus with
// cumulative screen and break totals. It is not safe for concurrent use;
// Runner provides the single-writer loop.
type Session struct {
	routine  Routine
	phase    Phase
	clock    Clock
	sampler  *blink.Sampler
	acc      *blink.Accumulator
	listener func(Event)
	now      func() time.Time

	totalScreen     int
	totalBreak      int
	breaksStarted   int
	breaksCompleted int
	totalBlinks     int
	startedAt       time.Time
	ended           bool
}

type Option func(*Session)

// WithListener receives every Event synchronously on the writer goroutine.
func WithListener(fn func(Event)) Option {
	return func(s *Session) { s.listener = fn }
}

// WithNow overrides the wall clock used for event timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New validates the routine and starts its first Focus phase.
func New(routine Routine, sampler *blink.Sampler, opts ...Option) (*Session, error) {
	if err := routine.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = blink.NewSampler(blink.DefaultThreshold)
	}

	s := &Session{
		routine: routine,
		sampler: sampler,
		now:     time.Now,
	}
	s.acc = blink.NewAccumulator(s.handleBlink)
	for _, opt := range opts {
		opt(s)
	}

	s.startedAt = s.now()
	if err := s.startPhase(PhaseFocus); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) startPhase(p Phase) error {
	if err := s.clock.Start(s.routine.secondsFor(p)); err != nil {
		return err
	}
	s.phase = p
	s.acc.Reset()
	if p == PhaseBreak {
		s.breaksStarted++
	}
	return nil
}

func (s *Session) handleBlink(ev blink.BlinkEvent) {
	s.totalBlinks++
	s.emit(Event{Type: EventBlink, Phase: s.phase, Blink: &ev, At: ev.Timestamp})
}

func (s *Session) emit(ev Event) {
	if s.listener != nil {
		s.listener(ev)
	}
}

// ObserveFrame samples one frame of landmarks. Frames are skipped while the
// session is paused, during breaks, and when the landmark set does not cover
// both eyes.
func (s *Session) ObserveFrame(landmarks []blink.Point, at time.Time) (blink.BlinkEvent, bool) {
	if s.ended || s.phase != PhaseFocus || s.clock.Paused() {
		return blink.BlinkEvent{}, false
	}
	if !s.sampler.Covers(landmarks) {
		return blink.BlinkEvent{}, false
	}
	return s.acc.ObserveAt(s.sampler.Sample(landmarks), at)
}

// Tick advances the clock one second. On phase completion the full phase
// is added to its total and the next phase starts. Returns true when a
// phase completed on this tick.
func (s *Session) Tick() bool {
	if s.ended || !s.clock.Tick() {
		return false
	}

	from := s.phase
	seconds := s.clock.Stop()
	blinks := s.acc.Count()
	s.addElapsed(from, seconds)

	to := PhaseBreak
	if from == PhaseBreak {
		s.breaksCompleted++
		to = PhaseFocus
	}
	if err := s.startPhase(to); err != nil {
		return false
	}

	s.emit(Event{
		Type:  EventPhaseComplete,
		Phase: to,
		Change: &PhaseChange{
			From:        from,
			To:          to,
			Seconds:     seconds,
			BlinkCount:  blinks,
			CyclesSoFar: s.breaksCompleted,
		},
		At: s.now(),
	})
	return true
}

func (s *Session) addElapsed(p Phase, seconds int) {
	if p == PhaseBreak {
		s.totalBreak += seconds
	} else {
		s.totalScreen += seconds
	}
}

func (s *Session) Pause() error {
	if s.ended {
		return ErrSessionEnded
	}
	if s.clock.Paused() {
		return nil
	}
	s.clock.Pause()
	s.emit(Event{Type: EventPaused, Phase: s.phase, At: s.now()})
	return nil
}

func (s *Session) Resume() error {
	if s.ended {
		return ErrSessionEnded
	}
	if !s.clock.Paused() {
		return nil
	}
	s.clock.Resume()
	s.emit(Event{Type: EventResumed, Phase: s.phase, At: s.now()})
	return nil
}

// End stops the visit. Seconds already spent in the unfinished phase are
// flushed into the totals before the summary is built, then the session's
// accumulators are cleared.
func (s *Session) End() (Summary, error) {
	if s.ended {
		return Summary{}, ErrSessionEnded
	}

	s.addElapsed(s.phase, s.clock.Stop())
	s.ended = true

	summary := Summary{
		Routine:                s.routine.Name,
		TotalScreenTimeSeconds: s.totalScreen,
		TotalBreakTimeSeconds:  s.totalBreak,
		BreaksStarted:          s.breaksStarted,
		BreaksCompleted:        s.breaksCompleted,
		BreakCompletionRate:    completionRate(s.breaksCompleted, s.breaksStarted),
		BlinkCount:             s.totalBlinks,
		StartedAt:              s.startedAt,
		EndedAt:                s.now(),
	}

	s.emit(Event{Type: EventEnded, Phase: s.phase, Summary: &summary, At: summary.EndedAt})

	s.acc.Reset()
	s.totalScreen, s.totalBreak, s.totalBlinks = 0, 0, 0
	s.breaksStarted, s.breaksCompleted = 0, 0
	return summary, nil
}

func completionRate(completed, started int) float64 {
	if started == 0 {
		return 0
	}
	rate := float64(completed) / float64(started) * 100
	return math.Round(rate*100) / 100
}

func (s *Session) State() State {
	return State{
		Routine:                s.routine.Name,
		Phase:                  s.phase,
		BlinkCount:             s.acc.Count(),
		SecondsRemaining:       s.clock.Remaining(),
		Paused:                 s.clock.Paused(),
		TotalScreenTimeSeconds: s.totalScreen,
		TotalBreakTimeSeconds:  s.totalBreak,
		Ended:                  s.ended,
	}
}

func (s *Session) Routine() Routine { return s.routine }

func (s *Session) Ended() bool { return s.ended }
