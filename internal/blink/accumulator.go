package blink

import "time"

// EyeStatus is the accumulator's debounced view of the eyes.
type EyeStatus int

const (
	EyeOpen EyeStatus = iota
	EyeClosed
)

func (s EyeStatus) String() string {
	if s == EyeClosed {
		return "closed"
	}
	return "open"
}

// BlinkEvent fires once per open -> closed transition.
type BlinkEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// Accumulator turns a stream of EyeStates into BlinkEvents. Repeated samples
// in the same state leave it unchanged, so a closure spanning many frames
// counts once.
type Accumulator struct {
	state   EyeStatus
	count   int
	onBlink func(BlinkEvent)
	now     func() time.Time
}

func NewAccumulator(onBlink func(BlinkEvent)) *Accumulator {
	return &Accumulator{
		state:   EyeOpen,
		onBlink: onBlink,
		now:     time.Now,
	}
}

// Observe feeds one sample stamped with the current wall-clock time.
func (a *Accumulator) Observe(s EyeState) (BlinkEvent, bool) {
	return a.ObserveAt(s, a.now())
}

// ObserveAt feeds one sample and returns the event it produced, if any.
func (a *Accumulator) ObserveAt(s EyeState, at time.Time) (BlinkEvent, bool) {
	switch {
	case s.Closed && a.state == EyeOpen:
		a.state = EyeClosed
		a.count++
		ev := BlinkEvent{Timestamp: at, Count: a.count}
		if a.onBlink != nil {
			a.onBlink(ev)
		}
		return ev, true
	case !s.Closed && a.state == EyeClosed:
		a.state = EyeOpen
	}
	return BlinkEvent{}, false
}

func (a *Accumulator) Count() int { return a.count }

func (a *Accumulator) State() EyeStatus { return a.state }

// Reset zeroes the count and forces the open state. Used at each phase start.
func (a *Accumulator) Reset() {
	a.count = 0
	a.state = EyeOpen
}
