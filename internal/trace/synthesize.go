package trace

import (
	"errors"
	"math"
	"time"

	"blinkfit-backend/internal/session"
)

const (
	openEAR   = 0.32
	closedEAR = 0.08
)

// Synthesize builds a trace of open eyes with a single closed frame every
// 60/bpm seconds. A bpm of 0 never blinks.
func Synthesize(routine session.Routine, length time.Duration, bpm float64, fps int) (*Trace, error) {
	if err := routine.Validate(); err != nil {
		return nil, err
	}
	if fps <= 0 || fps > maxFPS {
		fps = defaultFPS
	}
	if length <= 0 {
		return nil, errors.New("length must be positive")
	}
	if bpm < 0 || math.IsNaN(bpm) {
		return nil, errors.New("blink rate must not be negative")
	}

	open, closed := openEAR, closedEAR
	openFrame := func(n int) Frame { return Frame{LeftEAR: &open, RightEAR: &open, Repeat: n} }
	closedFrame := Frame{LeftEAR: &closed, RightEAR: &closed}

	total := int(length.Seconds() * float64(fps))
	t := &Trace{
		Routine:      routine.Name,
		FocusSeconds: routine.FocusSeconds,
		BreakSeconds: routine.BreakSeconds,
		FPS:          fps,
	}

	if bpm == 0 {
		t.Frames = []Frame{openFrame(total)}
		return t, nil
	}

	perBlink := int(math.Round(float64(fps) * 60 / bpm))
	if perBlink < 2 {
		return nil, errors.New("blink rate too high for the frame rate")
	}
	for remaining := total; remaining > 0; {
		n := min(perBlink-1, remaining)
		t.Frames = append(t.Frames, openFrame(n))
		remaining -= n
		if remaining > 0 {
			t.Frames = append(t.Frames, closedFrame)
			remaining--
		}
	}
	return t, nil
}
