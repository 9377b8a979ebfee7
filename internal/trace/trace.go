// Package trace replays recorded or synthetic landmark streams through a
// Session on a simulated clock.
package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"blinkfit-backend/internal/blink"
	"blinkfit-backend/internal/session"
)

const (
	defaultFPS = 30
	maxFPS     = 120
)

// Epoch is the simulated start time of every replay.
var Epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// Frame is either a full landmark set or a pair of eye aspect ratios that is
// expanded into a synthetic face. Repeat > 1 plays the frame that many times.
type Frame struct {
	Landmarks []blink.Point `yaml:"landmarks,omitempty"`
	LeftEAR   *float64      `yaml:"left_ear,omitempty"`
	RightEAR  *float64      `yaml:"right_ear,omitempty"`
	Repeat    int           `yaml:"repeat,omitempty"`
}

func (f Frame) points() []blink.Point {
	if len(f.Landmarks) > 0 {
		return f.Landmarks
	}
	return blink.SyntheticFace(*f.LeftEAR, *f.RightEAR)
}

func (f Frame) count() int {
	if f.Repeat > 1 {
		return f.Repeat
	}
	return 1
}

// Trace is the on-disk replay format. Routine names a preset unless both
// durations are set.
type Trace struct {
	Routine      string  `yaml:"routine"`
	FocusSeconds int     `yaml:"focus_seconds,omitempty"`
	BreakSeconds int     `yaml:"break_seconds,omitempty"`
	Threshold    float64 `yaml:"threshold,omitempty"`
	FPS          int     `yaml:"fps,omitempty"`
	Frames       []Frame `yaml:"frames"`
}

func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML trace, rejecting unknown keys, and validates it.
func Parse(data []byte) (*Trace, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Trace
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("trace is empty")
		}
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Trace) Validate() error {
	if t.FPS < 0 || t.FPS > maxFPS {
		return fmt.Errorf("fps must be between 1 and %d", maxFPS)
	}
	if t.Threshold < 0 {
		return errors.New("threshold must not be negative")
	}
	if _, err := t.ResolveRoutine(); err != nil {
		return err
	}
	for i, f := range t.Frames {
		if len(f.Landmarks) == 0 && (f.LeftEAR == nil || f.RightEAR == nil) {
			return fmt.Errorf("frame %d: needs landmarks or both left_ear and right_ear", i)
		}
		if f.Repeat < 0 {
			return fmt.Errorf("frame %d: repeat must not be negative", i)
		}
	}
	return nil
}

func (t *Trace) ResolveRoutine() (session.Routine, error) {
	if t.FocusSeconds != 0 || t.BreakSeconds != 0 {
		name := t.Routine
		if name == "" {
			name = "custom"
		}
		r := session.Routine{Name: name, FocusSeconds: t.FocusSeconds, BreakSeconds: t.BreakSeconds}
		return r, r.Validate()
	}

	name := t.Routine
	if name == "" {
		name = "classic"
	}
	r, ok := session.LookupRoutine(name)
	if !ok {
		return session.Routine{}, fmt.Errorf("unknown routine %q", name)
	}
	return r, nil
}

func (t *Trace) fps() int {
	if t.FPS == 0 {
		return defaultFPS
	}
	return t.FPS
}

// Duration is the simulated length of the trace.
func (t *Trace) Duration() time.Duration {
	n := 0
	for _, f := range t.Frames {
		n += f.count()
	}
	return time.Duration(n) * time.Second / time.Duration(t.fps())
}

// Replay plays every frame in order, ticking the session once per simulated
// second, then ends it. onEvent may be nil.
func Replay(t *Trace, onEvent func(session.Event)) (session.Summary, error) {
	routine, err := t.ResolveRoutine()
	if err != nil {
		return session.Summary{}, err
	}

	now := Epoch
	s, err := session.New(routine, blink.NewSampler(t.Threshold),
		session.WithListener(onEvent),
		session.WithNow(func() time.Time { return now }),
	)
	if err != nil {
		return session.Summary{}, err
	}

	fps := t.fps()
	played, ticked := 0, 0
	for _, f := range t.Frames {
		landmarks := f.points()
		for i := 0; i < f.count(); i++ {
			s.ObserveFrame(landmarks, now)
			played++
			now = Epoch.Add(time.Duration(played) * time.Second / time.Duration(fps))
			for ; ticked < played/fps; ticked++ {
				s.Tick()
			}
		}
	}
	return s.End()
}
