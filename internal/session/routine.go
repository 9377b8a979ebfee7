package session

import (
	"fmt"
	"sort"
)

// Routine is a (screen-time, break) pair driving the clock.
type Routine struct {
	Name         string `json:"name" yaml:"name"`
	FocusSeconds int    `json:"focus_seconds" yaml:"focus_seconds"`
	BreakSeconds int    `json:"break_seconds" yaml:"break_seconds"`
}

// Preset routines offered on the routine-selection screen.
var presets = map[string]Routine{
	"classic": {Name: "classic", FocusSeconds: 25 * 60, BreakSeconds: 60},
	"deep":    {Name: "deep", FocusSeconds: 60 * 60, BreakSeconds: 60},
}

func (r Routine) Validate() error {
	if r.FocusSeconds <= 0 {
		return fmt.Errorf("routine %q focus: %w", r.Name, ErrInvalidDuration)
	}
	if r.BreakSeconds <= 0 {
		return fmt.Errorf("routine %q break: %w", r.Name, ErrInvalidDuration)
	}
	return nil
}

func (r Routine) secondsFor(p Phase) int {
	if p == PhaseBreak {
		return r.BreakSeconds
	}
	return r.FocusSeconds
}

// LookupRoutine returns a preset by name.
func LookupRoutine(name string) (Routine, bool) {
	r, ok := presets[name]
	return r, ok
}

// Presets lists the preset routines ordered by focus length.
func Presets() []Routine {
	out := make([]Routine, 0, len(presets))
	for _, r := range presets {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FocusSeconds < out[j].FocusSeconds })
	return out
}
