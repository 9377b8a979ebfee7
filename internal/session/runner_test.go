package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startRunner(t *testing.T, r Routine, interval time.Duration, listener func(Event)) (*Runner, context.CancelFunc) {
	t.Helper()
	var opts []Option
	if listener != nil {
		opts = append(opts, WithListener(listener))
	}
	s, err := New(r, nil, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runner := NewRunner(s, interval)
	ctx, cancel := context.WithCancel(context.Background())
	go runner.Run(ctx)
	t.Cleanup(cancel)
	return runner, cancel
}

func TestRunnerFramesAndEnd(t *testing.T) {
	runner, _ := startRunner(t, Routine{Name: "test", FocusSeconds: 3600, BreakSeconds: 60}, time.Hour, nil)
	ctx := context.Background()

	for _, f := range [][]Frame{
		{{Landmarks: openFace}, {Landmarks: closedFace}},
		{{Landmarks: openFace}, {Landmarks: closedFace}, {Landmarks: closedFace}},
	} {
		for _, frame := range f {
			if err := runner.Submit(ctx, frame); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
		}
	}

	// State is served after every queued frame: frames and commands share
	// one loop, but the frame channel is buffered, so poll until drained.
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := runner.State(ctx)
		if err != nil {
			t.Fatalf("State() error = %v", err)
		}
		if st.BlinkCount == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 blinks, last state %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}

	summary, err := runner.End(ctx)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if summary.BlinkCount != 2 {
		t.Fatalf("expected summary blink count 2, got %d", summary.BlinkCount)
	}

	select {
	case <-runner.Done():
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop after End")
	}

	if err := runner.Submit(ctx, Frame{Landmarks: openFace}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("Submit() after End error = %v", err)
	}
	again, err := runner.End(ctx)
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("second End() error = %v", err)
	}
	if again.BlinkCount != 2 {
		t.Fatalf("second End() should return the stored summary, got %+v", again)
	}
}

func TestRunnerTicksCompletePhase(t *testing.T) {
	changes := make(chan PhaseChange, 4)
	listener := func(ev Event) {
		if ev.Type == EventPhaseComplete {
			changes <- *ev.Change
		}
	}
	startRunner(t, Routine{Name: "fast", FocusSeconds: 2, BreakSeconds: 60}, time.Millisecond, listener)

	select {
	case ch := <-changes:
		if ch.From != PhaseFocus || ch.To != PhaseBreak || ch.Seconds != 2 {
			t.Fatalf("unexpected change %+v", ch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("focus phase never completed")
	}
}

func TestRunnerPauseResume(t *testing.T) {
	runner, _ := startRunner(t, Routine{Name: "test", FocusSeconds: 3600, BreakSeconds: 60}, time.Hour, nil)
	ctx := context.Background()

	st, err := runner.Pause(ctx)
	if err != nil || !st.Paused {
		t.Fatalf("Pause() = %+v, %v", st, err)
	}
	st, err = runner.Resume(ctx)
	if err != nil || st.Paused {
		t.Fatalf("Resume() = %+v, %v", st, err)
	}
}

func TestRunnerCancelFlushesSummary(t *testing.T) {
	runner, cancel := startRunner(t, Routine{Name: "fast", FocusSeconds: 3600, BreakSeconds: 60}, time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := runner.State(context.Background())
		if err != nil {
			t.Fatalf("State() error = %v", err)
		}
		if st.SecondsRemaining <= 3595 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("clock did not advance: %+v", st)
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-runner.Done():
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop on cancel")
	}
	if got := runner.Summary().TotalScreenTimeSeconds; got < 5 {
		t.Fatalf("expected flushed screen time >= 5, got %d", got)
	}
}
