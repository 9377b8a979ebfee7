package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"blinkfit-backend/internal/session"
	"blinkfit-backend/internal/trace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blinkfit",
		Short:         "Blink-Fit operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRoutinesCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newSimulateCmd())
	return root
}

func newRoutinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routines",
		Short: "List preset routines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, r := range session.Presets() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tfocus=%s\tbreak=%s\n", r.Name, seconds(r.FocusSeconds), seconds(r.BreakSeconds))
			}
			return nil
		},
	}
}

func newReplayCmd() *cobra.Command {
	var threshold float64
	var events bool

	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay a recorded landmark trace through blink counting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := trace.Load(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				t.Threshold = threshold
			}
			return run(cmd.OutOrStdout(), t, events)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "EAR threshold, overrides the trace file")
	cmd.Flags().BoolVar(&events, "events", false, "print every session event")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	var routineName string
	var focus, breakLen, length time.Duration
	var bpm float64
	var fps int
	var events bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a routine against a synthetic face blinking at a fixed rate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			routine, err := simulatedRoutine(routineName, focus, breakLen)
			if err != nil {
				return err
			}
			t, err := trace.Synthesize(routine, length, bpm, fps)
			if err != nil {
				return err
			}
			return run(cmd.OutOrStdout(), t, events)
		},
	}
	cmd.Flags().StringVar(&routineName, "routine", "classic", "preset routine: classic|deep")
	cmd.Flags().DurationVar(&focus, "focus", 0, "custom focus length, used with --break")
	cmd.Flags().DurationVar(&breakLen, "break", 0, "custom break length, used with --focus")
	cmd.Flags().DurationVar(&length, "length", 30*time.Minute, "simulated visit length")
	cmd.Flags().Float64Var(&bpm, "bpm", 15, "blinks per minute")
	cmd.Flags().IntVar(&fps, "fps", 10, "frames per second")
	cmd.Flags().BoolVar(&events, "events", false, "print every session event")
	return cmd
}

func simulatedRoutine(name string, focus, breakLen time.Duration) (session.Routine, error) {
	if focus != 0 || breakLen != 0 {
		r := session.Routine{Name: "custom", FocusSeconds: int(focus.Seconds()), BreakSeconds: int(breakLen.Seconds())}
		return r, r.Validate()
	}
	r, ok := session.LookupRoutine(name)
	if !ok {
		return session.Routine{}, fmt.Errorf("unknown routine %q", name)
	}
	return r, nil
}

func run(out io.Writer, t *trace.Trace, verbose bool) error {
	var onEvent func(session.Event)
	if verbose {
		onEvent = func(ev session.Event) { printEvent(out, ev) }
	}

	sum, err := trace.Replay(t, onEvent)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "routine:      %s\n", sum.Routine)
	_, _ = fmt.Fprintf(out, "screen time:  %s\n", seconds(sum.TotalScreenTimeSeconds))
	_, _ = fmt.Fprintf(out, "break time:   %s\n", seconds(sum.TotalBreakTimeSeconds))
	_, _ = fmt.Fprintf(out, "breaks:       %d/%d (%.2f%%)\n", sum.BreaksCompleted, sum.BreaksStarted, sum.BreakCompletionRate)
	_, _ = fmt.Fprintf(out, "blinks:       %d (%.1f/min)\n", sum.BlinkCount, sum.BlinksPerMinute())
	return nil
}

func printEvent(out io.Writer, ev session.Event) {
	at := ev.At.Sub(trace.Epoch)
	switch ev.Type {
	case session.EventBlink:
		_, _ = fmt.Fprintf(out, "%8s  blink #%d\n", at, ev.Blink.Count)
	case session.EventPhaseComplete:
		_, _ = fmt.Fprintf(out, "%8s  %s -> %s after %s, %d blinks\n", at, ev.Change.From, ev.Change.To, seconds(ev.Change.Seconds), ev.Change.BlinkCount)
	default:
		_, _ = fmt.Fprintf(out, "%8s  %s\n", at, ev.Type)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
