package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var errNotRunning = errors.New("ollama is not reachable; start it with: ollama serve")

// EnsureReady fails unless e is reachable, then pulls whichever of models is
// missing. Progress goes to w. Blank names and repeats are ignored.
func EnsureReady(ctx context.Context, e Engine, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return errNotRunning
	}

	done := make(map[string]struct{}, len(models))
	for _, name := range models {
		if _, ok := done[name]; ok || name == "" {
			continue
		}
		done[name] = struct{}{}

		if !e.HasModel(ctx, name) {
			fmt.Fprintf(w, "model %s: pulling...\n", name)
			if err := e.PullModel(ctx, name, progressPrinter(w)); err != nil {
				return fmt.Errorf("pulling model %s: %w", name, err)
			}
		}
		fmt.Fprintf(w, "model %s: ready\n", name)
	}
	return nil
}

func progressPrinter(w io.Writer) func(PullProgress) {
	return func(p PullProgress) {
		if p.Total <= 0 {
			fmt.Fprintf(w, "  %s\n", p.Status)
			return
		}
		fmt.Fprintf(w, "  %s %d%%\n", p.Status, p.Completed*100/p.Total)
	}
}
