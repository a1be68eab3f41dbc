// Package provision runs ordered multi-resource provisioning plans against a
// cluster that offers no cross-call transactions. Each step is classified up
// front: a failed fatal step aborts the plan, a failed best-effort step is
// recorded and the plan continues.
package provision

import (
	"context"
	"fmt"
	"log/slog"
)

// Class tells the runner what a step failure means for the plan.
type Class int

const (
	// ClassFatal aborts the remaining steps; the caller gets the error.
	ClassFatal Class = iota
	// ClassBestEffort is recorded and skipped over; the plan continues.
	ClassBestEffort
)

func (c Class) String() string {
	if c == ClassFatal {
		return "fatal"
	}

	return "best-effort"
}

// Step is one resource creation in a plan.
type Step struct {
	Name  string
	Class Class
	Run   func(ctx context.Context) error
}

// Outcome records how one step went.
type Outcome struct {
	Name  string
	Class Class
	Err   error
}

// Apply runs the steps in order. It returns the outcomes of every step that
// ran, and a non-nil error only when a fatal step failed (in which case the
// remaining steps did not run).
func Apply(ctx context.Context, logger *slog.Logger, steps []Step) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(steps))

	for _, step := range steps {
		err := step.Run(ctx)
		outcomes = append(outcomes, Outcome{
			Name:  step.Name,
			Class: step.Class,
			Err:   err,
		})

		if err == nil {
			continue
		}

		if step.Class == ClassFatal {
			logger.ErrorContext(ctx, "fatal provisioning step failed",
				"step", step.Name,
				"reason", err,
			)

			return outcomes, fmt.Errorf("provision step %s: %w", step.Name, err)
		}

		logger.WarnContext(ctx, "best-effort provisioning step failed, continuing",
			"step", step.Name,
			"reason", err,
		)
	}

	return outcomes, nil
}

// Failed filters the outcomes down to the failed ones.
func Failed(outcomes []Outcome) []Outcome {
	failed := make([]Outcome, 0, len(outcomes))

	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}

	return failed
}
