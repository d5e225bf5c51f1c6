// Package workflow implements the three migration strategies as plain
// functions over a *runhelper.RunHelper, dispatched by a tagged Mode
// variant rather than an inheritance hierarchy.
package workflow

import (
	"context"
	"fmt"

	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/runhelper"
)

// Mode tags one of the three migration strategies.
type Mode int

const (
	Squash Mode = iota
	Iterative
	ChangeRequest
)

func (m Mode) String() string {
	switch m {
	case Squash:
		return "SQUASH"
	case Iterative:
		return "ITERATIVE"
	case ChangeRequest:
		return "CHANGE_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Result summarizes what a workflow run did, for reporting and tests.
type Result struct {
	CommitsWritten int
	Truncated      bool
}

// Run dispatches to the strategy arm named by mode.
func Run(ctx context.Context, mode Mode, h *runhelper.RunHelper, console diag.Console) (Result, error) {
	switch mode {
	case Squash:
		return runSquash(ctx, h, console)
	case Iterative:
		return runIterative(ctx, h, console)
	case ChangeRequest:
		return runChangeRequest(ctx, h, console)
	default:
		return Result{}, change.New(change.KindValidation, fmt.Sprintf("unknown workflow mode %d", int(mode)))
	}
}

// reverseChanges returns a new slice with changes in the opposite order,
// used by SQUASH to present its detected list newest-first to
// downstream templating.
func reverseChanges(changes []change.Change) []change.Change {
	out := make([]change.Change, len(changes))
	for i, c := range changes {
		out[len(changes)-1-i] = c
	}
	return out
}

func prependChange(list []change.Change, c change.Change) []change.Change {
	return append([]change.Change{c}, list...)
}
