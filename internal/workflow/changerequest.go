package workflow

import (
	"context"

	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/origin"
	"github.com/kurobon/vcsmigrate/internal/runhelper"
)

// runChangeRequest imports a single origin tree, diffed against a
// baseline already present in the destination, as a review.
func runChangeRequest(ctx context.Context, h *runhelper.RunHelper, console diag.Console) (Result, error) {
	if !h.DestinationSupportsPreviousRef() {
		return Result{}, change.New(change.KindValidation, "change-request mode requires a destination that supports history")
	}

	resolvedRef := h.GetResolvedRef()
	opts := h.WorkflowOptions()

	var baseline change.Revision
	if opts.ChangeBaseline != "" {
		baseline = change.NewRevision(opts.ChangeBaseline)
	} else {
		found, err := discoverBaseline(ctx, h, resolvedRef)
		if err != nil {
			return Result{}, err
		}
		if found == nil {
			return Result{}, change.New(change.KindValidation, "cannot discover change-request baseline; use --change-request-parent")
		}
		baseline = *found
	}

	c, err := h.Origin().Change(ctx, resolvedRef)
	if err != nil {
		return Result{}, err
	}

	metadata := change.Metadata{Message: c.Message, Author: c.Author}
	computed := change.ComputedChanges{Current: []change.Change{c}}
	identity := h.WorkflowIdentity(resolvedRef)

	if _, err := h.Migrate(ctx, resolvedRef, console, metadata, computed, &baseline, identity); err != nil {
		return Result{}, err
	}
	return Result{CommitsWritten: 1}, nil
}

// discoverBaseline walks origin history backward from resolvedRef,
// looking for the destination's origin-label on the first ancestor
// that isn't resolvedRef itself.
func discoverBaseline(ctx context.Context, h *runhelper.RunHelper, resolvedRef change.Revision) (*change.Revision, error) {
	labelName := h.Destination().LabelNameWhenOrigin()

	var found *change.Revision
	err := h.Origin().VisitChanges(ctx, resolvedRef, func(c change.Change) origin.VisitResult {
		if c.Revision.Equal(resolvedRef) {
			return origin.Continue
		}
		if v, ok := c.Label(labelName); ok {
			rev := change.NewRevision(v)
			found = &rev
			return origin.Terminate
		}
		return origin.Continue
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
