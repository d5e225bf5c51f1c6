package workflow

import (
	"context"
	"fmt"

	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/runhelper"
)

// runSquash writes one destination commit whose tree equals the
// transformed tree of the resolved origin revision.
func runSquash(ctx context.Context, h *runhelper.RunHelper, console diag.Console) (Result, error) {
	current := h.GetResolvedRef()
	historySupported := h.IsHistorySupported()

	var lastRev *change.Revision
	var detected []change.Change

	if historySupported {
		lr, err := squashLastRevOrNil(ctx, h)
		if err != nil {
			return Result{}, err
		}
		lastRev = lr
		if lastRev != nil {
			d, err := h.GetChanges(ctx, lastRev, current)
			if err != nil {
				return Result{}, err
			}
			detected = d
		}
	}

	if len(detected) == 0 && historySupported {
		if err := squashNoChangesPolicy(ctx, h, lastRev, current); err != nil {
			return Result{}, err
		}
	}

	metadata := change.Metadata{
		Message: "Project import generated by Copybara.",
		Author:  h.Authoring().DefaultAuthor(),
	}

	if err := h.MaybeValidateRepoInLastRevState(ctx, &metadata); err != nil {
		return Result{}, err
	}

	sub := h.ForChanges(detected)
	var filtered []change.Change
	for _, c := range detected {
		if sub.SkipChanges([]change.Change{c}) {
			continue
		}
		filtered = append(filtered, c)
	}
	detected = filtered

	if len(detected) > 0 {
		current = detected[len(detected)-1].Revision
	}

	if h.IsSquashWithoutHistory() {
		detected = nil
	}

	identity := h.WorkflowIdentity(h.GetResolvedRef())
	computed := change.ComputedChanges{Current: reverseChanges(detected)}

	if _, err := h.Migrate(ctx, current, console, metadata, computed, nil, identity); err != nil {
		return Result{}, err
	}
	return Result{CommitsWritten: 1}, nil
}

// squashLastRevOrNil fetches the last-imported revision, collapsing an
// unresolvable one to nil regardless of force: squashNoChangesPolicy is
// what decides whether a missing lastRev is fatal, and it needs the
// specific current revision to phrase its error, so SQUASH defers that
// decision rather than going through the generic MaybeGetLastRev.
func squashLastRevOrNil(ctx context.Context, h *runhelper.RunHelper) (*change.Revision, error) {
	rev, err := h.GetLastRev(ctx)
	if err == nil {
		return &rev, nil
	}
	if change.Is(err, change.KindUnresolvableRevision) {
		return nil, nil
	}
	return nil, err
}

// squashNoChangesPolicy decides whether a missing or non-ancestor
// lastRev is fatal, or just a warning when force is on.
func squashNoChangesPolicy(ctx context.Context, h *runhelper.RunHelper, lastRev *change.Revision, current change.Revision) error {
	force := h.IsForce()

	if lastRev == nil {
		if force {
			h.Console().Warn("cannot find any change in history up to %q; proceeding (force)", current.AsString())
			return nil
		}
		return change.New(change.KindValidation, fmt.Sprintf("cannot find any change in history up to %q; use force", current.AsString()))
	}

	if lastRev.Equal(current) {
		if force {
			h.Console().Warn("%s already migrated; proceeding (force)", current.AsString())
			return nil
		}
		return change.New(change.KindEmptyChange, fmt.Sprintf("%s already migrated; use force", current.AsString()))
	}

	// Check GetChanges(current, lastRev); if that range is also empty,
	// lastRev and current share no ancestry either way.
	back, err := h.GetChanges(ctx, &current, *lastRev)
	if err != nil {
		return err
	}
	if len(back) == 0 {
		if force {
			h.Console().Warn("%s is not an ancestor of %s; proceeding (force)", lastRev.AsString(), current.AsString())
			return nil
		}
		return change.New(change.KindValidation, fmt.Sprintf("%s is not an ancestor of %s; use force", lastRev.AsString(), current.AsString()))
	}
	return nil
}
