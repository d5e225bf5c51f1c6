package workflow

import (
	"context"
	"fmt"

	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/destination"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/runhelper"
)

// runIterative writes one destination commit per origin change.
func runIterative(ctx context.Context, h *runhelper.RunHelper, console diag.Console) (Result, error) {
	changes, err := h.ChangesSinceLastImport(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(changes) == 0 {
		return Result{}, change.New(change.KindEmptyChange, "no changes since last import")
	}

	limit := len(changes)
	truncated := false
	if opts := h.WorkflowOptions(); opts.IterativeLimitChanges > 0 && opts.IterativeLimitChanges < len(changes) {
		limit = opts.IterativeLimitChanges
		truncated = true
	}
	if truncated {
		console.Info("iterative run truncated to %d of %d changes", limit, len(changes))
	}

	if err := h.MaybeValidateRepoInLastRevState(ctx, nil); err != nil {
		return Result{}, err
	}

	var migrated []change.Change // most-recent-first
	migratedCount := 0

	for i, c := range changes {
		if migratedCount == limit {
			break
		}

		prefixed := console.WithPrefix(fmt.Sprintf("[change %d/%d] ", i+1, len(changes)))

		sub := h.ForChanges([]change.Change{c})
		if sub.SkipChanges([]change.Change{c}) {
			continue
		}

		author := c.Author
		if !h.Authoring().Allowed(author) {
			author = h.Authoring().DefaultAuthor()
		}
		metadata := change.Metadata{Message: c.Message, Author: author}
		computed := change.ComputedChanges{Current: []change.Change{c}, AlreadyMigrated: migrated}
		identity := h.WorkflowIdentity(c.Revision)

		result, err := h.Migrate(ctx, c.Revision, prefixed, metadata, computed, nil, identity)
		if err != nil {
			if change.Is(err, change.KindEmptyChange) {
				prefixed.Warn("empty change, skipping: %v", err)
				migrated = prependChange(migrated, c)
				continue
			}
			// validation-error and repo-error are fatal.
			return Result{}, err
		}

		migrated = prependChange(migrated, c)
		migratedCount++

		if result == destination.PromptToContinue && i+1 < len(changes) {
			if !prefixed.Prompt("continue migrating remaining changes?") {
				return Result{}, change.New(change.KindChangeRejected, "user declined to continue iterative migration")
			}
		}
	}

	if migratedCount == 0 {
		return Result{}, change.New(change.KindEmptyChange, "no changes were migrated")
	}

	return Result{CommitsWritten: migratedCount, Truncated: truncated}, nil
}
