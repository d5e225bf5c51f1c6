// Package runhelper is the Run Helper: the per-invocation context a
// workflow mode drives. It owns the resolved origin revision, the
// options snapshot, the origin/destination/authoring collaborators, and
// the file-glob, and knows how to linearize origin history, decide
// relevance, and drive one migrate() call at a time.
package runhelper

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/kurobon/vcsmigrate/internal/authoring"
	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/destination"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/origin"
)

// Options is the workflow options snapshot the Run Helper was started
// with.
type Options struct {
	// IterativeLimitChanges caps how many changes ITERATIVE writes in a
	// single run. Zero means unlimited.
	IterativeLimitChanges int
	// ChangeBaseline pre-selects the CHANGE_REQUEST baseline, skipping
	// auto-discovery.
	ChangeBaseline string
	// Force bypasses the no-changes / not-ancestor safety checks.
	Force bool
	// SquashWithoutHistory tells SQUASH to discard the detected change
	// list before handing it to the destination writer, once detection
	// has run: detection still executes and can still fail, only the
	// list is hidden from templating.
	SquashWithoutHistory bool
}

// RunHelper is the Run Helper. Create one with New at the start of a
// workflow invocation; ForChanges derives cheap sub-helper projections
// for per-changeset work without mutating the parent.
type RunHelper struct {
	parent      *RunHelper
	origin      origin.Reader
	destination destination.Writer
	authoring   authoring.Policy
	console     diag.Console
	resolvedRef change.Revision
	options     Options
	glob        Glob
}

// New builds the top-level RunHelper for a workflow invocation.
func New(o origin.Reader, d destination.Writer, a authoring.Policy, console diag.Console, resolvedRef change.Revision, options Options, glob Glob) *RunHelper {
	return &RunHelper{
		origin:      o,
		destination: d,
		authoring:   a,
		console:     console,
		resolvedRef: resolvedRef,
		options:     options,
		glob:        glob,
	}
}

// ForChanges returns a sub-helper projection scoped to a specific
// changeset: a thin view sharing every external collaborator with its
// parent, holding a change-specific file-glob plus a back-reference to
// the parent for unmodified accessors. Narrowing the glob per changeset
// is a configuration-layer concern outside this package's scope, so the
// sub-helper inherits its parent's glob unchanged; callers that need a
// narrower filter pass one to WithGlob on the returned helper.
func (h *RunHelper) ForChanges(changes []change.Change) *RunHelper {
	sub := *h
	sub.parent = h
	return &sub
}

// WithGlob returns a copy of h scoped to a narrower or wider glob,
// keeping every other field.
func (h *RunHelper) WithGlob(g Glob) *RunHelper {
	sub := *h
	sub.glob = g
	return &sub
}

// GetResolvedRef is the revision this run is targeting.
func (h *RunHelper) GetResolvedRef() change.Revision {
	return h.resolvedRef
}

// WorkflowOptions returns the options snapshot this run was started
// with.
func (h *RunHelper) WorkflowOptions() Options {
	return h.options
}

// IsForce reports whether the force override is on.
func (h *RunHelper) IsForce() bool {
	return h.options.Force
}

// IsSquashWithoutHistory reports whether SQUASH should discard its
// detected change list before templating.
func (h *RunHelper) IsSquashWithoutHistory() bool {
	return h.options.SquashWithoutHistory
}

// DestinationSupportsPreviousRef reports whether the destination can
// recover a last-imported revision from its own history.
func (h *RunHelper) DestinationSupportsPreviousRef() bool {
	return h.destination.SupportsPreviousRef()
}

// IsHistorySupported reports whether both sides of the migration
// support history; lastRev discovery only means anything when they do.
func (h *RunHelper) IsHistorySupported() bool {
	return h.destination.SupportsPreviousRef() && h.origin.SupportsHistory()
}

// Origin returns the origin reader this run was started with.
func (h *RunHelper) Origin() origin.Reader {
	return h.origin
}

// Destination returns the destination writer this run was started
// with.
func (h *RunHelper) Destination() destination.Writer {
	return h.destination
}

// Authoring returns the authoring policy this run was started with.
func (h *RunHelper) Authoring() authoring.Policy {
	return h.authoring
}

// Console returns the diagnostic sink this run was started with.
func (h *RunHelper) Console() diag.Console {
	return h.console
}

// GetLastRev resolves the last-imported origin revision recorded on the
// destination. Fails KindUnresolvableRevision if none is recorded.
func (h *RunHelper) GetLastRev(ctx context.Context) (change.Revision, error) {
	rev, ok, err := h.destination.LastImportedOriginRevision(ctx)
	if err != nil {
		return change.Revision{}, change.Wrap(change.KindRepo, "reading last imported revision", err)
	}
	if !ok {
		return change.Revision{}, change.New(change.KindUnresolvableRevision, "no last imported revision recorded on destination")
	}
	return rev, nil
}

// MaybeGetLastRev converts an unresolvable last-rev into a
// nil-with-warning when force is on, and re-raises it as a
// validation error otherwise.
func (h *RunHelper) MaybeGetLastRev(ctx context.Context) (*change.Revision, error) {
	rev, err := h.GetLastRev(ctx)
	if err == nil {
		return &rev, nil
	}
	if !change.Is(err, change.KindUnresolvableRevision) {
		return nil, err
	}
	if h.options.Force {
		h.console.Warn("no last imported revision found; proceeding without one (force)")
		return nil, nil
	}
	return nil, change.Wrap(change.KindValidation, "cannot determine last imported revision; use force", err)
}

// GetChanges linearizes the ChangeGraph the origin returns for
// (from, to] into ancestor-first order. Returns an empty slice, not an
// error, when the range is empty.
func (h *RunHelper) GetChanges(ctx context.Context, from *change.Revision, to change.Revision) ([]change.Change, error) {
	resp, err := h.origin.Changes(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if resp.IsEmpty() {
		return nil, nil
	}
	return resp.Graph().ReverseTopological(), nil
}

// ChangesSinceLastImport is GetChanges(GetLastRev(), resolvedRef),
// falling back to GetChanges(nil, resolvedRef) when the last-rev is
// unknown and force is on.
func (h *RunHelper) ChangesSinceLastImport(ctx context.Context) ([]change.Change, error) {
	lastRev, err := h.GetLastRev(ctx)
	if err != nil {
		if change.Is(err, change.KindUnresolvableRevision) && h.options.Force {
			h.console.Warn("no last imported revision found; force is on, scanning full history")
			return h.GetChanges(ctx, nil, h.resolvedRef)
		}
		return nil, err
	}
	return h.GetChanges(ctx, &lastRev, h.resolvedRef)
}

// SkipChanges reports whether every change in changes touches only
// files outside the configured glob, or changes is empty.
func (h *RunHelper) SkipChanges(changes []change.Change) bool {
	if len(changes) == 0 {
		return true
	}
	for _, c := range changes {
		if h.glob.TouchesAny(c.Files) {
			return false
		}
	}
	return true
}

// WorkflowIdentity derives the opaque per-run fingerprint the
// destination writer uses to correlate retries and multi-commit runs
// (glossary: "Workflow identity"), from the origin's diagnostic label
// and the revision actually being written.
func (h *RunHelper) WorkflowIdentity(rev change.Revision) string {
	return fmt.Sprintf("%s:%s", h.origin.LabelName(), rev.AsString())
}

// Migrate runs the (out-of-core-scope) transformation pipeline for
// currentRev and invokes the destination writer. The transformation
// pipeline itself is an external collaborator; this Run Helper's
// responsibility is materializing the origin tree and recognizing when
// the result would be empty before handing anything to the writer.
func (h *RunHelper) Migrate(ctx context.Context, currentRev change.Revision, console diag.Console, metadata change.Metadata, computed change.ComputedChanges, baseline *change.Revision, identity string) (destination.Result, error) {
	if err := ctx.Err(); err != nil {
		return destination.OK, change.Wrap(change.KindCancelled, "migrate", err)
	}

	c, err := h.origin.Change(ctx, currentRev)
	if err != nil {
		return destination.OK, err
	}
	if !h.glob.TouchesAny(c.Files) {
		return destination.OK, change.New(change.KindEmptyChange, fmt.Sprintf("%s: transformed tree is empty", currentRev.AsString()))
	}

	workDir := memfs.New()
	if err := h.origin.Checkout(ctx, currentRev, workDir); err != nil {
		return destination.OK, err
	}

	// The core owns no persisted state beyond what it writes into a
	// commit message: stamp the destination's own origin-label with
	// currentRev so a later migration reading this destination as an
	// origin can recover it, the same way GitReader parses labels back
	// out of a message it reads.
	stamped := metadata
	stamped.Message = appendLabel(metadata.Message, h.destination.LabelNameWhenOrigin(), currentRev.AsString())

	tree := destination.FSTree{FS: workDir}
	result, err := h.destination.Write(ctx, tree, stamped, computed, baseline, identity)
	if err != nil {
		return result, err
	}
	if console != nil {
		console.Info("wrote %s (%s)", currentRev.AsString(), result)
	}
	return result, nil
}

// appendLabel appends a "Key: value" trailer line to message.
func appendLabel(message, name, value string) string {
	trimmed := strings.TrimRight(message, "\n")
	if trimmed == "" {
		return fmt.Sprintf("%s: %s", name, value)
	}
	return fmt.Sprintf("%s\n\n%s: %s", trimmed, name, value)
}

// MaybeValidateRepoInLastRevState is an optional consistency check:
// re-running the transform on lastRev and comparing against what the
// destination already has would require driving the (out-of-scope)
// transform pipeline a second time and reading the destination's
// working tree back out, neither of which the core owns.
// What the core can and does check is that lastRev itself still
// resolves on the origin; anything beyond that is surfaced as a
// warning, never fatal, matching "any mismatch is reported but not
// fatal" — this repo has no policy flag demanding strictness, so force
// has no bearing here.
func (h *RunHelper) MaybeValidateRepoInLastRevState(ctx context.Context, metadata *change.Metadata) error {
	lastRev, err := h.GetLastRev(ctx)
	if err != nil {
		if change.Is(err, change.KindUnresolvableRevision) {
			return nil
		}
		return err
	}
	if _, err := h.origin.Change(ctx, lastRev); err != nil {
		h.console.Warn("repo-in-last-rev-state validation failed for %s: %v", lastRev.AsString(), err)
	}
	return nil
}
