// Package destination defines the Destination Writer SPI the core
// drives, plus two concrete writers: an on-disk git repository and an
// in-memory reference implementation used by the workflow tests.
// Review-upload to a real code-review tool remains an external
// collaborator.
package destination

import (
	"context"

	"github.com/kurobon/vcsmigrate/internal/change"
)

// Result is the outcome of a single Writer.Write call.
type Result int

const (
	// OK: the commit (or review update) was written with no further
	// action required from the caller.
	OK Result = iota
	// PromptToContinue: the writer wants the operator to confirm before
	// the next commit is written (e.g. the first commit of a long
	// iterative run just opened a code review).
	PromptToContinue
)

func (r Result) String() string {
	if r == PromptToContinue {
		return "PROMPT_TO_CONTINUE"
	}
	return "OK"
}

// Tree is the transformed working tree handed to the writer. It is
// opaque to the core: the (external) transformation pipeline produces
// it, and a concrete Writer interprets it however its destination VCS
// requires (a directory path, an in-memory fileset, ...).
type Tree interface {
	// Root returns an implementation-defined handle to the tree's root;
	// concrete writers downcast it to whatever they expect.
	Root() any
}

// Writer is the Destination Writer SPI.
type Writer interface {
	// Write accepts a transformed tree plus metadata plus an optional
	// baseline ancestor (non-nil only for CHANGE_REQUEST-style review
	// imports) and an opaque workflow identity used to correlate
	// retries and multi-commit runs.
	Write(ctx context.Context, tree Tree, metadata change.Metadata, computed change.ComputedChanges, baseline *change.Revision, identity string) (Result, error)

	// SupportsPreviousRef reports whether this destination can recover
	// a "last imported revision" from its own history, i.e. whether it
	// implements LabelNameWhenOrigin meaningfully.
	SupportsPreviousRef() bool

	// LabelNameWhenOrigin is the label name this destination stamps on
	// commits it writes to record the upstream origin revision. When
	// this destination is later read as an origin by another
	// migration, CHANGE_REQUEST baseline discovery searches for this
	// exact label name.
	LabelNameWhenOrigin() string

	// LastImportedOriginRevision inspects the destination's most recent
	// relevant commit and extracts the value of LabelNameWhenOrigin.
	// The core persists no state of its own: the destination is the
	// source of truth. Returns ok=false if no such label has ever been
	// written.
	LastImportedOriginRevision(ctx context.Context) (rev change.Revision, ok bool, err error)
}
