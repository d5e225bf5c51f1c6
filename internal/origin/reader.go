// Package origin is the Origin Reader SPI plus a concrete go-git-backed
// implementation.
package origin

import (
	"context"

	"github.com/go-git/go-billy/v5"

	"github.com/kurobon/vcsmigrate/internal/change"
)

// VisitResult controls whether VisitChanges keeps walking ancestors.
// Modeled as an explicit variant rather than an error sentinel so
// "stop early" is never confused with failure.
type VisitResult int

const (
	// Continue asks VisitChanges to keep walking ancestors.
	Continue VisitResult = iota
	// Terminate stops the walk after the current change.
	Terminate
)

// Visitor is called once per ancestor, in reverse-chronological order,
// during VisitChanges.
type Visitor func(change.Change) VisitResult

// Reader is the Origin Reader SPI.
type Reader interface {
	// Resolve turns a human reference (branch, tag, hash, or "" for the
	// origin's default) into a Revision. May perform a network fetch as
	// a side effect. Fails with change.KindUnresolvableRevision.
	Resolve(ctx context.Context, ref string) (change.Revision, error)

	// Checkout materializes the tree of rev into workDir, which must
	// already exist; its contents are deleted then repopulated. Fails
	// with change.KindRepo (I/O, remote) or change.KindValidation (e.g.
	// an empty tree).
	Checkout(ctx context.Context, rev change.Revision, workDir billy.Filesystem) error

	// Changes enumerates commits in the half-open range (from, to]. A
	// nil from means "all ancestors of to, up to the origin root or a
	// configured limit".
	Changes(ctx context.Context, from *change.Revision, to change.Revision) (change.ChangesResponse, error)

	// Change fetches exactly one change. Fails with
	// change.KindEmptyChange if rev resolves to nothing.
	Change(ctx context.Context, rev change.Revision) (change.Change, error)

	// VisitChanges walks ancestors of start in reverse-chronological
	// order (first-parent preferred, merge branches permitted) until
	// the visitor returns Terminate or history is exhausted. Must not
	// revisit a node.
	VisitChanges(ctx context.Context, start change.Revision, visitor Visitor) error

	// SupportsHistory reports whether this origin has any history to
	// walk. Origins that only implement Resolve/Checkout (e.g. folder
	// snapshots) return false.
	SupportsHistory() bool

	// LabelName is a diagnostic string identifying this origin, used in
	// error messages and workflow identity derivation.
	LabelName() string
}
