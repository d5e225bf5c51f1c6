package workflow

import (
	"context"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/origin"
)

// newMemFS builds an empty in-memory filesystem, used as the transformed
// tree handed to a MemoryWriter in tests that don't care about its
// contents.
func newMemFS() billy.Filesystem {
	return memfs.New()
}

// historyEntry is one commit in a fakeOrigin's synthetic history.
type historyEntry struct {
	change  change.Change
	parents []change.Revision
}

// fakeOrigin is an in-memory origin.Reader double driving the workflow
// mode tests against a small hand-built DAG. Changes replicates the same
// BFS-from-to/stop-expanding-at-from/drop-the-boundary-node shape
// internal/origin's GitReader walks over go-git commits, just over a map
// instead of a real repository.
type fakeOrigin struct {
	entries   map[string]historyEntry
	noHistory bool
	// emptyOnFetch names revisions whose direct Change fetch (the one
	// Migrate performs) returns no files, even though the same revision
	// carries files in its history-graph record. Models a change whose
	// origin file list is non-trivial but whose (out-of-scope) transform
	// produces an empty tree — something skipChanges' file-glob
	// pre-filter can't predict, unlike this fake's other commits.
	emptyOnFetch map[string]bool
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{entries: map[string]historyEntry{}, emptyOnFetch: map[string]bool{}}
}

// addCommit records a commit with the given parents (by revision
// string). Entries are keyed by revision, so the order commits are
// added in does not matter.
func (f *fakeOrigin) addCommit(rev string, parents []string, author, message string, files ...string) {
	var prevs []change.Revision
	for _, p := range parents {
		prevs = append(prevs, change.NewRevision(p))
	}
	f.entries[rev] = historyEntry{
		change: change.Change{
			Revision: change.NewRevision(rev),
			Author:   author,
			Message:  message,
			Labels:   change.NewLabelSet(),
			Files:    files,
		},
		parents: prevs,
	}
}

// withLabel adds a label to an already-added commit, for S6's
// destination-origin-label baseline discovery.
func (f *fakeOrigin) withLabel(rev, name, value string) {
	e := f.entries[rev]
	e.change.Labels.Add(name, value)
	f.entries[rev] = e
}

func (f *fakeOrigin) Resolve(ctx context.Context, ref string) (change.Revision, error) {
	if _, ok := f.entries[ref]; !ok {
		return change.Revision{}, change.New(change.KindUnresolvableRevision, "no such revision: "+ref)
	}
	return change.NewRevision(ref), nil
}

func (f *fakeOrigin) Checkout(ctx context.Context, rev change.Revision, workDir billy.Filesystem) error {
	return nil
}

func (f *fakeOrigin) Change(ctx context.Context, rev change.Revision) (change.Change, error) {
	e, ok := f.entries[rev.AsString()]
	if !ok {
		return change.Change{}, change.New(change.KindEmptyChange, "no such change: "+rev.AsString())
	}
	if f.emptyOnFetch[rev.AsString()] {
		c := e.change
		c.Files = nil
		return c, nil
	}
	return e.change, nil
}

func (f *fakeOrigin) Changes(ctx context.Context, from *change.Revision, to change.Revision) (change.ChangesResponse, error) {
	if _, ok := f.entries[to.AsString()]; !ok {
		return change.ChangesResponse{}, change.New(change.KindUnresolvableRevision, "cannot resolve "+to.AsString())
	}
	if from != nil {
		if _, ok := f.entries[from.AsString()]; !ok {
			return change.ChangesResponse{}, change.New(change.KindUnresolvableRevision, "cannot resolve "+from.AsString())
		}
		if from.Equal(to) {
			return change.NoChangesResponse(change.NoChanges), nil
		}
	}

	builder := change.NewGraphBuilder()
	visited := map[string]bool{to.AsString(): true}
	queue := []string{to.AsString()}
	reachedFrom := false

	for len(queue) > 0 {
		rev := queue[0]
		queue = queue[1:]

		e := f.entries[rev]
		if err := builder.AddChange(e.change, e.parents); err != nil {
			return change.ChangesResponse{}, change.Wrap(change.KindRepo, "building change graph", err)
		}

		if from != nil && rev == from.AsString() {
			reachedFrom = true
			continue // boundary excluded: don't expand its parents
		}

		for _, p := range e.parents {
			if !visited[p.AsString()] {
				visited[p.AsString()] = true
				queue = append(queue, p.AsString())
			}
		}
	}

	if from != nil && !reachedFrom {
		return change.NoChangesResponse(change.UnrelatedRevisions), nil
	}

	g := builder.Build()
	if from != nil {
		g = withoutRevision(g, *from)
	}
	if g.Len() == 0 {
		return change.NoChangesResponse(change.NoChanges), nil
	}
	return change.ForChanges(g), nil
}

// withoutRevision rebuilds g with excluded dropped, the same shape
// internal/origin uses to trim the (from, to] boundary node.
func withoutRevision(g *change.Graph, excluded change.Revision) *change.Graph {
	b := change.NewGraphBuilder()
	for _, rev := range g.Revisions() {
		if rev.Equal(excluded) {
			continue
		}
		c, _ := g.Change(rev)
		parents, _ := g.Parents(rev)
		_ = b.AddChange(c, parents)
	}
	return b.Build()
}

func (f *fakeOrigin) VisitChanges(ctx context.Context, start change.Revision, visitor origin.Visitor) error {
	visited := map[string]bool{}

	var walk func(rev string) (origin.VisitResult, error)
	walk = func(rev string) (origin.VisitResult, error) {
		if visited[rev] {
			return origin.Continue, nil
		}
		visited[rev] = true

		e, ok := f.entries[rev]
		if !ok {
			return origin.Continue, nil
		}
		if visitor(e.change) == origin.Terminate {
			return origin.Terminate, nil
		}
		for _, p := range e.parents {
			res, err := walk(p.AsString())
			if err != nil {
				return origin.Terminate, err
			}
			if res == origin.Terminate {
				return origin.Terminate, nil
			}
		}
		return origin.Continue, nil
	}

	_, err := walk(start.AsString())
	return err
}

func (f *fakeOrigin) SupportsHistory() bool { return !f.noHistory }
func (f *fakeOrigin) LabelName() string     { return "fake-origin" }

// fakeConsole is a diag.Console double whose Prompt answer is fixed at
// construction, for exercising both sides of the PROMPT_TO_CONTINUE gate
// without touching stdin.
type fakeConsole struct {
	promptAnswer bool
	prefix       string
}

func (c *fakeConsole) Info(format string, args ...any) {}
func (c *fakeConsole) Warn(format string, args ...any)  {}

func (c *fakeConsole) Prompt(format string, args ...any) bool {
	return c.promptAnswer
}

func (c *fakeConsole) WithPrefix(prefix string) diag.Console {
	return &fakeConsole{promptAnswer: c.promptAnswer, prefix: c.prefix + prefix}
}
