package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/vcsmigrate/internal/authoring"
	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/destination"
	"github.com/kurobon/vcsmigrate/internal/runhelper"
)

func newIterativeHelper(o *fakeOrigin, w *destination.MemoryWriter, current string, opts runhelper.Options) *runhelper.RunHelper {
	return runhelper.New(o, w, authoring.NewDefault("vcsmigrate <vcsmigrate@localhost>"),
		&fakeConsole{}, change.NewRevision(current), opts, runhelper.AllFiles())
}

// S4: 5 new changes since lastRev, iterativeLimitChanges=3. Expect 3
// commits written, the run reports truncation, and lastRev on the
// destination ends up at the 3rd change's revision.
func TestIterativeS4LimitTruncates(t *testing.T) {
	o := newFakeOrigin()
	o.addCommit("A", nil, "a <a@x>", "commit A", "f1")
	for _, rev := range []string{"B", "C", "D", "E", "F"} {
		parent := prevRev(rev)
		o.addCommit(rev, []string{parent}, "a <a@x>", "commit "+rev, "f1")
	}

	w := destination.NewMemoryWriter("OriginRevId")
	w.Write(context.Background(), seedTree(), change.Metadata{Message: "OriginRevId: A"}, change.ComputedChanges{}, nil, "seed")

	h := newIterativeHelper(o, w, "F", runhelper.Options{IterativeLimitChanges: 3})
	result, err := Run(context.Background(), Iterative, h, h.Console())
	require.NoError(t, err)
	assert.Equal(t, 3, result.CommitsWritten)
	assert.True(t, result.Truncated)

	commits := w.Commits()
	require.Len(t, commits, 4) // seed + 3 iterative commits
	assert.Equal(t, "D", commits[len(commits)-1].Labels["OriginRevId"])
}

// prevRev returns the predecessor of rev in the fixed chain
// A<-B<-C<-D<-E<-F used by the iterative tests.
func prevRev(rev string) string {
	chain := map[string]string{"B": "A", "C": "B", "D": "C", "E": "D", "F": "E"}
	return chain[rev]
}

// S5: change 2 of 4 (C) is empty after transformation (its fetched
// change touches no files). Expect a warning, no destination commit for
// it, and the run completes with 3 commits.
func TestIterativeS5MidRunEmptyChange(t *testing.T) {
	o := newFakeOrigin()
	o.addCommit("A", nil, "a <a@x>", "commit A", "f1")
	o.addCommit("B", []string{"A"}, "a <a@x>", "commit B", "f1")
	o.addCommit("C", []string{"B"}, "a <a@x>", "commit C", "f1")
	o.emptyOnFetch["C"] = true // transforms to an empty tree despite touching f1
	o.addCommit("D", []string{"C"}, "a <a@x>", "commit D", "f1")
	o.addCommit("E", []string{"D"}, "a <a@x>", "commit E", "f1")

	w := destination.NewMemoryWriter("OriginRevId")
	w.Write(context.Background(), seedTree(), change.Metadata{Message: "OriginRevId: A"}, change.ComputedChanges{}, nil, "seed")

	h := newIterativeHelper(o, w, "E", runhelper.Options{})
	result, err := Run(context.Background(), Iterative, h, h.Console())
	require.NoError(t, err)
	assert.Equal(t, 3, result.CommitsWritten)

	commits := w.Commits()
	require.Len(t, commits, 4) // seed + B + D + E, no commit for C
	var revs []string
	for _, c := range commits[1:] {
		revs = append(revs, c.Labels["OriginRevId"])
	}
	assert.Equal(t, []string{"B", "D", "E"}, revs)
}

// Invariant 3: at step k, ComputedChanges.AlreadyMigrated at step k+1
// contains the change just migrated at its front, followed by whatever
// was at the front before.
func TestIterativeOrderingAlreadyMigrated(t *testing.T) {
	o := newFakeOrigin()
	o.addCommit("A", nil, "a <a@x>", "commit A", "f1")
	o.addCommit("B", []string{"A"}, "a <a@x>", "commit B", "f1")
	o.addCommit("C", []string{"B"}, "a <a@x>", "commit C", "f1")

	w := destination.NewMemoryWriter("OriginRevId")
	w.Write(context.Background(), seedTree(), change.Metadata{Message: "OriginRevId: A"}, change.ComputedChanges{}, nil, "seed")

	h := newIterativeHelper(o, w, "C", runhelper.Options{})
	result, err := Run(context.Background(), Iterative, h, h.Console())
	require.NoError(t, err)
	assert.Equal(t, 2, result.CommitsWritten)

	commits := w.Commits()
	require.Len(t, commits, 3) // seed + B + C

	bCommit := commits[1]
	require.Len(t, bCommit.Computed.Current, 1)
	assert.Equal(t, "B", bCommit.Computed.Current[0].Revision.AsString())
	assert.Empty(t, bCommit.Computed.AlreadyMigrated)

	cCommit := commits[2]
	require.Len(t, cCommit.Computed.Current, 1)
	assert.Equal(t, "C", cCommit.Computed.Current[0].Revision.AsString())
	require.Len(t, cCommit.Computed.AlreadyMigrated, 1)
	assert.Equal(t, "B", cCommit.Computed.AlreadyMigrated[0].Revision.AsString())
}

// PROMPT_TO_CONTINUE: when the writer asks to pause and the operator
// declines, the run raises change-rejected.
func TestIterativePromptDeclineRaisesChangeRejected(t *testing.T) {
	o := newFakeOrigin()
	o.addCommit("A", nil, "a <a@x>", "commit A", "f1")
	o.addCommit("B", []string{"A"}, "a <a@x>", "commit B", "f1")
	o.addCommit("C", []string{"B"}, "a <a@x>", "commit C", "f1")

	w := destination.NewMemoryWriter("OriginRevId").WithPromptEvery(1)
	w.Write(context.Background(), seedTree(), change.Metadata{Message: "OriginRevId: A"}, change.ComputedChanges{}, nil, "seed")

	h := runhelper.New(o, w, authoring.NewDefault("Bot <bot@x>"), &fakeConsole{promptAnswer: false},
		change.NewRevision("C"), runhelper.Options{}, runhelper.AllFiles())

	_, err := Run(context.Background(), Iterative, h, h.Console())
	require.Error(t, err)
	assert.True(t, change.Is(err, change.KindChangeRejected))
}

// When the operator accepts the PROMPT_TO_CONTINUE gate, the run
// completes normally.
func TestIterativePromptAcceptContinues(t *testing.T) {
	o := newFakeOrigin()
	o.addCommit("A", nil, "a <a@x>", "commit A", "f1")
	o.addCommit("B", []string{"A"}, "a <a@x>", "commit B", "f1")
	o.addCommit("C", []string{"B"}, "a <a@x>", "commit C", "f1")

	w := destination.NewMemoryWriter("OriginRevId").WithPromptEvery(1)
	w.Write(context.Background(), seedTree(), change.Metadata{Message: "OriginRevId: A"}, change.ComputedChanges{}, nil, "seed")

	h := runhelper.New(o, w, authoring.NewDefault("Bot <bot@x>"), &fakeConsole{promptAnswer: true},
		change.NewRevision("C"), runhelper.Options{}, runhelper.AllFiles())

	result, err := Run(context.Background(), Iterative, h, h.Console())
	require.NoError(t, err)
	assert.Equal(t, 2, result.CommitsWritten)
}

func seedTree() destination.FSTree {
	return destination.FSTree{FS: newMemFS()}
}
