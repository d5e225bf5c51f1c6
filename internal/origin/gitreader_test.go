package origin

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/vcsmigrate/internal/change"
)

// newTestRepo builds an in-memory go-git repository (memfs worktree +
// memory storage, Worktree.Add/Commit) and commits one file per
// message in order.
func newTestRepo(t *testing.T, messages ...string) (*gogit.Repository, []string) {
	t.Helper()

	fs := memfs.New()
	repo, err := gogit.Init(memory.NewStorage(), fs)
	require.NoError(t, err)

	w, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: time.Unix(1000, 0)}

	var hashes []string
	for i, msg := range messages {
		name := "file.txt"
		f, err := fs.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(msg))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		_, err = w.Add(name)
		require.NoError(t, err)

		sig.When = sig.When.Add(time.Duration(i) * time.Minute)
		h, err := w.Commit(msg, &gogit.CommitOptions{Author: sig})
		require.NoError(t, err)
		hashes = append(hashes, h.String())
	}

	return repo, hashes
}

func TestGitReaderResolveAndChange(t *testing.T) {
	repo, hashes := newTestRepo(t, "first", "second", "third")
	r := NewGitReader(repo, "test-origin")

	rev, err := r.Resolve(context.Background(), "HEAD")
	require.NoError(t, err)
	assert.Equal(t, hashes[2], rev.AsString())

	c, err := r.Change(context.Background(), rev)
	require.NoError(t, err)
	assert.Equal(t, "third", c.Message)
	assert.Equal(t, []string{"file.txt"}, c.Files)
}

func TestGitReaderChangesRange(t *testing.T) {
	repo, hashes := newTestRepo(t, "first", "second", "third")
	r := NewGitReader(repo, "test-origin")

	from := change.NewRevision(hashes[0])
	to := change.NewRevision(hashes[2])

	resp, err := r.Changes(context.Background(), &from, to)
	require.NoError(t, err)
	require.False(t, resp.IsEmpty())

	ordered := resp.Graph().ReverseTopological()
	require.Len(t, ordered, 2)
	assert.Equal(t, hashes[1], ordered[0].Revision.AsString())
	assert.Equal(t, hashes[2], ordered[1].Revision.AsString())
}

func TestGitReaderChangesNoneWhenEqual(t *testing.T) {
	repo, hashes := newTestRepo(t, "only")
	r := NewGitReader(repo, "test-origin")

	rev := change.NewRevision(hashes[0])
	resp, err := r.Changes(context.Background(), &rev, rev)
	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())
	assert.Equal(t, change.NoChanges, resp.Reason())
}

func TestGitReaderChangesUnrelated(t *testing.T) {
	repo, hashes := newTestRepo(t, "first", "second")
	r := NewGitReader(repo, "test-origin")

	// hashes[1] is not an ancestor of hashes[0] (it's the descendant).
	notAncestor := change.NewRevision(hashes[1])
	to := change.NewRevision(hashes[0])

	resp, err := r.Changes(context.Background(), &notAncestor, to)
	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())
	assert.Equal(t, change.UnrelatedRevisions, resp.Reason())
}

func TestGitReaderChangesAllAncestorsWhenFromNil(t *testing.T) {
	repo, hashes := newTestRepo(t, "first", "second", "third")
	r := NewGitReader(repo, "test-origin")

	to := change.NewRevision(hashes[2])
	resp, err := r.Changes(context.Background(), nil, to)
	require.NoError(t, err)
	require.False(t, resp.IsEmpty())
	assert.Equal(t, 3, resp.Graph().Len())
}

func TestGitReaderVisitChanges(t *testing.T) {
	repo, hashes := newTestRepo(t, "first", "second", "third")
	r := NewGitReader(repo, "test-origin")

	start := change.NewRevision(hashes[2])
	var visited []string
	err := r.VisitChanges(context.Background(), start, func(c change.Change) VisitResult {
		visited = append(visited, c.Revision.AsString())
		if c.Revision.AsString() == hashes[1] {
			return Terminate
		}
		return Continue
	})
	require.NoError(t, err)
	assert.Equal(t, []string{hashes[2], hashes[1]}, visited)
}

func TestGitReaderCheckout(t *testing.T) {
	repo, hashes := newTestRepo(t, "first", "second")
	r := NewGitReader(repo, "test-origin")

	workDir := memfs.New()
	err := r.Checkout(context.Background(), change.NewRevision(hashes[1]), workDir)
	require.NoError(t, err)

	f, err := workDir.Open("file.txt")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 16)
	n, _ := f.Read(buf)
	assert.Equal(t, "second", string(buf[:n]))
}

func TestGitReaderLabelParsing(t *testing.T) {
	fs := memfs.New()
	repo, err := gogit.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)

	f, err := fs.Create("a.txt")
	require.NoError(t, err)
	_, _ = f.Write([]byte("x"))
	require.NoError(t, f.Close())
	_, err = w.Add("a.txt")
	require.NoError(t, err)

	sig := &object.Signature{Name: "Bob", Email: "bob@example.com", When: time.Unix(0, 0)}
	h, err := w.Commit("Import change\n\nOriginRevId: abcdef123\n", &gogit.CommitOptions{Author: sig})
	require.NoError(t, err)

	r := NewGitReader(repo, "test-origin")
	c, err := r.Change(context.Background(), change.NewRevision(h.String()))
	require.NoError(t, err)

	v, ok := c.Label("OriginRevId")
	require.True(t, ok)
	assert.Equal(t, "abcdef123", v)
}
