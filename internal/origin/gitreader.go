package origin

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/kurobon/vcsmigrate/internal/change"
)

// defaultMaxHistory bounds an unbounded ancestor walk (fromRev == nil)
// so a misconfigured run against a very deep history doesn't traverse
// forever.
const defaultMaxHistory = 20000

// labelLine matches a trailing "Key: value" line in a commit message,
// the shape the glossary's example label takes ("OriginRevId: abcdef").
var labelLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*): (.+)$`)

// GitReader is the concrete Origin Reader backed by go-git.
type GitReader struct {
	repo       *gogit.Repository
	label      string
	maxHistory int
}

// NewGitReader wraps an already-opened go-git repository. label is a
// diagnostic string identifying the origin (e.g. the remote URL).
func NewGitReader(repo *gogit.Repository, label string) *GitReader {
	return &GitReader{repo: repo, label: label, maxHistory: defaultMaxHistory}
}

// WithMaxHistory overrides the ancestor-walk bound used when Changes is
// called with a nil fromRev.
func (g *GitReader) WithMaxHistory(n int) *GitReader {
	g.maxHistory = n
	return g
}

func (g *GitReader) SupportsHistory() bool { return true }

func (g *GitReader) LabelName() string { return g.label }

func (g *GitReader) Resolve(ctx context.Context, ref string) (change.Revision, error) {
	if err := ctx.Err(); err != nil {
		return change.Revision{}, change.Wrap(change.KindCancelled, "resolve", err)
	}

	target := strings.TrimSpace(ref)
	if target == "" {
		target = "HEAD"
	}

	hash, err := resolveRevisionString(g.repo, target)
	if err != nil {
		return change.Revision{}, change.Wrap(change.KindUnresolvableRevision, fmt.Sprintf("cannot resolve %q", ref), err)
	}
	return change.NewRevision(hash.String()), nil
}

// resolveRevisionString resolves branch/tag/full-hash references via
// go-git, then falls back to abbreviated-hash matching.
func resolveRevisionString(repo *gogit.Repository, rev string) (plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err == nil {
		return *hash, nil
	}

	if len(rev) >= 4 && len(rev) < 40 {
		cIter, iterErr := repo.CommitObjects()
		if iterErr == nil {
			var match plumbing.Hash
			found := false
			ambiguous := false

			_ = cIter.ForEach(func(c *object.Commit) error {
				hashStr := c.Hash.String()
				if len(hashStr) >= len(rev) && hashStr[:len(rev)] == rev {
					if found {
						ambiguous = true
						return fmt.Errorf("stop")
					}
					match = c.Hash
					found = true
				}
				return nil
			})

			if ambiguous {
				return plumbing.ZeroHash, fmt.Errorf("abbreviated revision %q is ambiguous", rev)
			}
			if found {
				return match, nil
			}
		}
	}

	return plumbing.ZeroHash, fmt.Errorf("revision %q not found", rev)
}

func (g *GitReader) Change(ctx context.Context, rev change.Revision) (change.Change, error) {
	if err := ctx.Err(); err != nil {
		return change.Change{}, change.Wrap(change.KindCancelled, "change", err)
	}

	commit, err := g.repo.CommitObject(plumbing.NewHash(rev.AsString()))
	if err != nil {
		return change.Change{}, change.Wrap(change.KindEmptyChange, fmt.Sprintf("no change at %s", rev.AsString()), err)
	}
	return g.toChange(commit)
}

func (g *GitReader) toChange(commit *object.Commit) (change.Change, error) {
	files, err := filesTouchedBy(commit)
	if err != nil {
		return change.Change{}, change.Wrap(change.KindRepo, "computing touched files", err)
	}

	return change.Change{
		Revision:  change.NewRevision(commit.Hash.String()),
		Author:    fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
		Message:   commit.Message,
		Timestamp: commit.Author.When,
		Labels:    parseLabels(commit.Message),
		Files:     files,
	}, nil
}

// parseLabels extracts "Key: value" trailer-style lines from a commit
// message into a LabelSet, preserving the order they appear.
func parseLabels(message string) *change.LabelSet {
	labels := change.NewLabelSet()
	for _, line := range strings.Split(message, "\n") {
		m := labelLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		labels.Add(m[1], strings.TrimSpace(m[2]))
	}
	return labels
}

// filesTouchedBy computes the files added/modified/removed by commit
// relative to its first parent (or, for a root commit, every file it
// introduces).
func filesTouchedBy(commit *object.Commit) ([]string, error) {
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}

	if commit.NumParents() == 0 {
		var files []string
		iter, err := commit.Files()
		if err != nil {
			return nil, fmt.Errorf("root commit files: %w", err)
		}
		if err := iter.ForEach(func(f *object.File) error {
			files = append(files, f.Name)
			return nil
		}); err != nil {
			return nil, err
		}
		return files, nil
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("parent commit: %w", err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("parent tree: %w", err)
	}

	patch, err := parentTree.Patch(commitTree)
	if err != nil {
		return nil, fmt.Errorf("computing patch: %w", err)
	}

	var files []string
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case to != nil:
			files = append(files, to.Path())
		case from != nil:
			files = append(files, from.Path())
		}
	}
	return files, nil
}

func (g *GitReader) Changes(ctx context.Context, from *change.Revision, to change.Revision) (change.ChangesResponse, error) {
	if err := ctx.Err(); err != nil {
		return change.ChangesResponse{}, change.Wrap(change.KindCancelled, "changes", err)
	}

	toHash := plumbing.NewHash(to.AsString())
	if _, err := g.repo.CommitObject(toHash); err != nil {
		return change.ChangesResponse{}, change.Wrap(change.KindUnresolvableRevision, fmt.Sprintf("cannot resolve %s", to.AsString()), err)
	}

	var fromHash *plumbing.Hash
	if from != nil {
		h := plumbing.NewHash(from.AsString())
		if _, err := g.repo.CommitObject(h); err != nil {
			return change.ChangesResponse{}, change.Wrap(change.KindUnresolvableRevision, fmt.Sprintf("cannot resolve %s", from.AsString()), err)
		}
		fromHash = &h
	}

	if fromHash != nil && *fromHash == toHash {
		return change.NoChangesResponse(change.NoChanges), nil
	}

	builder := change.NewGraphBuilder()
	visited := map[plumbing.Hash]bool{toHash: true}
	queue := []plumbing.Hash{toHash}
	count := 0
	reachedFrom := false

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		commit, err := g.repo.CommitObject(h)
		if err != nil {
			return change.ChangesResponse{}, change.Wrap(change.KindRepo, "reading commit", err)
		}

		c, err := g.toChange(commit)
		if err != nil {
			return change.ChangesResponse{}, err
		}

		var parentRevs []change.Revision
		for _, p := range commit.ParentHashes {
			parentRevs = append(parentRevs, change.NewRevision(p.String()))
		}
		if err := builder.AddChange(c, parentRevs); err != nil {
			return change.ChangesResponse{}, change.Wrap(change.KindRepo, "building change graph", err)
		}
		count++

		if fromHash != nil && h == *fromHash {
			reachedFrom = true
			continue // boundary excluded: don't expand its parents
		}
		if fromHash == nil && count >= g.maxHistory {
			break // configured limit reached; origin root may not be
		}

		for _, p := range commit.ParentHashes {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}

	if fromHash != nil && !reachedFrom {
		// fromRev was never reached walking back from toRev: it isn't
		// an ancestor of toRev, so the half-open range is meaningless.
		return change.NoChangesResponse(change.UnrelatedRevisions), nil
	}

	g2 := builder.Build()
	if fromHash != nil {
		// Drop the boundary node itself: the range is (from, to], and
		// from's edges (if any) into nodes still in the set remain
		// valid since Build() resolves edges against the final set.
		g2 = withoutRevision(g2, *fromHash)
	}

	if g2.Len() == 0 {
		return change.NoChangesResponse(change.NoChanges), nil
	}
	return change.ForChanges(g2), nil
}

// withoutRevision rebuilds a graph with the single node named by hash
// removed, preserving every other node and the edges between them.
func withoutRevision(g *change.Graph, hash plumbing.Hash) *change.Graph {
	excluded := change.NewRevision(hash.String())
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

func (g *GitReader) VisitChanges(ctx context.Context, start change.Revision, visitor Visitor) error {
	startHash := plumbing.NewHash(start.AsString())
	visited := map[plumbing.Hash]bool{}

	var walk func(h plumbing.Hash) (VisitResult, error)
	walk = func(h plumbing.Hash) (VisitResult, error) {
		if visited[h] {
			return Continue, nil
		}
		visited[h] = true

		if err := ctx.Err(); err != nil {
			return Terminate, change.Wrap(change.KindCancelled, "visitChanges", err)
		}

		commit, err := g.repo.CommitObject(h)
		if err != nil {
			return Terminate, change.Wrap(change.KindRepo, "reading commit", err)
		}
		c, err := g.toChange(commit)
		if err != nil {
			return Terminate, err
		}

		if visitor(c) == Terminate {
			return Terminate, nil
		}

		for _, p := range commit.ParentHashes {
			res, err := walk(p)
			if err != nil {
				return Terminate, err
			}
			if res == Terminate {
				return Terminate, nil
			}
		}
		return Continue, nil
	}

	_, err := walk(startHash)
	return err
}

func (g *GitReader) Checkout(ctx context.Context, rev change.Revision, workDir billy.Filesystem) error {
	if err := ctx.Err(); err != nil {
		return change.Wrap(change.KindCancelled, "checkout", ctx.Err())
	}

	commit, err := g.repo.CommitObject(plumbing.NewHash(rev.AsString()))
	if err != nil {
		return change.Wrap(change.KindUnresolvableRevision, fmt.Sprintf("cannot resolve %s", rev.AsString()), err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return change.Wrap(change.KindRepo, "reading tree", err)
	}

	if err := clearFilesystem(workDir, "/"); err != nil {
		return change.Wrap(change.KindRepo, "clearing checkout directory", err)
	}

	fileCount := 0
	if err := tree.Files().ForEach(func(f *object.File) error {
		fileCount++

		content, err := f.Reader()
		if err != nil {
			return err
		}
		defer content.Close()

		if dir := parentDir(f.Name); dir != "" {
			if err := workDir.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}

		out, err := workDir.OpenFile(f.Name, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, content)
		return err
	}); err != nil {
		return change.Wrap(change.KindRepo, "writing checkout tree", err)
	}

	if fileCount == 0 {
		return change.New(change.KindValidation, "origin repository is empty")
	}

	return nil
}

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// clearFilesystem recursively removes every entry under path, leaving
// path itself intact.
func clearFilesystem(fs billy.Filesystem, path string) error {
	entries, err := fs.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childPath := path + "/" + entry.Name()
		if path == "/" {
			childPath = entry.Name()
		}
		if entry.IsDir() {
			if err := clearFilesystem(fs, childPath); err != nil {
				return err
			}
		}
		if err := fs.Remove(childPath); err != nil {
			return err
		}
	}
	return nil
}
