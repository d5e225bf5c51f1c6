package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/kurobon/vcsmigrate/internal/change"
)

// GitWriter is a concrete Destination Writer backed by a real on-disk
// git repository: it replaces the worktree's tracked content with the
// transformed tree it was handed and creates one commit. The
// transformation pipeline and any review-upload machinery remain
// external collaborators; this is only the part that turns a tree plus
// metadata into a commit.
type GitWriter struct {
	repo      *gogit.Repository
	labelName string
}

// NewGitWriter wraps an already-opened, non-bare go-git repository.
// labelName is the trailer key under which commits record the origin
// revision they migrated. The caller stamps it into metadata.Message;
// Write commits the message unchanged and LastImportedOriginRevision
// reads the label back.
func NewGitWriter(repo *gogit.Repository, labelName string) *GitWriter {
	return &GitWriter{repo: repo, labelName: labelName}
}

func (w *GitWriter) SupportsPreviousRef() bool { return true }

func (w *GitWriter) LabelNameWhenOrigin() string { return w.labelName }

func (w *GitWriter) Write(ctx context.Context, tree Tree, metadata change.Metadata, computed change.ComputedChanges, baseline *change.Revision, identity string) (Result, error) {
	select {
	case <-ctx.Done():
		return OK, change.Wrap(change.KindCancelled, "write cancelled", ctx.Err())
	default:
	}

	fsTree, ok := tree.(FSTree)
	if !ok {
		return OK, change.New(change.KindRepo, "git writer requires an FSTree")
	}

	wt, err := w.repo.Worktree()
	if err != nil {
		return OK, change.Wrap(change.KindRepo, "opening worktree", err)
	}

	if baseline != nil {
		hash := plumbing.NewHash(baseline.AsString())
		if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash}); err != nil {
			return OK, change.Wrap(change.KindRepo, fmt.Sprintf("checking out baseline %s", baseline.AsString()), err)
		}
	}

	if err := replaceWorktreeContent(wt.Filesystem, fsTree.FS); err != nil {
		return OK, change.Wrap(change.KindRepo, "replacing worktree content", err)
	}

	if _, err := wt.Add("."); err != nil {
		return OK, change.Wrap(change.KindRepo, "staging changes", err)
	}

	sig := signatureFromAuthor(metadata.Author)
	if _, err := wt.Commit(metadata.Message, &gogit.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	}); err != nil {
		return OK, change.Wrap(change.KindRepo, "committing transformed tree", err)
	}

	return OK, nil
}

// LastImportedOriginRevision walks HEAD's ancestry looking for the
// first commit carrying a labelName trailer.
func (w *GitWriter) LastImportedOriginRevision(ctx context.Context) (change.Revision, bool, error) {
	head, err := w.repo.Head()
	if err != nil {
		return change.Revision{}, false, nil
	}

	iter, err := w.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return change.Revision{}, false, change.Wrap(change.KindRepo, "reading log", err)
	}
	defer iter.Close()

	var rev change.Revision
	found := false
	err = iter.ForEach(func(c *object.Commit) error {
		if v, ok := extractLabel(c.Message, w.labelName); ok {
			rev = change.NewRevision(v)
			found = true
			return storerStop
		}
		return nil
	})
	if err != nil && err != storerStop {
		return change.Revision{}, false, change.Wrap(change.KindRepo, "walking log", err)
	}
	return rev, found, nil
}

// storerStop is a sentinel used to break out of object.CommitIter.ForEach
// early, the same "return an error to stop" idiom go-git's own iterators
// document.
var storerStop = fmt.Errorf("stop")

// signatureFromAuthor parses a "Name <email>" string (the shape
// GitReader produces in toChange) into a go-git signature, falling back
// to a generic identity when the format doesn't match.
func signatureFromAuthor(author string) *object.Signature {
	name, email := author, "unknown@example.com"
	if i := strings.Index(author, "<"); i >= 0 && strings.HasSuffix(author, ">") {
		name = strings.TrimSpace(author[:i])
		email = author[i+1 : len(author)-1]
	}
	if name == "" {
		name = "vcsmigrate"
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

// replaceWorktreeContent clears every entry in dst (skipping .git) and
// copies src's full tree over it, adapted from the memory writer's
// copyFilesystem and internal/origin's clearFilesystem for a real
// on-disk worktree filesystem.
func replaceWorktreeContent(dst, src billy.Filesystem) error {
	if err := clearWorktree(dst, "/"); err != nil {
		return err
	}
	return copyIntoWorktree(src, dst, "/")
}

func clearWorktree(fs billy.Filesystem, path string) error {
	entries, err := fs.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		childPath := joinPath(path, entry.Name())
		if entry.IsDir() {
			if err := clearWorktree(fs, childPath); err != nil {
				return err
			}
		}
		if err := fs.Remove(childPath); err != nil {
			return err
		}
	}
	return nil
}

func copyIntoWorktree(src, dst billy.Filesystem, path string) error {
	entries, err := src.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childPath := joinPath(path, entry.Name())
		if entry.IsDir() {
			if err := dst.MkdirAll(childPath, entry.Mode()); err != nil {
				return err
			}
			if err := copyIntoWorktree(src, dst, childPath); err != nil {
				return err
			}
			continue
		}

		in, err := src.Open(childPath)
		if err != nil {
			return err
		}
		out, err := dst.OpenFile(childPath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
		if err != nil {
			in.Close()
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		out.Close()
		if err != nil {
			return fmt.Errorf("copying %s: %w", childPath, err)
		}
	}
	return nil
}

func joinPath(base, name string) string {
	if base == "/" {
		return name
	}
	return base + "/" + name
}
