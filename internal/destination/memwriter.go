package destination

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/kurobon/vcsmigrate/internal/change"
)

// trailerLine matches a "Key: value" line in a commit message, the same
// shape internal/origin's GitReader parses labels out of. The core owns
// no persisted state beyond what it writes into a commit message, so a
// destination recovers its own prior labels by reading its own messages
// back, exactly like an origin would.
var trailerLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*): (.+)$`)

func extractLabel(message, name string) (string, bool) {
	for _, line := range strings.Split(message, "\n") {
		m := trailerLine.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil && m[1] == name {
			return strings.TrimSpace(m[2]), true
		}
	}
	return "", false
}

// FSTree is the Tree implementation both concrete writers accept: a
// transformed working tree living on a billy.Filesystem.
type FSTree struct {
	FS billy.Filesystem
}

func (t FSTree) Root() any { return t.FS }

// MemCommit is one commit recorded by MemoryWriter, exposed to tests via
// Commits.
type MemCommit struct {
	Metadata change.Metadata
	Tree     billy.Filesystem
	Labels   map[string]string
	Identity string
	Computed change.ComputedChanges
	Baseline *change.Revision
}

// MemoryWriter is an in-memory Destination Writer: it records each
// write as a snapshot of the tree handed to it, extracting whatever
// origin-revision label the caller stamped into metadata.Message. It
// never prompts to continue unless PromptEvery is set, which workflow
// tests use to exercise the PROMPT_TO_CONTINUE path.
type MemoryWriter struct {
	mu          sync.Mutex
	commits     []MemCommit
	labelName   string
	promptEvery int // 0 disables; N prompts after every Nth write
	writes      int
}

// NewMemoryWriter builds a MemoryWriter whose commits record the
// upstream origin revision under labelName (see LabelNameWhenOrigin).
// The caller stamps that label into metadata.Message; the writer only
// reads it back out.
func NewMemoryWriter(labelName string) *MemoryWriter {
	return &MemoryWriter{labelName: labelName}
}

// WithPromptEvery configures the writer to return PromptToContinue
// after every n-th write (n>=1). Used by tests exercising the
// PROMPT_TO_CONTINUE / change-rejected path.
func (w *MemoryWriter) WithPromptEvery(n int) *MemoryWriter {
	w.promptEvery = n
	return w
}

func (w *MemoryWriter) Write(ctx context.Context, tree Tree, metadata change.Metadata, computed change.ComputedChanges, baseline *change.Revision, identity string) (Result, error) {
	select {
	case <-ctx.Done():
		return OK, change.Wrap(change.KindCancelled, "write cancelled", ctx.Err())
	default:
	}

	fsTree, ok := tree.(FSTree)
	if !ok {
		return OK, change.New(change.KindRepo, "memory writer requires an FSTree")
	}

	snapshot := memfs.New()
	if err := copyFilesystem(fsTree.FS, snapshot, "/"); err != nil {
		return OK, change.Wrap(change.KindRepo, "snapshotting transformed tree", err)
	}

	labels := map[string]string{}
	if v, ok := extractLabel(metadata.Message, w.labelName); ok {
		labels[w.labelName] = v
	}

	w.mu.Lock()
	w.commits = append(w.commits, MemCommit{Metadata: metadata, Tree: snapshot, Labels: labels, Identity: identity, Computed: computed, Baseline: baseline})
	w.writes++
	result := OK
	if w.promptEvery > 0 && w.writes%w.promptEvery == 0 {
		result = PromptToContinue
	}
	w.mu.Unlock()

	return result, nil
}

func (w *MemoryWriter) SupportsPreviousRef() bool {
	return true
}

func (w *MemoryWriter) LabelNameWhenOrigin() string {
	return w.labelName
}

func (w *MemoryWriter) LastImportedOriginRevision(ctx context.Context) (change.Revision, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.commits) - 1; i >= 0; i-- {
		if v, ok := w.commits[i].Labels[w.labelName]; ok {
			return change.NewRevision(v), true, nil
		}
	}
	return change.Revision{}, false, nil
}

// Commits returns a snapshot of the writer's recorded commits, for test
// assertions.
func (w *MemoryWriter) Commits() []MemCommit {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]MemCommit, len(w.commits))
	copy(out, w.commits)
	return out
}

// copyFilesystem recursively copies files from src to dst, used to
// snapshot a transformed tree into a recorded commit.
func copyFilesystem(src, dst billy.Filesystem, path string) error {
	fileInfos, err := src.ReadDir(path)
	if err != nil {
		return err
	}

	for _, fi := range fileInfos {
		fullPath := path + "/" + fi.Name()
		if path == "/" {
			fullPath = fi.Name()
		}

		if fi.IsDir() {
			if err := dst.MkdirAll(fullPath, fi.Mode()); err != nil {
				return err
			}
			if err := copyFilesystem(src, dst, fullPath); err != nil {
				return err
			}
			continue
		}

		srcFile, err := src.Open(fullPath)
		if err != nil {
			return err
		}

		dstFile, err := dst.Create(fullPath)
		if err != nil {
			srcFile.Close()
			return err
		}

		_, err = io.Copy(dstFile, srcFile)
		srcFile.Close()
		dstFile.Close()
		if err != nil {
			return fmt.Errorf("copying %s: %w", fullPath, err)
		}
	}
	return nil
}
