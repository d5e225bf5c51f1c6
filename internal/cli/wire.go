package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gogit "github.com/go-git/go-git/v5"

	"github.com/kurobon/vcsmigrate/internal/authoring"
	"github.com/kurobon/vcsmigrate/internal/change"
	"github.com/kurobon/vcsmigrate/internal/config"
	"github.com/kurobon/vcsmigrate/internal/destination"
	"github.com/kurobon/vcsmigrate/internal/diag"
	"github.com/kurobon/vcsmigrate/internal/origin"
	"github.com/kurobon/vcsmigrate/internal/runhelper"
	"github.com/kurobon/vcsmigrate/internal/workflow"
)

// openOrigin opens an existing local origin repository, or clones one
// from a URL if the path doesn't exist on disk.
func openOrigin(path string) (*gogit.Repository, error) {
	if isLocalPath(path) {
		return gogit.PlainOpen(path)
	}
	dir, err := os.MkdirTemp("", "vcsmigrate-origin-*")
	if err != nil {
		return nil, err
	}
	return gogit.PlainClone(dir, false, &gogit.CloneOptions{URL: path})
}

// openOrInitDestination opens an existing destination repository, or
// initializes an empty one if the path doesn't exist.
func openOrInitDestination(path string) (*gogit.Repository, error) {
	if repo, err := gogit.PlainOpen(path); err == nil {
		return repo, nil
	}
	return gogit.PlainInit(path, false)
}

func isLocalPath(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// runWorkflow resolves the ref, wires the Run Helper and its
// collaborators, and dispatches to the requested workflow mode. Shared
// by all three subcommands since only the Mode and the resulting
// report text differ between them.
func runWorkflow(mode workflow.Mode) error {
	if flagOrigin == "" || flagDestination == "" {
		return fmt.Errorf("--origin and --destination are required")
	}

	cfgPath := flagConfigFile
	if cfgPath == "" {
		cfgPath = config.DefaultConfigFile
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// A SIGINT/SIGTERM cancels ctx so the next suspension point the
	// workflow checks (every origin/destination call) surfaces
	// KindCancelled instead of being killed mid-write.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	originRepo, err := openOrigin(flagOrigin)
	if err != nil {
		return fmt.Errorf("opening origin: %w", err)
	}
	destRepo, err := openOrInitDestination(flagDestination)
	if err != nil {
		return fmt.Errorf("opening destination: %w", err)
	}

	reader := origin.NewGitReader(originRepo, flagOrigin)
	writer := destination.NewGitWriter(destRepo, flagOriginLabel)
	author := authoringPolicy(mode)
	console := diag.NewStderrConsole()

	resolved, err := reader.Resolve(ctx, flagRef)
	if err != nil {
		return err
	}

	opts := runhelper.Options{
		IterativeLimitChanges: flagIterativeLimit,
		ChangeBaseline:        flagChangeRequestParent,
		Force:                 flagForce,
		SquashWithoutHistory:  flagSquashWithoutHistory,
	}
	if opts.IterativeLimitChanges == 0 {
		opts.IterativeLimitChanges = cfg.DefaultIterativeLimit
	}

	h := runhelper.New(reader, writer, author, console, resolved, opts, runhelper.AllFiles())

	result, err := workflow.Run(ctx, mode, h, console)
	if err != nil {
		if change.Is(err, change.KindChangeRejected) {
			console.Warn("%v", err)
			return err
		}
		return err
	}

	console.Info("%s complete: %d commit(s) written%s", mode, result.CommitsWritten, truncatedSuffix(result.Truncated))
	return nil
}

// authoringPolicy picks the Policy for mode. SQUASH always attributes to
// vcsmigrate's own identity per spec §4.3.1 step 4, regardless of the
// flag. ITERATIVE preserves upstream authorship when
// --preserve-authorship is set, falling back to vcsmigrate's identity
// for changes with no author of their own. CHANGE_REQUEST does not
// consult the policy: it always stamps the change's own author.
func authoringPolicy(mode workflow.Mode) authoring.Policy {
	const fallback = "vcsmigrate <vcsmigrate@localhost>"
	if mode != workflow.Squash && flagPreserveAuthorship {
		return authoring.NewPassThrough(fallback)
	}
	return authoring.NewDefault(fallback)
}

func truncatedSuffix(truncated bool) string {
	if truncated {
		return " (truncated)"
	}
	return ""
}
