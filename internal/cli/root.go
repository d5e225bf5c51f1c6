// Package cli wires the three migration strategies into a cobra
// command tree: a single persistent rootCmd plus cobra.Command
// subcommands registered from init().
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	flagOrigin               string
	flagDestination          string
	flagRef                  string
	flagOriginLabel          string
	flagConfigFile           string
	flagForce                bool
	flagChangeRequestParent  string
	flagIterativeLimit       int
	flagSquashWithoutHistory bool
	flagPreserveAuthorship   bool
)

var rootCmd = &cobra.Command{
	Use:   "vcsmigrate",
	Short: "Migrate source changes between version-control repositories",
	Long: `vcsmigrate drives one of three migration strategies — a single
squashed commit, a per-change iterative import, or a change-request
(review) import — reading history from an origin repository and
writing commits into a destination repository.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOrigin, "origin", "", "origin repository (local path or clone URL)")
	rootCmd.PersistentFlags().StringVar(&flagDestination, "destination", "", "destination repository (local path, created if missing)")
	rootCmd.PersistentFlags().StringVar(&flagRef, "ref", "", "origin reference to migrate up to (default: origin's default branch)")
	rootCmd.PersistentFlags().StringVar(&flagOriginLabel, "origin-label", "GitOrigin-RevId", "trailer label the destination stamps to record the migrated origin revision")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "ambient defaults file (default: .vcsmigrate.yaml if present)")
	// --force and --change-request-parent keep these exact flag names:
	// error messages reference them verbatim.
	rootCmd.PersistentFlags().BoolVar(&flagForce, "force", false, "bypass no-changes / not-ancestor safety checks")
	rootCmd.PersistentFlags().StringVar(&flagChangeRequestParent, "change-request-parent", "", "pre-selected change-request baseline revision")
	rootCmd.PersistentFlags().IntVar(&flagIterativeLimit, "iterative-limit", 0, "cap on changes written per ITERATIVE run (0 = the config file's defaultIterativeLimit, unlimited if that is unset)")
	rootCmd.PersistentFlags().BoolVar(&flagSquashWithoutHistory, "squash-without-history", false, "SQUASH: discard the detected change list before templating")
	rootCmd.PersistentFlags().BoolVar(&flagPreserveAuthorship, "preserve-authorship", false, "ITERATIVE: attribute commits to their upstream author instead of vcsmigrate's own identity (CHANGE_REQUEST always uses the upstream author)")

	rootCmd.AddCommand(squashCmd, iterativeCmd, changeRequestCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("vcsmigrate " + Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
