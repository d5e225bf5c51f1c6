package cli

import (
	"github.com/spf13/cobra"

	"github.com/kurobon/vcsmigrate/internal/workflow"
)

var squashCmd = &cobra.Command{
	Use:   "squash",
	Short: "Write a single destination commit for the resolved origin revision",
	Long: `SQUASH writes one destination commit whose tree equals the
transformed tree of the resolved origin revision. Re-running it with no
new origin changes and --force unset fails with an empty-change error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(workflow.Squash)
	},
}
