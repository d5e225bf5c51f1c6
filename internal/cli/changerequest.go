package cli

import (
	"github.com/spf13/cobra"

	"github.com/kurobon/vcsmigrate/internal/workflow"
)

var changeRequestCmd = &cobra.Command{
	Use:   "change-request",
	Short: "Import a single origin tree as a review, diffed against a baseline",
	Long: `CHANGE_REQUEST imports the resolved origin revision as a single
review/pull-request, diffed against a baseline commit already present
in the destination. The baseline is auto-discovered by walking origin
history for the destination's origin-label unless
--change-request-parent is given explicitly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(workflow.ChangeRequest)
	},
}
