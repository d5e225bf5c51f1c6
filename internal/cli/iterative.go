package cli

import (
	"github.com/spf13/cobra"

	"github.com/kurobon/vcsmigrate/internal/workflow"
)

var iterativeCmd = &cobra.Command{
	Use:   "iterative",
	Short: "Write one destination commit per origin change since the last import",
	Long: `ITERATIVE writes one destination commit per origin change found
since the last recorded import, stopping early if --iterative-limit is
reached, and failing with change-rejected if the operator declines to
continue after a PROMPT_TO_CONTINUE result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(workflow.Iterative)
	},
}
