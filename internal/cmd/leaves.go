package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/keeptree/pkg/output"
	"github.com/3leaps/keeptree/pkg/tree"
)

var leavesCmd = &cobra.Command{
	Use:   "leaves <spec-file>",
	Short: "Print the leaf prefixes of a tree spec",
	Long: `Print one record per leaf folder of a tree spec, in depth-first
declaration order. No connection is needed.

Examples:
  keeptree leaves layout.yaml
  keeptree leaves layout.yaml --base teams/red`,
	Args: cobra.ExactArgs(1),
	RunE: runLeaves,
}

var leavesBase string

func init() {
	rootCmd.AddCommand(leavesCmd)
	leavesCmd.Flags().StringVar(&leavesBase, "base", "", "Prefix all leaves are rooted at")
}

func runLeaves(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}
	leaves, err := tree.CollectLeafPrefixes(leavesBase, spec)
	if err != nil {
		return operationError("Invalid tree spec", err)
	}

	w := newWriter(cmd, "")
	for _, p := range leaves {
		if err := w.WriteLeaf(ctx, &output.LeafRecord{Prefix: p}); err != nil {
			return operationError("Failed to write output", err)
		}
	}
	return nil
}
