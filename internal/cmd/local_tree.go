package cmd

import (
	"path/filepath"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/keeptree/pkg/blobsync"
	"github.com/3leaps/keeptree/pkg/output"
	"github.com/3leaps/keeptree/pkg/tree"
)

var localTreeCmd = &cobra.Command{
	Use:   "local-tree <spec-file> <local-root>",
	Short: "Create the folders of a tree spec on the local disk",
	Long: `Create local-root and one directory per leaf of a tree spec beneath it.

Existing directories are left alone and no files are written. No connection
is needed.

Examples:
  keeptree local-tree layout.yaml ./workspace`,
	Args: cobra.ExactArgs(2),
	RunE: runLocalTree,
}

func init() {
	rootCmd.AddCommand(localTreeCmd)
}

func runLocalTree(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}
	root, err := filepath.Abs(args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid local root", err)
	}
	leaves, err := tree.CollectLeafPrefixes("", spec)
	if err != nil {
		return operationError("Invalid tree spec", err)
	}

	w := newWriter(cmd, "")
	sum := &output.SummaryRecord{Operation: "local-tree"}

	if err := blobsync.CreateLocalTree(ctx, localFS, root, spec); err != nil {
		reportFailure(ctx, w, err, root)
		return exitError(foundry.ExitFileWriteError, "Failed to create local tree", err)
	}

	for _, p := range leaves {
		_ = w.WriteLeaf(ctx, &output.LeafRecord{Prefix: filepath.Join(root, filepath.FromSlash(p))})
	}
	sum.Objects = int64(len(leaves))
	writeSummary(ctx, w, sum, start)
	return nil
}
