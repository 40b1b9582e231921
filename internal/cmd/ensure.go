package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/keeptree/internal/observability"
	"github.com/3leaps/keeptree/pkg/blobsync"
	"github.com/3leaps/keeptree/pkg/output"
	"github.com/3leaps/keeptree/pkg/tree"
)

var ensurePathCmd = &cobra.Command{
	Use:   "ensure-path <prefix>",
	Short: "Ensure the container and a placeholder for one prefix",
	Long: `Create the container if needed and mark prefix with a ".keep" placeholder.

An existing placeholder is left untouched. An empty prefix only ensures the
container.

Examples:
  keeptree ensure-path reports/2024 --container docs
  keeptree ensure-path "" --container docs
  keeptree ensure-path reports --no-placeholders`,
	Args: cobra.ExactArgs(1),
	RunE: runEnsurePath,
}

var ensureTreeCmd = &cobra.Command{
	Use:   "ensure-tree <spec-file>",
	Short: "Ensure a placeholder at every leaf of a tree spec",
	Long: `Create the container if needed and mark every leaf folder of a YAML or JSON
tree spec with a ".keep" placeholder.

A tree spec is a nested mapping; "{}" marks a leaf:

  projects:
    alpha: {}
    beta:
      raw: {}
  archive: {}

Examples:
  keeptree ensure-tree layout.yaml --container docs
  keeptree ensure-tree layout.yaml --base teams/red`,
	Args: cobra.ExactArgs(1),
	RunE: runEnsureTree,
}

var (
	ensureNoPlaceholders     bool
	ensureTreeBase           string
	ensureTreeNoPlaceholders bool
)

func init() {
	rootCmd.AddCommand(ensurePathCmd)
	rootCmd.AddCommand(ensureTreeCmd)

	ensurePathCmd.Flags().BoolVar(&ensureNoPlaceholders, "no-placeholders", false, "Only ensure the container")

	ensureTreeCmd.Flags().StringVar(&ensureTreeBase, "base", "", "Prefix all leaves are rooted at")
	ensureTreeCmd.Flags().BoolVar(&ensureTreeNoPlaceholders, "no-placeholders", false, "Only ensure the container")
}

func runEnsurePath(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()
	prefix := tree.TrimPrefix(args[0])

	client, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	w := newWriter(cmd, client.Container())
	sum := &output.SummaryRecord{Operation: "ensure-path"}

	placeholders := !ensureNoPlaceholders
	if err := client.EnsurePath(ctx, prefix, placeholders); err != nil {
		reportFailure(ctx, w, err, prefix)
		sum.Errors++
		writeSummary(ctx, w, sum, start)
		return operationError("Failed to ensure path", err)
	}

	if placeholders && prefix != "" {
		_ = w.WritePlaceholder(ctx, &output.PlaceholderRecord{
			Prefix: prefix,
			Name:   tree.JoinPrefix(prefix, blobsync.PlaceholderName),
			Action: output.ActionEnsured,
		})
		sum.Placeholders++
	}
	writeSummary(ctx, w, sum, start)
	return nil
}

func runEnsureTree(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}
	leaves, err := tree.CollectLeafPrefixes(ensureTreeBase, spec)
	if err != nil {
		return operationError("Invalid tree spec", err)
	}

	client, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	observability.CLILogger.Info("Ensuring tree",
		zap.String("spec", args[0]),
		zap.String("base", ensureTreeBase),
		zap.Int("leaves", len(leaves)),
	)

	w := newWriter(cmd, client.Container())
	sum := &output.SummaryRecord{Operation: "ensure-tree"}

	placeholders := !ensureTreeNoPlaceholders
	if err := client.EnsureTree(ctx, ensureTreeBase, spec, placeholders); err != nil {
		reportFailure(ctx, w, err, ensureTreeBase)
		sum.Errors++
		writeSummary(ctx, w, sum, start)
		return operationError("Failed to ensure tree", err)
	}

	if placeholders {
		for _, p := range leaves {
			if p == "" {
				continue
			}
			_ = w.WritePlaceholder(ctx, &output.PlaceholderRecord{
				Prefix: p,
				Name:   tree.JoinPrefix(p, blobsync.PlaceholderName),
				Action: output.ActionEnsured,
			})
			sum.Placeholders++
		}
	}
	writeSummary(ctx, w, sum, start)
	return nil
}
