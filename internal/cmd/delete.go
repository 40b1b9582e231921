package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/keeptree/pkg/output"
	"github.com/3leaps/keeptree/pkg/tree"
)

var deleteFileCmd = &cobra.Command{
	Use:   "delete-file <name>",
	Short: "Delete one object",
	Long: `Delete one object by its full name. A missing object is not an error.

Examples:
  keeptree delete-file reports/2024/q1.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteFile,
}

var deleteFolderCmd = &cobra.Command{
	Use:   "delete-folder [prefix]",
	Short: "Delete every object under a prefix",
	Long: `Delete every object whose name starts with prefix + "/", longest names
first. Emptying the whole container requires --all.

Examples:
  keeptree delete-folder reports/2024
  keeptree delete-folder --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeleteFolder,
}

var deleteFolderAll bool

func init() {
	rootCmd.AddCommand(deleteFileCmd)
	rootCmd.AddCommand(deleteFolderCmd)

	deleteFolderCmd.Flags().BoolVar(&deleteFolderAll, "all", false, "Allow an empty prefix (deletes the whole container content)")
}

func runDeleteFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	client, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	w := newWriter(cmd, client.Container())
	sum := &output.SummaryRecord{Operation: "delete-file"}

	name := tree.TrimPrefix(strings.TrimSpace(args[0]))
	if err := client.DeleteFile(ctx, name); err != nil {
		reportFailure(ctx, w, err, "")
		sum.Errors++
		writeSummary(ctx, w, sum, start)
		return operationError("Delete failed", err)
	}

	_ = w.WriteObject(ctx, &output.ObjectRecord{Name: name, Action: output.ActionDeleted})
	sum.Objects = 1
	writeSummary(ctx, w, sum, start)
	return nil
}

func runDeleteFolder(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	prefix := ""
	if len(args) == 1 {
		prefix = tree.TrimPrefix(args[0])
	}
	if prefix == "" && !deleteFolderAll {
		return exitError(foundry.ExitInvalidArgument, "Refusing to delete the whole container",
			fmt.Errorf("empty prefix requires --all"))
	}

	client, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	w := newWriter(cmd, client.Container())
	sum := &output.SummaryRecord{Operation: "delete-folder"}

	res, err := client.DeleteFolder(ctx, prefix)
	if res != nil {
		for _, name := range res.Deleted {
			_ = w.WriteObject(ctx, &output.ObjectRecord{Name: name, Action: output.ActionDeleted})
		}
		for _, name := range res.Skipped {
			_ = w.WriteSkip(ctx, &output.SkipRecord{Name: name, Reason: "not_empty"})
		}
		sum.Objects = int64(len(res.Deleted))
		sum.Skipped = int64(len(res.Skipped))
	}
	if err != nil {
		reportFailure(ctx, w, err, prefix)
		sum.Errors++
		writeSummary(ctx, w, sum, start)
		return operationError("Delete failed", err)
	}

	writeSummary(ctx, w, sum, start)
	return nil
}
