package cmd

import (
	"context"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/keeptree/internal/observability"
	"github.com/3leaps/keeptree/pkg/blobsync"
	"github.com/3leaps/keeptree/pkg/output"
	"github.com/3leaps/keeptree/pkg/tree"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-root> [prefix]",
	Short: "Upload a local directory tree",
	Long: `Upload every file under local-root to object names rooted at prefix.

By default existing objects are overwritten, hidden files and folders (any
path segment starting with ".") are skipped, and the ".keep" placeholder of
every folder that received a file is deleted afterwards.

Examples:
  keeptree upload ./site public
  keeptree upload ./site public --no-overwrite --skip-existing
  keeptree upload ./data --exclude "**/*.tmp" --exclude "cache/**"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

var (
	uploadNoOverwrite      bool
	uploadSkipExisting     bool
	uploadIncludeHidden    bool
	uploadKeepPlaceholders bool
	uploadExcludes         []string
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolVar(&uploadNoOverwrite, "no-overwrite", false, "Fail when an object already exists")
	uploadCmd.Flags().BoolVar(&uploadSkipExisting, "skip-existing", false, "With --no-overwrite, skip existing objects instead of failing")
	uploadCmd.Flags().BoolVar(&uploadIncludeHidden, "include-hidden", false, "Upload hidden files and folders")
	uploadCmd.Flags().BoolVar(&uploadKeepPlaceholders, "keep-placeholders", false, "Do not delete placeholders of uploaded folders")
	uploadCmd.Flags().StringArrayVar(&uploadExcludes, "exclude", nil, "Exclude glob pattern relative to local-root (repeatable)")
}

// uploadOptions merges config defaults with command flags.
func uploadOptions(cmd *cobra.Command) blobsync.UploadOptions {
	opts := blobsync.UploadOptions{
		Overwrite:    cfg.Upload.Overwrite,
		IgnoreHidden: cfg.Upload.IgnoreHidden,
		RemoveKeep:   cfg.Upload.RemoveKeep,
		SkipExisting: cfg.Upload.SkipExisting,
		Exclude:      append([]string(nil), cfg.Upload.Exclude...),
	}
	flags := cmd.Flags()
	if flags.Changed("no-overwrite") {
		opts.Overwrite = !uploadNoOverwrite
	}
	if flags.Changed("skip-existing") {
		opts.SkipExisting = uploadSkipExisting
	}
	if flags.Changed("include-hidden") {
		opts.IgnoreHidden = !uploadIncludeHidden
	}
	if flags.Changed("keep-placeholders") {
		opts.RemoveKeep = !uploadKeepPlaceholders
	}
	opts.Exclude = append(opts.Exclude, uploadExcludes...)
	return opts
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	root := args[0]
	prefix := ""
	if len(args) > 1 {
		prefix = tree.TrimPrefix(args[1])
	}
	opts := uploadOptions(cmd)

	client, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	observability.CLILogger.Info("Starting upload",
		zap.String("root", root),
		zap.String("prefix", prefix),
		zap.Bool("overwrite", opts.Overwrite),
		zap.Bool("ignore_hidden", opts.IgnoreHidden),
		zap.Bool("remove_keep", opts.RemoveKeep),
		zap.Strings("exclude", opts.Exclude),
	)

	w := newWriter(cmd, client.Container())
	res, err := client.UploadTree(ctx, root, prefix, opts)
	sum := writeUploadResult(ctx, w, root, res)
	if err != nil {
		reportFailure(ctx, w, err, prefix)
		sum.Errors++
		writeSummary(ctx, w, sum, start)
		return operationError("Upload failed", err)
	}

	writeSummary(ctx, w, sum, start)
	observability.CLILogger.Info("Upload completed",
		zap.Int64("objects", sum.Objects),
		zap.Int64("skipped", sum.Skipped),
		zap.Int64("bytes", sum.BytesTotal),
	)
	return nil
}

// writeUploadResult emits records for a possibly partial upload result.
func writeUploadResult(ctx context.Context, w output.Writer, root string, res *blobsync.UploadResult) *output.SummaryRecord {
	ctx = context.WithoutCancel(ctx)
	sum := &output.SummaryRecord{Operation: "upload"}
	if res == nil {
		return sum
	}

	absRoot, _ := filepath.Abs(root)
	for _, name := range res.Uploaded {
		_ = w.WriteObject(ctx, &output.ObjectRecord{Name: name, Action: output.ActionUploaded})
	}
	for _, s := range res.Skipped {
		_ = w.WriteSkip(ctx, &output.SkipRecord{
			Path:   filepath.Join(absRoot, filepath.FromSlash(s.Path)),
			Name:   s.Name,
			Reason: s.Reason,
		})
	}
	for _, name := range res.Placeholders {
		_ = w.WritePlaceholder(ctx, &output.PlaceholderRecord{
			Prefix: path.Dir(name),
			Name:   name,
			Action: output.ActionRemoved,
		})
	}

	sum.Objects = int64(len(res.Uploaded))
	sum.Skipped = int64(len(res.Skipped))
	sum.Placeholders = int64(len(res.Placeholders))
	sum.BytesTotal = res.Bytes
	return sum
}
