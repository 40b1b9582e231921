package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/keeptree/internal/observability"
	"github.com/3leaps/keeptree/pkg/blobsync"
	"github.com/3leaps/keeptree/pkg/connect"
	"github.com/3leaps/keeptree/pkg/output"
	"github.com/3leaps/keeptree/pkg/provider"
	"github.com/3leaps/keeptree/pkg/tree"
)

// exitFailure is used for errors that carry no exit code.
const exitFailure = 1

// localFS is the host filesystem. Paths handed to it are made absolute first.
var localFS billy.Filesystem = osfs.New("/")

// ExitError carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode returns the exit code for err: 0 for nil, the carried code for an
// *ExitError, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitFailure
}

// newClient builds a store client from the loaded configuration.
func newClient(ctx context.Context) (*blobsync.Client, error) {
	if err := cfg.RequireRemote(); err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Missing connection settings", err)
	}

	client, err := blobsync.New(ctx, blobsync.Config{
		ConnectionString: cfg.Connection,
		Container:        cfg.Container,
	},
		blobsync.WithLogger(observability.CLILogger),
		blobsync.WithLocalFS(localFS),
		blobsync.WithRateLimit(cfg.RateLimit),
	)
	if err != nil {
		if errors.Is(err, connect.ErrInvalidConnection) || errors.Is(err, connect.ErrUnsupportedScheme) {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid connection string", err)
		}
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	return client, nil
}

func newWriter(cmd *cobra.Command, containerName string) *output.JSONLWriter {
	return output.NewJSONLWriter(cmd.OutOrStdout(), uuid.New().String(), containerName)
}

// loadSpec reads a YAML or JSON tree spec from the host filesystem.
func loadSpec(path string) (tree.Spec, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid spec path", err)
	}
	spec, err := tree.ParseFile(localFS, abs)
	switch {
	case err == nil:
		return spec, nil
	case tree.IsStructural(err):
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid tree spec", err)
	case errors.Is(err, fs.ErrNotExist):
		return nil, exitError(foundry.ExitFileNotFound, "Spec file not found", err)
	}
	return nil, exitError(foundry.ExitFileReadError, "Failed to read spec", err)
}

// operationError maps an operation failure onto an exit code.
func operationError(message string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, message, err)
	case errors.Is(err, blobsync.ErrValidation), tree.IsStructural(err):
		return exitError(foundry.ExitInvalidArgument, message, err)
	case errors.Is(err, blobsync.ErrLocalRootNotDir):
		return exitError(foundry.ExitFileNotFound, message, err)
	}
	var pe *provider.ProviderError
	if errors.As(err, &pe) || errors.Is(err, context.DeadlineExceeded) {
		return exitError(foundry.ExitExternalServiceUnavailable, message, err)
	}
	return exitError(exitFailure, message, err)
}

// errorCode picks the ErrorRecord code for err.
func errorCode(err error) string {
	switch {
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return output.ErrCodeAccessDenied
	case provider.IsNotFound(err), provider.IsContainerNotFound(err), errors.Is(err, fs.ErrNotExist):
		return output.ErrCodeNotFound
	case provider.IsAlreadyExists(err):
		return output.ErrCodeAlreadyExists
	case provider.IsThrottled(err):
		return output.ErrCodeThrottled
	case tree.IsStructural(err):
		return output.ErrCodeInvalidSpec
	case errors.Is(err, context.DeadlineExceeded):
		return output.ErrCodeTimeout
	}
	return output.ErrCodeInternal
}

// reportFailure emits an error record. Best effort: the command already
// fails with err.
func reportFailure(ctx context.Context, w output.Writer, err error, prefix string) {
	rec := &output.ErrorRecord{Code: errorCode(err), Message: err.Error(), Prefix: prefix}
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		rec.Name = pe.Key
	}
	// The command context may be done; still try to record why.
	_ = w.WriteError(context.WithoutCancel(ctx), rec)
}

func writeSummary(ctx context.Context, w output.Writer, sum *output.SummaryRecord, start time.Time) {
	sum.Duration = time.Since(start)
	sum.DurationHuman = sum.Duration.Round(time.Millisecond).String()
	_ = w.WriteSummary(context.WithoutCancel(ctx), sum)
}
