// Package output provides JSONL output for tree operations.
//
// Output is structured as typed record envelopes containing object
// actions, placeholder changes, skips, leaf prefixes, errors and a final
// summary. Each line is a self-contained JSON object that can be parsed
// independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: keeptree.<type>.v<version>
const (
	// TypeObject identifies uploaded or deleted object records.
	TypeObject = "keeptree.object.v1"

	// TypePlaceholder identifies placeholder created/removed records.
	TypePlaceholder = "keeptree.placeholder.v1"

	// TypeSkip identifies skipped file or object records.
	TypeSkip = "keeptree.skip.v1"

	// TypeLeaf identifies leaf prefix records.
	TypeLeaf = "keeptree.leaf.v1"

	// TypeError identifies error records.
	TypeError = "keeptree.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "keeptree.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "keeptree.object.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this run.
	JobID string `json:"job_id"`

	// Container is the remote container the run targets.
	Container string `json:"container"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// Object actions.
const (
	ActionUploaded = "uploaded"
	ActionDeleted  = "deleted"
	ActionEnsured  = "ensured"
	ActionRemoved  = "removed"
)

// ObjectRecord is the data payload for a single object change.
type ObjectRecord struct {
	// Name is the full object name in the container.
	Name string `json:"name"`

	// Action is ActionUploaded or ActionDeleted.
	Action string `json:"action"`

	// Size is the object size in bytes, when known.
	Size int64 `json:"size,omitempty"`

	// LocalPath is the source file for uploads.
	LocalPath string `json:"local_path,omitempty"`
}

// PlaceholderRecord is the data payload for placeholder changes.
type PlaceholderRecord struct {
	// Prefix is the folder the placeholder marks.
	Prefix string `json:"prefix"`

	// Name is the placeholder object name.
	Name string `json:"name"`

	// Action is ActionEnsured or ActionRemoved.
	Action string `json:"action"`
}

// SkipRecord is the data payload for files or objects left alone.
type SkipRecord struct {
	// Path is the local path relative to the upload root, if any.
	Path string `json:"path,omitempty"`

	// Name is the object name, if any.
	Name string `json:"name,omitempty"`

	// Reason is a short machine-readable reason (e.g., "hidden").
	Reason string `json:"reason"`
}

// LeafRecord is the data payload for one leaf prefix of a tree spec.
type LeafRecord struct {
	Prefix string `json:"prefix"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Name is the object name related to this error, if applicable.
	Name string `json:"name,omitempty"`

	// Prefix is the prefix being processed when the error occurred.
	Prefix string `json:"prefix,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeAccessDenied indicates permission failure.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeNotFound indicates the object, container or local root was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeAlreadyExists indicates a conditional write hit an existing object.
	ErrCodeAlreadyExists = "ALREADY_EXISTS"

	// ErrCodeInvalidSpec indicates a structurally invalid tree spec.
	ErrCodeInvalidSpec = "INVALID_SPEC"

	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a command with aggregate
// statistics.
type SummaryRecord struct {
	// Operation is the command that ran (e.g., "upload").
	Operation string `json:"operation"`

	// Objects is the number of objects uploaded or deleted.
	Objects int64 `json:"objects"`

	// Placeholders is the number of placeholders created or removed.
	Placeholders int64 `json:"placeholders"`

	// Skipped is the number of skipped files or objects.
	Skipped int64 `json:"skipped"`

	// BytesTotal is the cumulative size of uploaded files in bytes.
	BytesTotal int64 `json:"bytes_total"`

	// Duration is the total command duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Errors is the count of errors encountered.
	Errors int64 `json:"errors"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
