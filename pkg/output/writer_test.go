package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	assert.NotNil(t, w)
	assert.Equal(t, "job-123", w.jobID)
	assert.Equal(t, "assets", w.container)
}

// decode parses a single JSONL line and its payload.
func decode(t *testing.T, line []byte, payload any) Record {
	t.Helper()
	var record Record
	require.NoError(t, json.Unmarshal(line, &record))
	require.NoError(t, json.Unmarshal(record.Data, payload))
	return record
}

func TestJSONLWriter_WriteObject(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	obj := &ObjectRecord{
		Name:      "docs/2024/report.pdf",
		Action:    ActionUploaded,
		Size:      1048576,
		LocalPath: "/srv/docs/2024/report.pdf",
	}
	require.NoError(t, w.WriteObject(context.Background(), obj))

	var got ObjectRecord
	record := decode(t, buf.Bytes(), &got)

	assert.Equal(t, TypeObject, record.Type)
	assert.Equal(t, "job-123", record.JobID)
	assert.Equal(t, "assets", record.Container)
	assert.False(t, record.TS.IsZero())
	assert.Equal(t, *obj, got)
}

func TestJSONLWriter_WritePlaceholder(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	ph := &PlaceholderRecord{Prefix: "docs/2024", Name: "docs/2024/.keep", Action: ActionEnsured}
	require.NoError(t, w.WritePlaceholder(context.Background(), ph))

	var got PlaceholderRecord
	record := decode(t, buf.Bytes(), &got)
	assert.Equal(t, TypePlaceholder, record.Type)
	assert.Equal(t, *ph, got)
}

func TestJSONLWriter_WriteSkip(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	require.NoError(t, w.WriteSkip(context.Background(), &SkipRecord{Path: ".git/config", Reason: "hidden"}))

	var got SkipRecord
	record := decode(t, buf.Bytes(), &got)
	assert.Equal(t, TypeSkip, record.Type)
	assert.Equal(t, ".git/config", got.Path)
	assert.Equal(t, "hidden", got.Reason)
	assert.NotContains(t, string(record.Data), `"name"`)
}

func TestJSONLWriter_WriteLeaf(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "")

	require.NoError(t, w.WriteLeaf(context.Background(), &LeafRecord{Prefix: "a/b"}))

	var got LeafRecord
	record := decode(t, buf.Bytes(), &got)
	assert.Equal(t, TypeLeaf, record.Type)
	assert.Equal(t, "a/b", got.Prefix)
	assert.Empty(t, record.Container)
}

func TestJSONLWriter_WriteError(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	errRec := &ErrorRecord{
		Code:    ErrCodeAccessDenied,
		Message: "Access denied to container",
		Prefix:  "secret",
	}
	require.NoError(t, w.WriteError(context.Background(), errRec))

	var errData ErrorRecord
	record := decode(t, buf.Bytes(), &errData)

	assert.Equal(t, TypeError, record.Type)
	assert.Equal(t, ErrCodeAccessDenied, errData.Code)
	assert.Equal(t, "Access denied to container", errData.Message)
	assert.Equal(t, "secret", errData.Prefix)
}

func TestJSONLWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	sum := &SummaryRecord{
		Operation:     "upload",
		Objects:       5000,
		Placeholders:  12,
		Skipped:       3,
		BytesTotal:    10737418240,
		Duration:      30 * time.Second,
		DurationHuman: "30s",
		Errors:        2,
	}
	require.NoError(t, w.WriteSummary(context.Background(), sum))

	var sumData SummaryRecord
	record := decode(t, buf.Bytes(), &sumData)

	assert.Equal(t, TypeSummary, record.Type)
	assert.Equal(t, *sum, sumData)
}

func TestJSONLWriter_NewlineTerminated(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	err := w.WriteObject(context.Background(), &ObjectRecord{Name: "file1.txt", Action: ActionUploaded})
	require.NoError(t, err)

	err = w.WriteObject(context.Background(), &ObjectRecord{Name: "file2.txt", Action: ActionUploaded})
	require.NoError(t, err)

	// Output should be two lines
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)

	// Each line should be valid JSON
	for _, line := range lines {
		var record Record
		err := json.Unmarshal([]byte(line), &record)
		assert.NoError(t, err)
	}
}

func TestJSONLWriter_Close(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	err := w.Close()
	require.NoError(t, err)

	// Writing after close should fail
	err = w.WriteObject(context.Background(), &ObjectRecord{Name: "file.txt", Action: ActionDeleted})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	const numWriters = 10
	const writesPerWriter = 100

	var wg sync.WaitGroup
	wg.Add(numWriters)

	for i := 0; i < numWriters; i++ {
		go func(writerID int) {
			defer wg.Done()
			for j := 0; j < writesPerWriter; j++ {
				obj := &ObjectRecord{
					Name:   "file.txt",
					Action: ActionUploaded,
					Size:   int64(writerID*writesPerWriter + j),
				}
				_ = w.WriteObject(context.Background(), obj)
			}
		}(i)
	}

	wg.Wait()

	// Verify all lines are complete JSON objects (no interleaving)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, numWriters*writesPerWriter)

	for i, line := range lines {
		var record Record
		err := json.Unmarshal([]byte(line), &record)
		assert.NoError(t, err, "line %d should be valid JSON: %s", i, line)
	}
}

func TestJSONLWriter_ContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "assets")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := w.WriteObject(ctx, &ObjectRecord{Name: "file.txt", Action: ActionDeleted})
	assert.ErrorIs(t, err, context.Canceled)

	// Buffer should be empty (nothing written)
	assert.Empty(t, buf.String())
}

func TestJSONLWriter_WriteFailure(t *testing.T) {
	// Create a writer that always fails
	failWriter := &failingWriter{err: errors.New("disk full")}
	w := NewJSONLWriter(failWriter, "job-123", "assets")

	err := w.WriteObject(context.Background(), &ObjectRecord{Name: "file.txt", Action: ActionDeleted})
	require.Error(t, err)

	var writeErr *WriteError
	assert.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "write", writeErr.Op)
}

// failingWriter is an io.Writer that always returns an error.
type failingWriter struct {
	err error
}

func (f *failingWriter) Write(p []byte) (n int, err error) {
	return 0, f.err
}

func TestJSONLWriter_ShortWrite(t *testing.T) {
	// Create a writer that simulates short writes (returns n < len(p) with nil error)
	shortWriter := &shortWriteWriter{bytesPerWrite: 10}
	w := NewJSONLWriter(shortWriter, "job-123", "assets")

	obj := &ObjectRecord{
		Name:      "data/2024/file.parquet",
		Action:    ActionUploaded,
		Size:      1048576,
		LocalPath: "/srv/data/2024/file.parquet",
	}

	err := w.WriteObject(context.Background(), obj)
	require.NoError(t, err)

	// Verify complete output despite short writes
	lines := strings.Split(strings.TrimSpace(shortWriter.buf.String()), "\n")
	assert.Len(t, lines, 1)

	var record Record
	err = json.Unmarshal([]byte(lines[0]), &record)
	assert.NoError(t, err, "output should be valid JSON despite short writes")
	assert.Equal(t, TypeObject, record.Type)
}

func TestJSONLWriter_ZeroWrite(t *testing.T) {
	// Create a writer that returns 0 bytes written with nil error (pathological case)
	zeroWriter := &zeroWriteWriter{}
	w := NewJSONLWriter(zeroWriter, "job-123", "assets")

	err := w.WriteObject(context.Background(), &ObjectRecord{Name: "file.txt", Action: ActionDeleted})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

// shortWriteWriter simulates an io.Writer that performs short writes.
// It writes at most bytesPerWrite bytes per call, returning nil error.
type shortWriteWriter struct {
	buf           bytes.Buffer
	bytesPerWrite int
}

func (sw *shortWriteWriter) Write(p []byte) (n int, err error) {
	toWrite := len(p)
	if toWrite > sw.bytesPerWrite {
		toWrite = sw.bytesPerWrite
	}
	return sw.buf.Write(p[:toWrite])
}

// zeroWriteWriter always returns 0 bytes written with nil error.
type zeroWriteWriter struct{}

func (zw *zeroWriteWriter) Write(p []byte) (n int, err error) {
	return 0, nil
}

func TestWriteError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &WriteError{Op: "marshal", Err: underlying}

	assert.Equal(t, "output: marshal: underlying error", err.Error())
	assert.ErrorIs(t, err, underlying)
}

func TestRecord_JSONSerialization(t *testing.T) {
	// Test that records serialize correctly
	record := Record{
		Type:      TypeObject,
		TS:        time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		JobID:     "abc123",
		Container: "assets",
		Data:      json.RawMessage(`{"name":"test.txt","action":"uploaded"}`),
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)

	// Verify JSON structure
	var parsed map[string]any
	err = json.Unmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, TypeObject, parsed["type"])
	assert.Equal(t, "abc123", parsed["job_id"])
	assert.Equal(t, "assets", parsed["container"])
	assert.NotNil(t, parsed["ts"])
	assert.NotNil(t, parsed["data"])
}

func TestObjectRecord_OmitEmpty(t *testing.T) {
	// Size and LocalPath should be omitted when empty
	obj := ObjectRecord{Name: "file.txt", Action: ActionDeleted}

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "size")
	assert.NotContains(t, string(data), "local_path")
}

func TestErrorRecord_OmitEmpty(t *testing.T) {
	// Name, Prefix, Details should be omitted when empty
	errRec := ErrorRecord{
		Code:    ErrCodeInternal,
		Message: "Something went wrong",
	}

	data, err := json.Marshal(errRec)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "name")
	assert.NotContains(t, string(data), "prefix")
	assert.NotContains(t, string(data), "details")
}

// Benchmark for write performance
func BenchmarkJSONLWriter_WriteObject(b *testing.B) {
	w := NewJSONLWriter(io.Discard, "job-123", "assets")
	obj := &ObjectRecord{
		Name:      "data/2024/01/15/file.parquet",
		Action:    ActionUploaded,
		Size:      1048576,
		LocalPath: "/srv/data/2024/01/15/file.parquet",
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.WriteObject(ctx, obj)
	}
}
