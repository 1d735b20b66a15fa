package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Operation kinds recorded by the file exporter.
const (
	KindCommit   = "commit"
	KindDispatch = "dispatch"
	KindModule   = "module"
	KindOther    = "other"
)

// OperationRecord is one store operation as written by FileExporter, one
// JSON object per line.
type OperationRecord struct {
	TraceID     string    `json:"trace_id"`
	SpanID      string    `json:"span_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Kind        string    `json:"kind"`
	Operation   string    `json:"operation"`
	Handlers    int       `json:"handlers,omitempty"`
	Subscribers int       `json:"subscribers,omitempty"`
	ModulePath  string    `json:"module_path,omitempty"`
	Hot         bool      `json:"hot,omitempty"`
	Unknown     bool      `json:"unknown,omitempty"`
	Rejected    bool      `json:"rejected,omitempty"`
	Error       string    `json:"error,omitempty"`
	Start       time.Time `json:"start"`
	DurationMs  float64   `json:"duration_ms"`
}

// FileExporter appends OperationRecords to a file, giving a journal of
// commits, dispatches and module changes without running a collector.
type FileExporter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileExporter opens path for appending, creating it and its parent
// directories when missing.
func NewFileExporter(path string) (*FileExporter, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &FileExporter{file: f, enc: json.NewEncoder(f)}, nil
}

// ExportSpans writes one record per span. Spans exported after Shutdown are
// discarded.
func (e *FileExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	for _, span := range spans {
		if err := e.enc.Encode(RecordOf(span)); err != nil {
			return fmt.Errorf("write operation record: %w", err)
		}
	}
	return nil
}

// Shutdown closes the file. Later calls do nothing.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file, e.enc = nil, nil
	return err
}

// RecordOf maps a finished store span to its record. The kind and operation
// come from the span name prefix; counts and flags from the store's span
// attributes and events.
func RecordOf(span sdktrace.ReadOnlySpan) OperationRecord {
	rec := OperationRecord{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Start:      span.StartTime(),
		DurationMs: float64(span.EndTime().Sub(span.StartTime()).Microseconds()) / 1000,
	}
	if parent := span.Parent(); parent.IsValid() {
		rec.ParentID = parent.SpanID().String()
	}
	rec.Kind, rec.Operation = classify(span.Name())

	for _, kv := range span.Attributes() {
		switch string(kv.Key) {
		case AttrHandlerCount:
			rec.Handlers = int(kv.Value.AsInt64())
		case AttrSubscriberCount:
			rec.Subscribers = int(kv.Value.AsInt64())
		case AttrModulePath:
			rec.ModulePath = kv.Value.AsString()
		case AttrHot:
			rec.Hot = kv.Value.AsBool()
		}
	}
	for _, ev := range span.Events() {
		switch ev.Name {
		case EventUnknownOperation:
			rec.Unknown = true
		case EventRejected:
			rec.Rejected = true
		}
	}
	if status := span.Status(); status.Code == codes.Error {
		rec.Error = status.Description
	}
	return rec
}

func classify(name string) (kind, operation string) {
	for _, p := range []struct{ prefix, kind string }{
		{SpanPrefixCommit, KindCommit},
		{SpanPrefixDispatch, KindDispatch},
		{SpanPrefixModule, KindModule},
	} {
		if op, ok := strings.CutPrefix(name, p.prefix); ok {
			return p.kind, op
		}
	}
	return KindOther, name
}
