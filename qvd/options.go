package qvd

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/qvd/cache"
	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/hooks"
)

const tracerName = "github.com/INLOpen/qvd"

// AllRows asks LoadReader for every record.
const AllRows = -1

// LoadOptions configures Load, LoadHead, LoadReader and ReadHeader. The zero
// value is usable.
type LoadOptions struct {
	// ChunkSize is the read size of the header delimiter scan.
	ChunkSize int
	// AllowedDir, when set, confines paths to this directory.
	AllowedDir string

	Logger *slog.Logger
	Tracer trace.Tracer
	Hooks  hooks.HookManager
	// HeaderCache, when set, skips header parsing for files seen before.
	HeaderCache *cache.HeaderCache
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = core.DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "qvd")
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	return o
}

// SaveOptions configures Save and Encode. The zero value is usable.
type SaveOptions struct {
	// TableName is used when the table carries no header. Save defaults it
	// to the destination file name without extension.
	TableName string
	// AllowedDir, when set, confines the destination to this directory.
	AllowedDir string
	// ProgressInterval is how many rows pass between index-table progress
	// events.
	ProgressInterval int
	// LockTimeout bounds the wait for the destination's writer lock.
	LockTimeout time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
	Hooks  hooks.HookManager
	// Now stamps new headers. Defaults to time.Now.
	Now func() time.Time
}

const defaultLockTimeout = 5 * time.Second

func (o SaveOptions) withDefaults() SaveOptions {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 10000
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = defaultLockTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "qvd")
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func trigger(ctx context.Context, m hooks.HookManager, ev hooks.HookEvent) error {
	if m == nil {
		return nil
	}
	return m.Trigger(ctx, ev)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
