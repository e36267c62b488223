package qvd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/header"
	"github.com/INLOpen/qvd/hooks"
	"github.com/INLOpen/qvd/indextable"
	"github.com/INLOpen/qvd/symtable"
	"github.com/INLOpen/qvd/sys"
)

// encodedTable is a table ready to be written: the header text with its
// delimiter, the symbol table and the index table, in file order.
type encodedTable struct {
	header *header.TableHeader
	parts  [][]byte
}

// Encode returns the complete QVD image of t.
func Encode(ctx context.Context, t *Table, opts SaveOptions) ([]byte, error) {
	opts = opts.withDefaults()
	enc, err := encodeTable(ctx, t, opts)
	if err != nil {
		return nil, err
	}
	return bytes.Join(enc.parts, nil), nil
}

// Save writes t to path. The file is written under a temporary name in the
// destination directory and renamed into place once synced, so a failed save
// never leaves a partial file at path. Concurrent writers of the same path
// are serialized through an advisory lock.
func Save(ctx context.Context, path string, t *Table, opts SaveOptions) (err error) {
	opts = opts.withDefaults()
	start := time.Now()

	ctx, span := opts.Tracer.Start(ctx, "qvd.Save", trace.WithAttributes(
		attribute.String("qvd.path", path),
		attribute.Int("qvd.records", t.NumRows()),
		attribute.Int("qvd.fields", len(t.columns)),
	))
	defer func() { finishSpan(span, err) }()

	resolved, err := sys.SafePath(path, opts.AllowedDir)
	if err != nil {
		return err
	}
	if err := trigger(ctx, opts.Hooks, hooks.NewPreSaveEvent(hooks.PreSavePayload{
		Path: resolved, Columns: t.Columns(), Rows: t.NumRows(),
	})); err != nil {
		return err
	}

	var written int64
	defer func() {
		_ = trigger(ctx, opts.Hooks, hooks.NewPostSaveEvent(hooks.PostSavePayload{
			Path: resolved, Records: t.NumRows(), BytesWritten: written, Duration: time.Since(start), Error: err,
		}))
	}()

	release, err := sys.LockFile(resolved, opts.LockTimeout)
	if err != nil {
		return core.NewIOError("cannot lock destination", map[string]any{
			core.CtxPath:  resolved,
			core.CtxStage: core.StageWrite,
		}, err)
	}
	defer func() {
		if rerr := release(); rerr != nil {
			opts.Logger.Warn("Failed to release writer lock", "path", resolved, "error", rerr)
		}
	}()

	if opts.TableName == "" && t.Header == nil {
		base := filepath.Base(resolved)
		opts.TableName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	enc, err := encodeTable(ctx, t, opts)
	if err != nil {
		return err
	}

	written, err = writeAtomic(ctx, resolved, enc.parts)
	if err != nil {
		return err
	}
	_ = trigger(ctx, opts.Hooks, hooks.NewProgressEvent(core.StageWrite, 1, 1))

	opts.Logger.Debug("Table written", "path", resolved, "records", enc.header.NoOfRecords, "fields", len(enc.header.Fields), "bytes", written)
	return nil
}

// encodeTable runs the write pipeline: dictionaries, then records, then the
// header describing both.
func encodeTable(ctx context.Context, t *Table, opts SaveOptions) (*encodedTable, error) {
	progress := func(stage string) func(done, total int) {
		return func(done, total int) {
			_ = trigger(ctx, opts.Hooks, hooks.NewProgressEvent(stage, done, total))
		}
	}

	if len(t.columns) == 0 {
		progress(core.StageSymbolTable)(0, 0)
	}
	st, err := symtable.Encode(ctx, t.columns, t, progress(core.StageSymbolTable))
	if err != nil {
		return nil, err
	}

	it, err := indextable.Encode(ctx, st.Dictionaries, t.NumRows(), indextable.EncodeOptions{
		Progress:         progress(core.StageIndexTable),
		ProgressInterval: opts.ProgressInterval,
	})
	if err != nil {
		return nil, err
	}

	layout := header.Layout{
		Fields:            make([]header.FieldLayout, len(st.Dictionaries)),
		RecordByteSize:    int64(it.RecordByteSize),
		NoOfRecords:       int64(it.NoOfRecords),
		SymbolTableLength: int64(len(st.Bytes)),
		IndexTableLength:  int64(len(it.Bytes)),
	}
	for i, d := range st.Dictionaries {
		g := it.Fields[i]
		layout.Fields[i] = header.FieldLayout{
			Name:        d.Field,
			Offset:      d.Offset,
			Length:      d.Length,
			BitOffset:   int64(g.BitOffset),
			BitWidth:    int64(g.BitWidth),
			Bias:        int64(g.Bias),
			NoOfSymbols: int64(len(d.Symbols)),
		}
	}

	h := header.Build(t.Header, layout, opts.TableName, opts.Now())
	text, err := header.Marshal(h)
	if err != nil {
		return nil, err
	}
	// Marshal ends in CR LF; the NUL completes the delimiter.
	text = append(text, core.HeaderDelimiter[core.HeaderDelimiterLen-1])
	progress(core.StageHeader)(1, 1)

	return &encodedTable{header: h, parts: [][]byte{text, st.Bytes, it.Bytes}}, nil
}

// writeAtomic writes parts to a temporary file next to dest, syncs it and
// renames it over dest. On any failure the temporary file is removed.
func writeAtomic(ctx context.Context, dest string, parts [][]byte) (written int64, err error) {
	ioErr := func(msg string, cause error) error {
		return core.NewIOError(msg, map[string]any{
			core.CtxPath:  dest,
			core.CtxStage: core.StageWrite,
		}, cause)
	}

	tmp, err := sys.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, ioErr("cannot create temporary file", err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			tmp.Close()
		}
		sys.Remove(tmpName)
	}()

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, werr := tmp.Write(p)
		written += int64(n)
		if werr != nil {
			return written, ioErr("write failed", werr)
		}
	}
	if err := tmp.Sync(); err != nil {
		return written, ioErr("sync failed", err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return written, ioErr("close failed", err)
	}
	if err := sys.Rename(tmpName, dest); err != nil {
		return written, ioErr("cannot move file into place", err)
	}
	return written, nil
}
