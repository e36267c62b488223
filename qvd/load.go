package qvd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/qvd/bounds"
	"github.com/INLOpen/qvd/cache"
	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/header"
	"github.com/INLOpen/qvd/hooks"
	"github.com/INLOpen/qvd/indextable"
	"github.com/INLOpen/qvd/symtable"
	"github.com/INLOpen/qvd/sys"
)

// memoryName identifies in-memory sources in error context.
const memoryName = "<memory>"

// source is a random-access view of one QVD file.
type source struct {
	r    io.ReaderAt
	size int64
	name string
	// cacheKey is empty when the source has no stable identity.
	cacheKey string
}

// Load reads every record of the file at path.
func Load(ctx context.Context, path string, opts LoadOptions) (*Table, error) {
	return loadPath(ctx, path, AllRows, opts)
}

// LoadHead reads the first n records of the file at path. Only the header,
// the symbol table and the first n records of the index table are read. The
// symbol table is always decoded in full, so n == 0 yields the column list
// and header with no rows.
func LoadHead(ctx context.Context, path string, n int, opts LoadOptions) (*Table, error) {
	if n < 0 {
		return nil, core.NewValidationError("row count must not be negative", map[string]any{
			core.CtxValue: n,
			core.CtxMin:   0,
		})
	}
	return loadPath(ctx, path, n, opts)
}

// LoadReader decodes a QVD image of size bytes from r. maxRows limits the
// records decoded; AllRows decodes all of them.
func LoadReader(ctx context.Context, r io.ReaderAt, size int64, maxRows int, opts LoadOptions) (*Table, error) {
	opts = opts.withDefaults()
	ctx, span := opts.Tracer.Start(ctx, "qvd.LoadReader", trace.WithAttributes(
		attribute.Int64("qvd.size", size),
		attribute.Int("qvd.max_rows", maxRows),
	))
	t, _, err := decodeSource(ctx, &source{r: r, size: size, name: memoryName}, maxRows, opts)
	finishSpan(span, err)
	return t, err
}

// LoadBytes decodes a complete QVD image held in memory.
func LoadBytes(ctx context.Context, data []byte, opts LoadOptions) (*Table, error) {
	return LoadReader(ctx, bytes.NewReader(data), int64(len(data)), AllRows, opts)
}

// ReadHeader parses only the header of the file at path.
func ReadHeader(ctx context.Context, path string, opts LoadOptions) (*header.TableHeader, error) {
	opts = opts.withDefaults()
	resolved, err := sys.SafePath(path, opts.AllowedDir)
	if err != nil {
		return nil, err
	}
	src, closeFn, err := openSource(resolved)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	h, _, err := readHeader(ctx, src, opts)
	return h, err
}

func loadPath(ctx context.Context, path string, maxRows int, opts LoadOptions) (t *Table, err error) {
	opts = opts.withDefaults()
	start := time.Now()

	ctx, span := opts.Tracer.Start(ctx, "qvd.Load", trace.WithAttributes(
		attribute.String("qvd.path", path),
		attribute.Int("qvd.max_rows", maxRows),
	))
	defer func() { finishSpan(span, err) }()

	resolved, err := sys.SafePath(path, opts.AllowedDir)
	if err != nil {
		return nil, err
	}
	if err := trigger(ctx, opts.Hooks, hooks.NewPreLoadEvent(hooks.PreLoadPayload{Path: resolved, MaxRows: maxRows})); err != nil {
		return nil, err
	}

	var bytesRead int64
	defer func() {
		p := hooks.PostLoadPayload{Path: resolved, BytesRead: bytesRead, Duration: time.Since(start), Error: err}
		if t != nil {
			p.Fields, p.Records = len(t.columns), len(t.rows)
		}
		_ = trigger(ctx, opts.Hooks, hooks.NewPostLoadEvent(p))
	}()

	src, closeFn, err := openSource(resolved)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	t, bytesRead, err = decodeSource(ctx, src, maxRows, opts)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("qvd.records", len(t.rows)), attribute.Int("qvd.fields", len(t.columns)))
	opts.Logger.Debug("Table loaded", "path", resolved, "records", len(t.rows), "fields", len(t.columns), "bytes", bytesRead)
	return t, nil
}

func openSource(path string) (*source, func(), error) {
	f, err := sys.Open(path)
	if err != nil {
		return nil, nil, core.NewIOError("cannot open file", map[string]any{
			core.CtxPath:  path,
			core.CtxStage: core.StageRead,
		}, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, core.NewIOError("cannot stat file", map[string]any{
			core.CtxPath:  path,
			core.CtxStage: core.StageRead,
		}, err)
	}
	src := &source{r: f, size: info.Size(), name: path, cacheKey: cache.HeaderKey(path, info)}
	return src, func() { f.Close() }, nil
}

// decodeSource runs the read pipeline: header, bounds, symbol table, index
// table. It returns the number of file bytes consumed by the payload read.
func decodeSource(ctx context.Context, src *source, maxRows int, opts LoadOptions) (*Table, int64, error) {
	h, headerLen, err := readHeader(ctx, src, opts)
	if err != nil {
		return nil, 0, err
	}

	payloadStart := headerLen + core.HeaderDelimiterLen
	payloadSize := src.size - payloadStart
	if err := bounds.Validate(h, payloadSize, src.name); err != nil {
		return nil, 0, err
	}

	records := h.NoOfRecords
	if maxRows >= 0 && int64(maxRows) < records {
		records = int64(maxRows)
	}
	need := h.SymbolTableLength + records*h.RecordByteSize
	if need > payloadSize {
		return nil, 0, core.NewCorruptedError("file is shorter than its declared records", map[string]any{
			core.CtxFile:       src.name,
			core.CtxStage:      core.StageIndexTable,
			core.CtxLength:     need,
			core.CtxBufferSize: payloadSize,
			core.CtxRecord:     records,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	buf := make([]byte, need)
	if n, err := src.r.ReadAt(buf, payloadStart); n < len(buf) || (err != nil && !errors.Is(err, io.EOF)) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, core.NewIOError("cannot read payload", map[string]any{
			core.CtxFile:   src.name,
			core.CtxStage:  core.StageRead,
			core.CtxOffset: payloadStart,
			core.CtxLength: need,
		}, err)
	}
	opts.Logger.Debug("Payload read", "path", src.name, "bytes", need, "records", records)

	t, err := materialize(ctx, h, buf, records, src.name)
	if err != nil {
		return nil, 0, err
	}
	return t, payloadStart + need, nil
}

// readHeader returns the parsed header and the length of the header text
// preceding the delimiter.
func readHeader(ctx context.Context, src *source, opts LoadOptions) (*header.TableHeader, int64, error) {
	useCache := opts.HeaderCache != nil && src.cacheKey != ""
	if useCache {
		if e, ok := opts.HeaderCache.Get(src.cacheKey); ok {
			_ = trigger(ctx, opts.Hooks, hooks.NewHeaderCacheHitEvent(src.cacheKey))
			return e.Header, e.HeaderLen, nil
		}
		_ = trigger(ctx, opts.Hooks, hooks.NewHeaderCacheMissEvent(src.cacheKey))
	}

	text, err := scanHeader(ctx, io.NewSectionReader(src.r, 0, src.size), opts.ChunkSize, src.name)
	if err != nil {
		return nil, 0, err
	}
	h, err := header.Parse(text, src.name)
	if err != nil {
		return nil, 0, err
	}
	opts.Logger.Debug("Header parsed", "path", src.name, "fields", len(h.Fields), "records", h.NoOfRecords, "bytes", len(text))

	if useCache {
		opts.HeaderCache.Put(src.cacheKey, cache.HeaderEntry{Header: h, HeaderLen: int64(len(text))})
	}
	return h, int64(len(text)), nil
}

// scanHeader reads r in chunks until the header delimiter appears and returns
// the bytes before it.
func scanHeader(ctx context.Context, r io.Reader, chunkSize int, file string) ([]byte, error) {
	acc := core.BufferPool.Get()
	defer core.BufferPool.Put(acc)

	chunk := make([]byte, chunkSize)
	from := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(r, chunk)
		acc.Write(chunk[:n])

		if i := findDelimiter(acc.Bytes()[from:]); i != core.DelimiterNotFound {
			return bytes.Clone(acc.Bytes()[:from+i]), nil
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, core.NewCorruptedError("header delimiter not found", map[string]any{
				core.CtxFile:       file,
				core.CtxStage:      core.StageHeader,
				core.CtxBufferSize: acc.Len(),
			})
		case err != nil:
			return nil, core.NewIOError("cannot read header", map[string]any{
				core.CtxFile:   file,
				core.CtxStage:  core.StageHeader,
				core.CtxOffset: acc.Len(),
			}, err)
		}
		if acc.Len() > core.MaxHeaderSize {
			return nil, core.NewCorruptedError("header exceeds maximum size", map[string]any{
				core.CtxFile:       file,
				core.CtxStage:      core.StageHeader,
				core.CtxBufferSize: acc.Len(),
				core.CtxMax:        core.MaxHeaderSize,
			})
		}
		// A delimiter may straddle the chunk boundary.
		from = max(0, acc.Len()-(core.HeaderDelimiterLen-1))
	}
}

// findDelimiter returns the offset of the first header delimiter in b, or
// core.DelimiterNotFound.
func findDelimiter(b []byte) int {
	if i := bytes.Index(b, core.HeaderDelimiter); i >= 0 {
		return i
	}
	return core.DelimiterNotFound
}

// materialize joins decoded dictionaries with the index table. buf holds the
// symbol table followed by at least records index-table records.
func materialize(ctx context.Context, h *header.TableHeader, buf []byte, records int64, file string) (*Table, error) {
	dicts, err := symtable.Decode(buf[:h.SymbolTableLength], h.Fields, file)
	if err != nil {
		return nil, err
	}
	counts := make([]int, len(dicts))
	for i, d := range dicts {
		counts[i] = len(d)
	}

	dec, err := indextable.NewDecoder(buf[h.SymbolTableLength:], h, records, counts, file)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, dec.Records())
	err = dec.DecodeAll(ctx, func(i int, positions []int) error {
		row := make([]any, len(positions))
		for c, p := range positions {
			if p >= 0 {
				row[c] = dicts[c][p].Value()
			}
		}
		rows[i] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Table{columns: h.FieldNames(), rows: rows, Header: h}, nil
}
