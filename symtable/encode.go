// Package symtable encodes and decodes the QVD symbol table: one dictionary
// of distinct values per column, concatenated in column order.
package symtable

import (
	"context"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/symbol"
)

// Dictionary is the encoded form of one column.
type Dictionary struct {
	Field string
	// Symbols holds the distinct non-null values in first-occurrence order.
	Symbols []symbol.Symbol
	// Positions holds, per row, the dictionary position of the row's value.
	// Null rows hold 0; Nulls tells them apart.
	Positions []uint32
	// Nulls holds the row numbers whose value is null.
	Nulls *roaring.Bitmap

	// Byte range within the symbol table, set by Encode.
	Offset int64
	Length int64

	index   map[symbol.Key]uint32
	encoded int
}

// HasNull reports whether any row of the column is null.
func (d *Dictionary) HasNull() bool { return !d.Nulls.IsEmpty() }

// Lookup returns the dictionary position of s.
func (d *Dictionary) Lookup(s symbol.Symbol) (uint32, bool) {
	pos, ok := d.index[s.Key()]
	return pos, ok
}

// Encoded is the output of Encode.
type Encoded struct {
	Dictionaries []*Dictionary
	// Bytes is the complete symbol table.
	Bytes []byte
}

// ColumnSource yields the raw cell of a column at a row.
type ColumnSource interface {
	NumRows() int
	Cell(row, col int) any
}

// Encode builds every column's dictionary, then lays the dictionaries out
// back to back. Columns are built concurrently; each writes only its own
// slot, and the final buffer is sized once from the per-column totals.
// onColumn, if not nil, is called with a running count each time a column
// finishes; calls are serialized and the count only increases.
func Encode(ctx context.Context, fields []string, src ColumnSource, onColumn func(done, total int)) (*Encoded, error) {
	dicts := make([]*Dictionary, len(fields))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	for col, name := range fields {
		g.Go(func() error {
			d, err := buildDictionary(gctx, name, col, src)
			if err != nil {
				return err
			}
			dicts[col] = d
			if onColumn != nil {
				mu.Lock()
				done++
				onColumn(done, len(fields))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, d := range dicts {
		d.Offset = int64(total)
		d.Length = int64(d.encoded)
		total += d.encoded
	}

	buf := make([]byte, 0, total)
	for _, d := range dicts {
		for _, s := range d.Symbols {
			buf = s.AppendTo(buf)
		}
	}
	return &Encoded{Dictionaries: dicts, Bytes: buf}, nil
}

// cancelCheckInterval is how many rows are processed between context checks.
const cancelCheckInterval = 4096

func buildDictionary(ctx context.Context, name string, col int, src ColumnSource) (*Dictionary, error) {
	rows := src.NumRows()
	d := &Dictionary{
		Field:     name,
		Positions: make([]uint32, rows),
		Nulls:     roaring.New(),
		index:     make(map[symbol.Key]uint32),
	}

	for row := 0; row < rows; row++ {
		if row%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		s, ok := symbol.FromValue(src.Cell(row, col))
		if !ok {
			d.Nulls.Add(uint32(row))
			continue
		}
		key := s.Key()
		pos, seen := d.index[key]
		if !seen {
			if err := checkString(s, name, row); err != nil {
				return nil, err
			}
			pos = uint32(len(d.Symbols))
			d.index[key] = pos
			d.Symbols = append(d.Symbols, s)
			d.encoded += s.EncodedLen()
		}
		d.Positions[row] = pos
	}
	return d, nil
}

// checkString rejects string slots that cannot be written as a
// NUL-terminated payload or that exceed the decoder's cap.
func checkString(s symbol.Symbol, field string, row int) error {
	str, ok := s.Str()
	if !ok {
		return nil
	}
	if len(str) > core.MaxStringLength {
		return core.NewValidationError("string value exceeds maximum length", map[string]any{
			core.CtxField:  field,
			core.CtxRecord: row,
			core.CtxLength: len(str),
			core.CtxMax:    core.MaxStringLength,
		})
	}
	if i := strings.IndexByte(str, 0); i >= 0 {
		return core.NewValidationError("string value contains a NUL byte", map[string]any{
			core.CtxField:  field,
			core.CtxRecord: row,
			core.CtxOffset: i,
		})
	}
	return nil
}
