package indextable

import (
	"context"
	"math/bits"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/symtable"
)

// Encoded is the output of Encode.
type Encoded struct {
	Fields         []FieldGeometry
	RecordByteSize int
	NoOfRecords    int
	Bytes          []byte
}

// EncodeOptions tunes Encode.
type EncodeOptions struct {
	// Progress is called every ProgressInterval rows and once at the end.
	Progress         func(done, total int)
	ProgressInterval int
}

const defaultProgressInterval = 10000

// Layout computes the record geometry for dicts. A column containing nulls
// stores positions shifted by two and records a bias of -2. Widths are the
// bit length of the largest stored value, so a column with a single distinct
// value and no nulls takes no bits at all. Records are at least one byte.
func Layout(dicts []*symtable.Dictionary) ([]FieldGeometry, int) {
	fields := make([]FieldGeometry, len(dicts))
	off := 0
	for i, d := range dicts {
		var shift, bias int
		if d.HasNull() {
			shift, bias = core.NullIndexShift, core.NullBias
		}
		var maxStored uint64
		if n := len(d.Symbols); n > 0 {
			maxStored = uint64(n-1) + uint64(shift)
		}
		width := bits.Len64(maxStored)
		fields[i] = FieldGeometry{Name: d.Field, BitOffset: off, BitWidth: width, Bias: bias}
		off += width
	}
	size := (off + 7) / 8
	if size == 0 {
		size = 1
	}
	return fields, size
}

// Encode packs every row of dicts into records. All dictionaries must cover
// the same number of rows.
func Encode(ctx context.Context, dicts []*symtable.Dictionary, rows int, opts EncodeOptions) (*Encoded, error) {
	for _, d := range dicts {
		if len(d.Positions) != rows {
			return nil, core.NewValidationError("column row count does not match table", map[string]any{
				core.CtxField:  d.Field,
				core.CtxLength: len(d.Positions),
				core.CtxValue:  rows,
			})
		}
	}

	fields, size := Layout(dicts)
	shifts := make([]uint64, len(dicts))
	for i, f := range fields {
		if f.Bias == core.NullBias {
			shifts[i] = core.NullIndexShift
		}
	}

	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	out := make([]byte, rows*size)
	for row := 0; row < rows; row++ {
		if row%interval == 0 && row > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if opts.Progress != nil {
				opts.Progress(row, rows)
			}
		}
		rec := out[row*size : (row+1)*size]
		for i, d := range dicts {
			f := fields[i]
			if f.BitWidth == 0 {
				continue
			}
			var v uint64
			if shifts[i] == 0 || !d.Nulls.Contains(uint32(row)) {
				v = uint64(d.Positions[row]) + shifts[i]
			}
			deposit(rec, f.BitOffset, f.BitWidth, v)
		}
	}
	if opts.Progress != nil {
		opts.Progress(rows, rows)
	}

	return &Encoded{Fields: fields, RecordByteSize: size, NoOfRecords: rows, Bytes: out}, nil
}
