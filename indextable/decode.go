package indextable

import (
	"context"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/header"
)

// Decoder extracts dictionary positions from a packed index table.
type Decoder struct {
	data       []byte
	recordSize int
	records    int
	fields     []FieldGeometry
	symbols    []int
	file       string
}

// NewDecoder prepares to decode records rows from data, the leading part of
// the index table. symbolCounts holds the decoded dictionary length of each
// field and bounds every extracted position.
func NewDecoder(data []byte, h *header.TableHeader, records int64, symbolCounts []int, file string) (*Decoder, error) {
	base := map[string]any{
		core.CtxFile:       file,
		core.CtxStage:      core.StageIndexTable,
		core.CtxBufferSize: len(data),
	}

	rs := h.RecordByteSize
	if rs <= 0 || rs > core.MaxRecordByteSize {
		ctx := core.With(base, core.CtxValue, rs)
		ctx[core.CtxMax] = core.MaxRecordByteSize
		return nil, core.NewCorruptedError("invalid record byte size", ctx)
	}
	if records < 0 {
		return nil, core.NewCorruptedError("invalid record count", core.With(base, core.CtxValue, records))
	}
	if records > int64(len(data))/rs {
		ctx := core.With(base, core.CtxValue, records)
		ctx[core.CtxLength] = records * rs
		return nil, core.NewCorruptedError("index table is shorter than the records it must hold", ctx)
	}
	if len(symbolCounts) != len(h.Fields) {
		return nil, core.NewValidationError("symbol counts do not match header fields", map[string]any{
			core.CtxLength: len(symbolCounts),
			core.CtxValue:  len(h.Fields),
		})
	}

	recordBits := rs * 8
	fields := make([]FieldGeometry, len(h.Fields))
	for i, f := range h.Fields {
		if f.BitOffset < 0 || f.BitWidth < 0 || f.BitWidth > core.MaxBitWidth || f.BitOffset > recordBits-f.BitWidth {
			ctx := core.With(base, core.CtxField, f.Name)
			ctx[core.CtxOffset] = f.BitOffset
			ctx[core.CtxLength] = f.BitWidth
			ctx[core.CtxMax] = recordBits
			return nil, core.NewCorruptedError("field bits exceed record", ctx)
		}
		fields[i] = FieldGeometry{Name: f.Name, BitOffset: int(f.BitOffset), BitWidth: int(f.BitWidth), Bias: int(f.Bias)}
	}

	return &Decoder{
		data:       data,
		recordSize: int(rs),
		records:    int(records),
		fields:     fields,
		symbols:    symbolCounts,
		file:       file,
	}, nil
}

// Records returns the number of records the decoder will produce.
func (d *Decoder) Records() int { return d.records }

// Record writes the dictionary positions of record i into dst, which must
// have one slot per field. Null cells are -1.
func (d *Decoder) Record(i int, dst []int) error {
	if i < 0 || i >= d.records {
		return core.NewValidationError("record index out of range", map[string]any{
			core.CtxIndex: i,
			core.CtxMin:   0,
			core.CtxMax:   d.records - 1,
		})
	}
	start := i * d.recordSize
	rec := d.data[start : start+d.recordSize]
	for j, f := range d.fields {
		pos := int64(extract(rec, f.BitOffset, f.BitWidth)) + int64(f.Bias)
		if pos < 0 {
			dst[j] = -1
			continue
		}
		if pos >= int64(d.symbols[j]) {
			return core.NewCorruptedError("index points past end of dictionary", map[string]any{
				core.CtxField:  f.Name,
				core.CtxFile:   d.file,
				core.CtxStage:  core.StageIndexTable,
				core.CtxRecord: i,
				core.CtxValue:  pos,
				core.CtxMax:    d.symbols[j],
				core.CtxOffset: start,
			})
		}
		dst[j] = int(pos)
	}
	return nil
}

// DecodeAll decodes every record, calling fn with each record's positions.
// The slice passed to fn is reused between calls.
func (d *Decoder) DecodeAll(ctx context.Context, fn func(record int, positions []int) error) error {
	positions := make([]int, len(d.fields))
	for i := 0; i < d.records; i++ {
		if i%4096 == 0 && i > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := d.Record(i, positions); err != nil {
			return err
		}
		if err := fn(i, positions); err != nil {
			return err
		}
	}
	return nil
}
