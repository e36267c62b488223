// Package bounds rejects header geometry that is inconsistent with the bytes
// actually present, before any of it is used as a byte offset.
package bounds

import (
	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/header"
)

// Validate checks h against payloadSize, the number of bytes that follow the
// header delimiter in the physical file. It returns the first violation
// found as a CorruptedError.
//
// The checks are:
//   - RecordByteSize is positive and at most core.MaxRecordByteSize
//   - NoOfRecords is non-negative and fits the declared index table
//   - the symbol table lies within the payload
//   - the index table length is non-negative and exceeds what remains of
//     the payload by at most core.MaxIndexTableOverrun
//   - every field's dictionary range lies within the symbol table
//   - every field's bit slice lies within one record
func Validate(h *header.TableHeader, payloadSize int64, file string) error {
	c := checker{file: file, payload: payloadSize}

	c.table(h)
	for i := range h.Fields {
		if c.err != nil {
			break
		}
		c.field(h, &h.Fields[i])
	}
	return c.err
}

type checker struct {
	file    string
	payload int64
	err     error
}

func (c *checker) fail(msg, stage string, ctx map[string]any) {
	if c.err != nil {
		return
	}
	ctx[core.CtxFile] = c.file
	ctx[core.CtxStage] = stage
	ctx[core.CtxBufferSize] = c.payload
	c.err = core.NewCorruptedError(msg, ctx)
}

func (c *checker) table(h *header.TableHeader) {
	rs := h.RecordByteSize
	switch {
	case rs <= 0:
		c.fail("record byte size must be positive", core.StageIndexTable, map[string]any{
			"element": "RecordByteSize", core.CtxValue: rs, core.CtxMin: 1,
		})
	case rs > core.MaxRecordByteSize:
		c.fail("record byte size exceeds limit", core.StageIndexTable, map[string]any{
			"element": "RecordByteSize", core.CtxValue: rs, core.CtxMax: core.MaxRecordByteSize,
		})
	}

	if h.NoOfRecords < 0 {
		c.fail("record count must not be negative", core.StageIndexTable, map[string]any{
			"element": "NoOfRecords", core.CtxValue: h.NoOfRecords,
		})
	}

	st := h.SymbolTableLength
	if st < 0 || st > c.payload {
		c.fail("symbol table length exceeds payload", core.StageSymbolTable, map[string]any{
			"element": "Offset", core.CtxValue: st, core.CtxMax: c.payload,
		})
	}

	it := h.IndexTableLength
	if it < 0 {
		c.fail("index table length must not be negative", core.StageIndexTable, map[string]any{
			"element": "Length", core.CtxValue: it,
		})
	}
	if c.err != nil {
		return
	}

	remaining := c.payload - st
	if it-remaining > core.MaxIndexTableOverrun {
		c.fail("index table length far exceeds file size", core.StageIndexTable, map[string]any{
			"element": "Length", core.CtxValue: it, core.CtxAvailable: remaining, core.CtxMax: remaining + core.MaxIndexTableOverrun,
		})
		return
	}
	// Division keeps the product from overflowing.
	if h.NoOfRecords > it/rs {
		c.fail("record count exceeds index table length", core.StageIndexTable, map[string]any{
			"element": "NoOfRecords", core.CtxValue: h.NoOfRecords, core.CtxLength: it, core.CtxMax: it / rs,
		})
	}
}

func (c *checker) field(h *header.TableHeader, f *header.FieldDescriptor) {
	st := h.SymbolTableLength
	switch {
	case f.Offset < 0 || f.Offset > st:
		c.fail("symbol offset outside symbol table", core.StageSymbolTable, map[string]any{
			core.CtxField: f.Name, core.CtxOffset: f.Offset, core.CtxMax: st,
		})
		return
	case f.Length < 0 || f.Length > st-f.Offset:
		c.fail("symbol length runs past symbol table", core.StageSymbolTable, map[string]any{
			core.CtxField: f.Name, core.CtxOffset: f.Offset, core.CtxLength: f.Length, core.CtxMax: st,
		})
		return
	}

	recordBits := h.RecordByteSize * 8
	switch {
	case f.BitOffset < 0:
		c.fail("bit offset must not be negative", core.StageIndexTable, map[string]any{
			core.CtxField: f.Name, "element": "BitOffset", core.CtxValue: f.BitOffset,
		})
	case f.BitWidth < 0 || f.BitWidth > core.MaxBitWidth:
		c.fail("bit width out of range", core.StageIndexTable, map[string]any{
			core.CtxField: f.Name, "element": "BitWidth", core.CtxValue: f.BitWidth, core.CtxMax: core.MaxBitWidth,
		})
	case f.BitOffset > recordBits-f.BitWidth:
		c.fail("field bits exceed record", core.StageIndexTable, map[string]any{
			core.CtxField: f.Name, core.CtxOffset: f.BitOffset, core.CtxLength: f.BitWidth, core.CtxMax: recordBits,
		})
	}
}
