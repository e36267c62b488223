package symtable

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/header"
	"github.com/INLOpen/qvd/symbol"
)

// Decode reads each field's dictionary from table, the complete symbol table.
// Every failure is a CorruptedError carrying the field, the absolute offset
// within table, and the table size.
func Decode(table []byte, fields []header.FieldDescriptor, file string) ([][]symbol.Symbol, error) {
	out := make([][]symbol.Symbol, len(fields))
	for i := range fields {
		syms, err := decodeField(table, &fields[i], file)
		if err != nil {
			return nil, err
		}
		out[i] = syms
	}
	return out, nil
}

type fieldReader struct {
	table []byte
	field string
	file  string
	pos   int
	end   int
}

func (r *fieldReader) corrupt(msg string, offset int64) *core.CorruptedError {
	return core.NewCorruptedError(msg, map[string]any{
		core.CtxField:      r.field,
		core.CtxFile:       r.file,
		core.CtxStage:      core.StageSymbolTable,
		core.CtxOffset:     offset,
		core.CtxBufferSize: len(r.table),
	})
}

func decodeField(table []byte, f *header.FieldDescriptor, file string) ([]symbol.Symbol, error) {
	r := &fieldReader{table: table, field: f.Name, file: file}

	size := int64(len(table))
	if f.Offset < 0 || f.Length < 0 || f.Offset > size || f.Length > size-f.Offset {
		err := r.corrupt("symbol range exceeds symbol table", f.Offset)
		err.Context[core.CtxLength] = f.Length
		return nil, err
	}
	r.pos = int(f.Offset)
	r.end = int(f.Offset + f.Length)

	var syms []symbol.Symbol
	if f.NoOfSymbols > 0 && f.NoOfSymbols <= f.Length {
		syms = make([]symbol.Symbol, 0, f.NoOfSymbols)
	}
	for r.pos < r.end {
		s, err := r.next()
		if err != nil {
			return nil, err
		}
		syms = append(syms, s)
	}
	return syms, nil
}

func (r *fieldReader) next() (symbol.Symbol, error) {
	start := r.pos
	typ := r.table[r.pos]
	r.pos++

	switch typ {
	case core.SymbolTypeInt:
		v, err := r.readInt32()
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.NewInt(v), nil
	case core.SymbolTypeDouble:
		v, err := r.readFloat64()
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.NewDouble(v), nil
	case core.SymbolTypeString:
		s, err := r.cstring()
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.NewString(s), nil
	case core.SymbolTypeDualInt:
		v, err := r.readInt32()
		if err != nil {
			return symbol.Symbol{}, err
		}
		s, err := r.cstring()
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.NewDualInt(v, s), nil
	case core.SymbolTypeDualDouble:
		v, err := r.readFloat64()
		if err != nil {
			return symbol.Symbol{}, err
		}
		s, err := r.cstring()
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.NewDualDouble(v, s), nil
	default:
		err := r.corrupt("unknown symbol type byte", int64(start))
		err.Context[core.CtxTypeByte] = typ
		return symbol.Symbol{}, err
	}
}

func (r *fieldReader) fixed(n int) ([]byte, error) {
	if r.end-r.pos < n {
		err := r.corrupt("fixed-width symbol payload runs past end of range", int64(r.pos))
		err.Context[core.CtxLength] = n
		err.Context[core.CtxAvailable] = r.end - r.pos
		return nil, err
	}
	b := r.table[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *fieldReader) readInt32() (int32, error) {
	b, err := r.fixed(core.IntSize)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *fieldReader) readFloat64() (float64, error) {
	b, err := r.fixed(core.DoubleSize)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// cstring reads a NUL-terminated string. The search never looks further than
// the string cap, so an adversarial range cannot force a long scan.
func (r *fieldReader) cstring() (string, error) {
	limit := min(r.end, r.pos+core.MaxStringLength+1)
	n := bytes.IndexByte(r.table[r.pos:limit], 0)
	if n < 0 {
		if limit < r.end {
			err := r.corrupt("string symbol exceeds maximum length", int64(r.pos))
			err.Context[core.CtxMax] = core.MaxStringLength
			return "", err
		}
		return "", r.corrupt("string symbol is not terminated before end of range", int64(r.pos))
	}
	s := string(r.table[r.pos : r.pos+n])
	r.pos += n + 1
	return s, nil
}
