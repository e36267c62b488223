package header

import "time"

// FieldLayout is the structural geometry of one column as computed by the
// encoders.
type FieldLayout struct {
	Name        string
	Offset      int64
	Length      int64
	BitOffset   int64
	BitWidth    int64
	Bias        int64
	NoOfSymbols int64
}

// Layout is the structural geometry of a whole table as computed by the
// encoders.
type Layout struct {
	Fields            []FieldLayout
	RecordByteSize    int64
	NoOfRecords       int64
	SymbolTableLength int64
	IndexTableLength  int64
}

// Build produces the header to write. When prev is nil a default header is
// synthesized. Otherwise every pass-through element of prev is carried
// forward, matched to columns by name. Structural values always come from
// layout; whatever prev holds for them is ignored.
func Build(prev *TableHeader, layout Layout, tableName string, now time.Time) *TableHeader {
	var h *TableHeader
	if prev == nil {
		h = NewDefault(tableName, now)
	} else {
		h = prev.Clone()
	}

	fields := make([]FieldDescriptor, len(layout.Fields))
	for i, fl := range layout.Fields {
		f := FieldDescriptor{NumberFormat: DefaultNumberFormat()}
		if prev != nil {
			if old, ok := h.Field(fl.Name); ok {
				f = *old
			}
		}
		f.Name = fl.Name
		f.Offset = fl.Offset
		f.Length = fl.Length
		f.BitOffset = fl.BitOffset
		f.BitWidth = fl.BitWidth
		f.Bias = fl.Bias
		f.NoOfSymbols = fl.NoOfSymbols
		fields[i] = f
	}
	h.Fields = fields

	h.RecordByteSize = layout.RecordByteSize
	h.NoOfRecords = layout.NoOfRecords
	h.SymbolTableLength = layout.SymbolTableLength
	h.IndexTableLength = layout.IndexTableLength
	return h
}
