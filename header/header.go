// Package header converts between the QVD XML metadata header and the
// normalized field and table descriptors the codec works with.
//
// Structural values (offsets, lengths, bit geometry, bias, counts) are parsed
// strictly into integers; everything else is carried as opaque text so it can
// be written back unchanged.
package header

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/INLOpen/qvd/core"
)

// FieldDescriptor describes one column.
type FieldDescriptor struct {
	Name string

	// Dictionary byte range, relative to the start of the symbol table.
	Offset int64
	Length int64
	// Index-table geometry within one record.
	BitOffset int64
	BitWidth  int64
	Bias      int64

	NoOfSymbols int64

	// Pass-through display metadata.
	Comment      string
	Tags         []string
	NumberFormat NumberFormat
	Extra        []RawElement
}

// TableHeader is the normalized header of one QVD file.
type TableHeader struct {
	BuildNo             string
	CreatorDoc          string
	CreateUtcTime       string
	SourceCreateUtcTime string
	SourceFileUtcTime   string
	SourceFileSize      string
	StaleUtcTime        string
	TableName           string
	Compression         string
	Comment             string
	Lineage             []LineageInfo
	TableTags           []string
	Extra               []RawElement

	Fields []FieldDescriptor

	RecordByteSize int64
	NoOfRecords    int64
	// SymbolTableLength is the table-level Offset element: where the index
	// table begins relative to the end of the header.
	SymbolTableLength int64
	// IndexTableLength is the table-level Length element.
	IndexTableLength int64
}

// FieldNames returns the column names in header order.
func (h *TableHeader) FieldNames() []string {
	names := make([]string, len(h.Fields))
	for i, f := range h.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the descriptor named name.
func (h *TableHeader) Field(name string) (*FieldDescriptor, bool) {
	for i := range h.Fields {
		if h.Fields[i].Name == name {
			return &h.Fields[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of h.
func (h *TableHeader) Clone() *TableHeader {
	if h == nil {
		return nil
	}
	c := *h
	c.Lineage = append([]LineageInfo(nil), h.Lineage...)
	c.TableTags = append([]string(nil), h.TableTags...)
	c.Extra = append([]RawElement(nil), h.Extra...)
	c.Fields = make([]FieldDescriptor, len(h.Fields))
	for i, f := range h.Fields {
		f.Tags = append([]string(nil), f.Tags...)
		f.Extra = append([]RawElement(nil), f.Extra...)
		c.Fields[i] = f
	}
	return &c
}

// Parse parses header text (everything before the payload delimiter) into a
// TableHeader. Numeric structural elements that are not plain base-10
// integers yield a CorruptedError naming the element; geometry checks are
// left to the bounds package.
func Parse(text []byte, file string) (*TableHeader, error) {
	x, err := decodeXML(text, file)
	if err != nil {
		return nil, err
	}
	return normalize(x, file)
}

func normalize(x *xmlTable, file string) (*TableHeader, error) {
	h := &TableHeader{
		BuildNo:             x.QvBuildNo,
		CreatorDoc:          x.CreatorDoc,
		CreateUtcTime:       x.CreateUtcTime,
		SourceCreateUtcTime: x.SourceCreateUtcTime,
		SourceFileUtcTime:   x.SourceFileUtcTime,
		SourceFileSize:      x.SourceFileSize,
		StaleUtcTime:        x.StaleUtcTime,
		TableName:           x.TableName,
		Compression:         x.Compression,
		Comment:             x.Comment,
		Lineage:             x.Lineage,
		TableTags:           x.TableTags,
		Extra:               x.Extra,
		Fields:              make([]FieldDescriptor, 0, len(x.Fields)),
	}

	p := intParser{file: file}
	h.RecordByteSize = p.required("", "RecordByteSize", x.RecordByteSize)
	h.NoOfRecords = p.required("", "NoOfRecords", x.NoOfRecords)
	h.SymbolTableLength = p.required("", "Offset", x.Offset)
	h.IndexTableLength = p.required("", "Length", x.Length)

	seen := make(map[string]struct{}, len(x.Fields))
	for _, xf := range x.Fields {
		if _, dup := seen[xf.FieldName]; dup {
			return nil, core.NewCorruptedError("duplicate field name in header", map[string]any{
				core.CtxField: xf.FieldName,
				core.CtxFile:  file,
				core.CtxStage: core.StageHeader,
			})
		}
		seen[xf.FieldName] = struct{}{}

		f := FieldDescriptor{
			Name:         xf.FieldName,
			Offset:       p.required(xf.FieldName, "Offset", xf.Offset),
			Length:       p.required(xf.FieldName, "Length", xf.Length),
			BitOffset:    p.required(xf.FieldName, "BitOffset", xf.BitOffset),
			BitWidth:     p.required(xf.FieldName, "BitWidth", xf.BitWidth),
			Bias:         p.optional(xf.FieldName, "Bias", xf.Bias),
			NoOfSymbols:  p.optional(xf.FieldName, "NoOfSymbols", xf.NoOfSymbols),
			Comment:      xf.Comment,
			Tags:         xf.Tags,
			NumberFormat: xf.NumberFormat,
			Extra:        xf.Extra,
		}
		h.Fields = append(h.Fields, f)
	}
	if p.err != nil {
		return nil, p.err
	}
	return h, nil
}

// intParser records the first failure so normalize reads straight through.
type intParser struct {
	file string
	err  error
}

func (p *intParser) required(field, element, text string) int64 {
	return p.parse(field, element, text, false)
}

func (p *intParser) optional(field, element, text string) int64 {
	return p.parse(field, element, text, true)
}

func (p *intParser) parse(field, element, text string, optional bool) int64 {
	if p.err != nil {
		return 0
	}
	s := strings.TrimSpace(text)
	if s == "" && optional {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		ctx := map[string]any{
			core.CtxFile:  p.file,
			core.CtxStage: core.StageHeader,
			"element":     element,
			core.CtxValue: text,
		}
		if field != "" {
			ctx[core.CtxField] = field
		}
		msg := "header element is not a valid integer"
		if s == "" {
			msg = "required header element is missing"
		}
		p.err = core.NewCorruptedError(msg, ctx)
		return 0
	}
	return v
}

// Marshal serializes h into header text, ending in CR LF. The caller appends
// the NUL that completes the payload delimiter.
func Marshal(h *TableHeader) ([]byte, error) {
	x := &xmlTable{
		QvBuildNo:           h.BuildNo,
		CreatorDoc:          h.CreatorDoc,
		CreateUtcTime:       h.CreateUtcTime,
		SourceCreateUtcTime: h.SourceCreateUtcTime,
		SourceFileUtcTime:   h.SourceFileUtcTime,
		SourceFileSize:      h.SourceFileSize,
		StaleUtcTime:        h.StaleUtcTime,
		TableName:           h.TableName,
		Compression:         h.Compression,
		RecordByteSize:      itoa(h.RecordByteSize),
		NoOfRecords:         itoa(h.NoOfRecords),
		Offset:              itoa(h.SymbolTableLength),
		Length:              itoa(h.IndexTableLength),
		Lineage:             h.Lineage,
		Comment:             h.Comment,
		TableTags:           h.TableTags,
		Extra:               h.Extra,
		Fields:              make([]xmlField, len(h.Fields)),
	}
	for i, f := range h.Fields {
		x.Fields[i] = xmlField{
			FieldName:    f.Name,
			BitOffset:    itoa(f.BitOffset),
			BitWidth:     itoa(f.BitWidth),
			Bias:         itoa(f.Bias),
			NumberFormat: f.NumberFormat,
			NoOfSymbols:  itoa(f.NoOfSymbols),
			Offset:       itoa(f.Offset),
			Length:       itoa(f.Length),
			Comment:      f.Comment,
			Tags:         f.Tags,
			Extra:        f.Extra,
		}
	}
	return encodeXML(x)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// NewDefault returns the header used for a table that was never loaded from
// a file: current build number, creation time, a fresh document identifier,
// and no lineage or tags.
func NewDefault(tableName string, now time.Time) *TableHeader {
	return &TableHeader{
		BuildNo:        core.DefaultBuildNo,
		CreatorDoc:     uuid.NewString(),
		CreateUtcTime:  now.UTC().Format(core.HeaderTimeLayout),
		SourceFileSize: "-1",
		TableName:      tableName,
	}
}

// DefaultNumberFormat is assigned to fields that have no prior metadata.
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{Type: core.DefaultNumberFormatType, NDec: "0", UseThou: "0"}
}
