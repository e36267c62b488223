package header

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/INLOpen/qvd/core"
)

// xmlDeclaration prefixes every serialized header.
const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"

// RawElement keeps an element the codec does not model, verbatim.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// NumberFormat is pass-through display metadata of a field.
type NumberFormat struct {
	Type    string `xml:"Type"`
	NDec    string `xml:"nDec"`
	UseThou string `xml:"UseThou"`
	Fmt     string `xml:"Fmt"`
	Dec     string `xml:"Dec"`
	Thou    string `xml:"Thou"`
}

// LineageInfo is one pass-through lineage entry.
type LineageInfo struct {
	Discriminator string `xml:"Discriminator"`
	Statement     string `xml:"Statement"`
}

// xmlField mirrors <QvdFieldHeader>. Numeric elements stay text until
// normalize validates them.
type xmlField struct {
	FieldName    string       `xml:"FieldName"`
	BitOffset    string       `xml:"BitOffset"`
	BitWidth     string       `xml:"BitWidth"`
	Bias         string       `xml:"Bias"`
	NumberFormat NumberFormat `xml:"NumberFormat"`
	NoOfSymbols  string       `xml:"NoOfSymbols"`
	Offset       string       `xml:"Offset"`
	Length       string       `xml:"Length"`
	Comment      string       `xml:"Comment"`
	Tags         []string     `xml:"Tags>String"`
	Extra        []RawElement `xml:",any"`
}

// xmlTable mirrors <QvdTableHeader>. Repeated children decode into slices
// whether one or many are present, so a single field needs no special case.
type xmlTable struct {
	XMLName             xml.Name      `xml:"QvdTableHeader"`
	QvBuildNo           string        `xml:"QvBuildNo"`
	CreatorDoc          string        `xml:"CreatorDoc"`
	CreateUtcTime       string        `xml:"CreateUtcTime"`
	SourceCreateUtcTime string        `xml:"SourceCreateUtcTime"`
	SourceFileUtcTime   string        `xml:"SourceFileUtcTime"`
	SourceFileSize      string        `xml:"SourceFileSize"`
	StaleUtcTime        string        `xml:"StaleUtcTime"`
	TableName           string        `xml:"TableName"`
	Fields              []xmlField    `xml:"Fields>QvdFieldHeader"`
	Compression         string        `xml:"Compression"`
	RecordByteSize      string        `xml:"RecordByteSize"`
	NoOfRecords         string        `xml:"NoOfRecords"`
	Offset              string        `xml:"Offset"`
	Length              string        `xml:"Length"`
	Lineage             []LineageInfo `xml:"Lineage>LineageInfo"`
	Comment             string        `xml:"Comment"`
	TableTags           []string      `xml:"TableTags>String"`
	Extra               []RawElement  `xml:",any"`
}

// decodeXML parses header text. encoding/xml never fetches external
// entities; Strict mode additionally rejects undefined entity references.
func decodeXML(text []byte, file string) (*xmlTable, error) {
	dec := xml.NewDecoder(bytes.NewReader(text))
	dec.Strict = true
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// Headers are UTF-8; some writers label them with a Windows code page name.
		return input, nil
	}
	var t xmlTable
	if err := dec.Decode(&t); err != nil {
		return nil, core.NewParseError("cannot parse header XML", map[string]any{
			core.CtxFile:   file,
			core.CtxStage:  core.StageHeader,
			core.CtxLength: len(text),
		}, err)
	}
	return &t, nil
}

// encodeXML serializes t with the XML declaration. The payload delimiter is
// not included.
func encodeXML(t *xmlTable) ([]byte, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)

	buf.WriteString(xmlDeclaration)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush header encoder: %w", err)
	}
	buf.WriteString("\r\n")

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
