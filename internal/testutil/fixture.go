// Package testutil builds raw QVD byte images for tests, including images
// whose headers no encoder would produce.
package testutil

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
)

// Field is one <QvdFieldHeader>. Values are written verbatim so tests can
// supply malformed numbers. Empty values are omitted.
type Field struct {
	Name        string
	Offset      string
	Length      string
	BitOffset   string
	BitWidth    string
	Bias        string
	NoOfSymbols string
}

// Header is a <QvdTableHeader> with only the elements the codec reads.
type Header struct {
	TableName      string
	RecordByteSize string
	NoOfRecords    string
	Offset         string
	Length         string
	Fields         []Field
}

// XML renders h as header text, without the payload delimiter.
func (h Header) XML() []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n")
	b.WriteString("<QvdTableHeader>\r\n")
	element(&b, "TableName", h.TableName)
	b.WriteString("<Fields>\r\n")
	for _, f := range h.Fields {
		b.WriteString("<QvdFieldHeader>\r\n")
		element(&b, "FieldName", f.Name)
		element(&b, "BitOffset", f.BitOffset)
		element(&b, "BitWidth", f.BitWidth)
		element(&b, "Bias", f.Bias)
		element(&b, "NoOfSymbols", f.NoOfSymbols)
		element(&b, "Offset", f.Offset)
		element(&b, "Length", f.Length)
		b.WriteString("</QvdFieldHeader>\r\n")
	}
	b.WriteString("</Fields>\r\n")
	element(&b, "RecordByteSize", h.RecordByteSize)
	element(&b, "NoOfRecords", h.NoOfRecords)
	element(&b, "Offset", h.Offset)
	element(&b, "Length", h.Length)
	b.WriteString("</QvdTableHeader>\r\n")
	return b.Bytes()
}

func element(b *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	b.WriteString("<" + name + ">")
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString("</" + name + ">\r\n")
}

// Delimiter separates header text from the payload. It is spelled out here
// so fixtures do not depend on the package under test.
var Delimiter = []byte{0x0D, 0x0A, 0x00}

// Assemble joins header text, the delimiter and the payload parts.
func Assemble(headerText []byte, payload ...[]byte) []byte {
	out := append([]byte(nil), headerText...)
	out = append(out, Delimiter...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

// Int32LE encodes v little-endian.
func Int32LE(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

// DualInt encodes a type-5 symbol.
func DualInt(v int32, s string) []byte {
	out := append([]byte{5}, Int32LE(v)...)
	out = append(out, s...)
	return append(out, 0)
}

// String encodes a type-4 symbol.
func String(s string) []byte {
	out := append([]byte{4}, s...)
	return append(out, 0)
}
