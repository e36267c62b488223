package testutil

import (
	"bytes"
	"os"
	"testing"
)

func TestHeaderXML_OmitsEmptyElements(t *testing.T) {
	text := Header{
		TableName:      "T&Co",
		RecordByteSize: "1",
		Fields:         []Field{{Name: "A", BitWidth: "0"}},
	}.XML()

	if !bytes.Contains(text, []byte("<TableName>T&amp;Co</TableName>")) {
		t.Errorf("table name not escaped: %s", text)
	}
	if bytes.Contains(text, []byte("<NoOfRecords>")) {
		t.Errorf("empty element was written: %s", text)
	}
	if !bytes.Contains(text, []byte("<BitWidth>0</BitWidth>")) {
		t.Errorf("field element missing: %s", text)
	}
}

func TestAssembleAndWrite(t *testing.T) {
	data := Assemble([]byte("<x/>"), DualInt(-2, "-2"), String(""))
	want := []byte{'<', 'x', '/', '>', 0x0D, 0x0A, 0x00, 5, 0xFE, 0xFF, 0xFF, 0xFF, '-', '2', 0, 4, 0}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % x, want % x", data, want)
	}

	path := WriteFile(t, t.TempDir(), "x.qvd", data)
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("written fixture differs")
	}
}
