package header

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/qvd/core"
)

const sampleHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<QvdTableHeader>
  <QvBuildNo>50699</QvBuildNo>
  <CreatorDoc>a1b2c3</CreatorDoc>
  <CreateUtcTime>2024-03-01 10:20:30</CreateUtcTime>
  <SourceFileSize>-1</SourceFileSize>
  <TableName>Sales</TableName>
  <Fields>
    <QvdFieldHeader>
      <FieldName>Region</FieldName>
      <BitOffset>0</BitOffset>
      <BitWidth>2</BitWidth>
      <Bias>0</Bias>
      <NumberFormat>
        <Type>ASCII</Type>
        <nDec>0</nDec>
        <UseThou>0</UseThou>
        <Fmt></Fmt>
        <Dec></Dec>
        <Thou></Thou>
      </NumberFormat>
      <NoOfSymbols>3</NoOfSymbols>
      <Offset>0</Offset>
      <Length>21</Length>
      <Comment>sales region</Comment>
      <Tags>
        <String>$ascii</String>
        <String>$text</String>
      </Tags>
      <Origin>crm</Origin>
    </QvdFieldHeader>
    <QvdFieldHeader>
      <FieldName>Amount</FieldName>
      <BitOffset>2</BitOffset>
      <BitWidth>3</BitWidth>
      <Bias>-2</Bias>
      <NumberFormat>
        <Type>FIX</Type>
        <nDec>2</nDec>
        <UseThou>1</UseThou>
        <Fmt>#,##0.00</Fmt>
        <Dec>.</Dec>
        <Thou>,</Thou>
      </NumberFormat>
      <NoOfSymbols>4</NoOfSymbols>
      <Offset>21</Offset>
      <Length>40</Length>
      <Comment></Comment>
      <Tags>
        <String>$numeric</String>
      </Tags>
    </QvdFieldHeader>
  </Fields>
  <Compression></Compression>
  <RecordByteSize>1</RecordByteSize>
  <NoOfRecords>5</NoOfRecords>
  <Offset>61</Offset>
  <Length>5</Length>
  <Lineage>
    <LineageInfo>
      <Discriminator>sales.csv</Discriminator>
      <Statement>LOAD * FROM sales.csv</Statement>
    </LineageInfo>
  </Lineage>
  <Comment>monthly extract</Comment>
  <TableTags>
    <String>finance</String>
  </TableTags>
</QvdTableHeader>
`

func TestParse_ManyFields(t *testing.T) {
	h, err := Parse([]byte(sampleHeader), "sales.qvd")
	require.NoError(t, err)

	assert.Equal(t, "Sales", h.TableName)
	assert.Equal(t, "50699", h.BuildNo)
	assert.Equal(t, []string{"Region", "Amount"}, h.FieldNames())
	assert.Equal(t, int64(1), h.RecordByteSize)
	assert.Equal(t, int64(5), h.NoOfRecords)
	assert.Equal(t, int64(61), h.SymbolTableLength)
	assert.Equal(t, int64(5), h.IndexTableLength)
	assert.Equal(t, "monthly extract", h.Comment)
	assert.Equal(t, []string{"finance"}, h.TableTags)
	require.Len(t, h.Lineage, 1)
	assert.Equal(t, "sales.csv", h.Lineage[0].Discriminator)

	amount, ok := h.Field("Amount")
	require.True(t, ok)
	assert.Equal(t, int64(2), amount.BitOffset)
	assert.Equal(t, int64(3), amount.BitWidth)
	assert.Equal(t, int64(-2), amount.Bias)
	assert.Equal(t, int64(21), amount.Offset)
	assert.Equal(t, int64(40), amount.Length)
	assert.Equal(t, int64(4), amount.NoOfSymbols)
	assert.Equal(t, "#,##0.00", amount.NumberFormat.Fmt)

	region, ok := h.Field("Region")
	require.True(t, ok)
	assert.Equal(t, []string{"$ascii", "$text"}, region.Tags)
	require.Len(t, region.Extra, 1)
	assert.Equal(t, "Origin", region.Extra[0].XMLName.Local)
	assert.Equal(t, "crm", region.Extra[0].Inner)

	_, ok = h.Field("Missing")
	assert.False(t, ok)
}

func TestParse_SingleFieldIsAList(t *testing.T) {
	text := `<QvdTableHeader>
  <TableName>One</TableName>
  <Fields>
    <QvdFieldHeader>
      <FieldName>X</FieldName>
      <BitOffset>0</BitOffset>
      <BitWidth>0</BitWidth>
      <Offset>0</Offset>
      <Length>6</Length>
    </QvdFieldHeader>
  </Fields>
  <RecordByteSize>1</RecordByteSize>
  <NoOfRecords>0</NoOfRecords>
  <Offset>6</Offset>
  <Length>0</Length>
</QvdTableHeader>`

	h, err := Parse([]byte(text), "one.qvd")
	require.NoError(t, err)
	require.Len(t, h.Fields, 1)
	assert.Equal(t, "X", h.Fields[0].Name)
	assert.Equal(t, int64(0), h.Fields[0].Bias, "missing Bias defaults to zero")
	assert.Empty(t, h.Fields[0].Tags)
}

func TestParse_RejectsNonIntegerGeometry(t *testing.T) {
	testCases := []struct {
		name    string
		old     string
		new     string
		element string
		field   string
	}{
		{"NaN record size", "<RecordByteSize>1</RecordByteSize>", "<RecordByteSize>NaN</RecordByteSize>", "RecordByteSize", ""},
		{"overflowing record count", "<NoOfRecords>5</NoOfRecords>", "<NoOfRecords>99999999999999999999999</NoOfRecords>", "NoOfRecords", ""},
		{"fractional table length", "<Length>5</Length>\n  <Lineage>", "<Length>5.5</Length>\n  <Lineage>", "Length", ""},
		{"garbage field offset", "<Offset>21</Offset>", "<Offset>x21</Offset>", "Offset", "Amount"},
		{"missing bit width", "<BitWidth>2</BitWidth>", "", "BitWidth", "Region"},
		{"infinite bias", "<Bias>-2</Bias>", "<Bias>-Infinity</Bias>", "Bias", "Amount"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.Replace(sampleHeader, tc.old, tc.new, 1)
			require.NotEqual(t, sampleHeader, text)

			_, err := Parse([]byte(text), "bad.qvd")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrCorrupted), "got %v", err)

			ctx := core.ContextOf(err)
			assert.Equal(t, tc.element, ctx["element"])
			assert.Equal(t, "bad.qvd", ctx[core.CtxFile])
			assert.Equal(t, core.StageHeader, ctx[core.CtxStage])
			if tc.field != "" {
				assert.Equal(t, tc.field, ctx[core.CtxField])
			}
		})
	}
}

func TestParse_RejectsDuplicateFieldNames(t *testing.T) {
	text := strings.Replace(sampleHeader, "<FieldName>Amount</FieldName>", "<FieldName>Region</FieldName>", 1)
	_, err := Parse([]byte(text), "dup.qvd")
	require.Error(t, err)
	assert.True(t, core.IsCorrupted(err))
	assert.Equal(t, "Region", core.ContextOf(err)[core.CtxField])
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse([]byte("<QvdTableHeader><TableName>x</QvdTableHeader>"), "broken.qvd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrParse))
	assert.Equal(t, core.CodeParse, core.CodeOf(err))

	_, err = Parse([]byte("<QvdTableHeader><TableName>&xxe;</TableName></QvdTableHeader>"), "entity.qvd")
	require.Error(t, err, "undefined entities must not be resolved")
	assert.True(t, errors.Is(err, core.ErrParse))
}

func TestMarshal_RoundTripKeepsPassThrough(t *testing.T) {
	h, err := Parse([]byte(sampleHeader), "sales.qvd")
	require.NoError(t, err)

	out, err := Marshal(h)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), xmlDeclaration))
	assert.True(t, strings.HasSuffix(string(out), "\r\n"))

	again, err := Parse(out, "sales.qvd")
	require.NoError(t, err)
	assert.Equal(t, h, again)
}

func TestNewDefault(t *testing.T) {
	now := time.Date(2025, 6, 7, 8, 9, 10, 0, time.FixedZone("X", 3600))
	a := NewDefault("T", now)
	b := NewDefault("T", now)

	assert.Equal(t, "T", a.TableName)
	assert.Equal(t, core.DefaultBuildNo, a.BuildNo)
	assert.Equal(t, "2025-06-07 07:09:10", a.CreateUtcTime)
	assert.Empty(t, a.Lineage)
	assert.Empty(t, a.TableTags)

	_, err := uuid.Parse(a.CreatorDoc)
	require.NoError(t, err)
	assert.NotEqual(t, a.CreatorDoc, b.CreatorDoc)
}

func TestBuild_CarriesForwardAndRecomputes(t *testing.T) {
	prev, err := Parse([]byte(sampleHeader), "sales.qvd")
	require.NoError(t, err)

	// A caller tampering with structural values must not leak into the output.
	prev.Fields[0].BitWidth = 60
	prev.RecordByteSize = 999

	layout := Layout{
		Fields: []FieldLayout{
			{Name: "Amount", Offset: 0, Length: 10, BitOffset: 0, BitWidth: 2, Bias: 0, NoOfSymbols: 1},
			{Name: "Region", Offset: 10, Length: 7, BitOffset: 2, BitWidth: 1, Bias: -2, NoOfSymbols: 1},
			{Name: "New", Offset: 17, Length: 2, BitOffset: 3, BitWidth: 0, Bias: 0, NoOfSymbols: 1},
		},
		RecordByteSize:    1,
		NoOfRecords:       2,
		SymbolTableLength: 19,
		IndexTableLength:  2,
	}

	h := Build(prev, layout, "ignored", time.Now())

	assert.Equal(t, "Sales", h.TableName)
	assert.Equal(t, "monthly extract", h.Comment)
	assert.Equal(t, prev.Lineage, h.Lineage)
	assert.Equal(t, prev.CreatorDoc, h.CreatorDoc)
	assert.Equal(t, []string{"Amount", "Region", "New"}, h.FieldNames())
	assert.Equal(t, int64(1), h.RecordByteSize)
	assert.Equal(t, int64(2), h.NoOfRecords)
	assert.Equal(t, int64(19), h.SymbolTableLength)
	assert.Equal(t, int64(2), h.IndexTableLength)

	amount, _ := h.Field("Amount")
	assert.Equal(t, "FIX", amount.NumberFormat.Type)
	assert.Equal(t, []string{"$numeric"}, amount.Tags)
	assert.Equal(t, int64(0), amount.Bias)
	assert.Equal(t, int64(2), amount.BitWidth)

	region, _ := h.Field("Region")
	assert.Equal(t, "sales region", region.Comment)
	assert.Equal(t, int64(1), region.BitWidth)
	assert.Equal(t, int64(-2), region.Bias)
	require.Len(t, region.Extra, 1)

	fresh, _ := h.Field("New")
	assert.Equal(t, DefaultNumberFormat(), fresh.NumberFormat)
	assert.Empty(t, fresh.Tags)

	// prev is untouched.
	assert.Equal(t, int64(999), prev.RecordByteSize)
}

func TestBuild_WithoutPrevious(t *testing.T) {
	layout := Layout{
		Fields:      []FieldLayout{{Name: "A", Length: 6, BitWidth: 1, NoOfSymbols: 2}},
		NoOfRecords: 2, RecordByteSize: 1, SymbolTableLength: 6, IndexTableLength: 2,
	}
	h := Build(nil, layout, "Fresh", time.Now())
	assert.Equal(t, "Fresh", h.TableName)
	assert.NotEmpty(t, h.CreatorDoc)
	require.Len(t, h.Fields, 1)
	assert.Equal(t, core.DefaultNumberFormatType, h.Fields[0].NumberFormat.Type)

	out, err := Marshal(h)
	require.NoError(t, err)
	back, err := Parse(out, "fresh.qvd")
	require.NoError(t, err)
	assert.Equal(t, h.Fields[0].Length, back.Fields[0].Length)
}
