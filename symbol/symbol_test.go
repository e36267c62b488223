package symbol

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbol_EncodeLayouts(t *testing.T) {
	negZero := math.Copysign(0, -1)

	testCases := []struct {
		name string
		sym  Symbol
		want []byte
	}{
		{"int zero", NewInt(0), []byte{1, 0, 0, 0, 0}},
		{"int negative", NewInt(-1), []byte{1, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"double zero", NewDouble(0), []byte{2, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"double negative zero", NewDouble(negZero), []byte{2, 0, 0, 0, 0, 0, 0, 0, 0x80}},
		{"double one", NewDouble(1), []byte{2, 0, 0, 0, 0, 0, 0, 0xF0, 0x3F}},
		{"empty string", NewString(""), []byte{4, 0}},
		{"string zero", NewString("0"), []byte{4, '0', 0}},
		{"string utf8", NewString("é"), []byte{4, 0xC3, 0xA9, 0}},
		{"dual int", NewDualInt(258, "258"), []byte{5, 2, 1, 0, 0, '2', '5', '8', 0}},
		{"dual int empty display", NewDualInt(0, ""), []byte{5, 0, 0, 0, 0, 0}},
		{"dual double", NewDualDouble(0.5, "0.5"), []byte{6, 0, 0, 0, 0, 0, 0, 0xE0, 0x3F, '0', '.', '5', 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.sym.Bytes()
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(tc.want), tc.sym.EncodedLen())
			assert.Equal(t, tc.want[0], tc.sym.Kind().TypeByte())
		})
	}
}

func TestSymbol_ZeroesAreDistinct(t *testing.T) {
	zeros := []Symbol{
		NewInt(0),
		NewDouble(0),
		NewDouble(math.Copysign(0, -1)),
		NewString("0"),
		NewString(""),
	}
	for i := range zeros {
		for j := range zeros {
			if i == j {
				assert.True(t, zeros[i].Equal(zeros[j]))
				continue
			}
			assert.False(t, zeros[i].Equal(zeros[j]), "%v should differ from %v", zeros[i], zeros[j])
			assert.NotEqual(t, zeros[i].Bytes(), zeros[j].Bytes())
			assert.NotEqual(t, zeros[i].Key(), zeros[j].Key())
		}
	}
}

func TestSymbol_AppendToInvalidPanics(t *testing.T) {
	assert.Panics(t, func() { Symbol{}.Bytes() })
	assert.Equal(t, 0, Symbol{}.EncodedLen())
	assert.Nil(t, Symbol{}.PrimaryValue())
	assert.Nil(t, Symbol{}.Value())
}

func TestSymbol_PrimaryValue(t *testing.T) {
	assert.Equal(t, int32(7), NewInt(7).PrimaryValue())
	assert.Equal(t, 2.5, NewDouble(2.5).PrimaryValue())
	assert.Equal(t, "x", NewString("x").PrimaryValue())
	assert.Equal(t, "seven", NewDualInt(7, "seven").PrimaryValue())
	assert.Equal(t, "2,5", NewDualDouble(2.5, "2,5").PrimaryValue())
}

func TestSymbol_KeyMatchesEqual(t *testing.T) {
	a := NewDualInt(1, "1")
	b := NewDualInt(1, "1")
	c := NewDualInt(1, "01")
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())

	nan := NewDouble(math.NaN())
	assert.True(t, nan.Equal(nan), "NaN symbols compare by bit pattern")

	m := map[Key]int{a.Key(): 0}
	_, ok := m[b.Key()]
	assert.True(t, ok)
}

func TestFromValue(t *testing.T) {
	negZero := math.Copysign(0, -1)

	testCases := []struct {
		name string
		in   any
		want Symbol
	}{
		{"int", 1, NewDualInt(1, "1")},
		{"int64 zero", int64(0), NewDualInt(0, "0")},
		{"int32 max", int64(2147483647), NewDualInt(2147483647, "2147483647")},
		{"int32 min", int64(-2147483648), NewDualInt(-2147483648, "-2147483648")},
		{"above int32", int64(2147483648), NewDualDouble(2147483648, "2147483648")},
		{"below int32", int64(-2147483649), NewDualDouble(-2147483649, "-2147483649")},
		{"uint64 huge", uint64(math.MaxUint64), NewDualDouble(float64(uint64(math.MaxUint64)), "18446744073709551615")},
		{"whole float", 2.0, NewDualInt(2, "2")},
		{"fraction", 1.5, NewDualDouble(1.5, "1.5")},
		{"negative zero", negZero, NewDualDouble(negZero, "-0")},
		{"large magnitude", 8.45e86, NewDualDouble(8.45e86, "8.45e+86")},
		{"tiny magnitude", 1.23e-30, NewDualDouble(1.23e-30, "1.23e-30")},
		{"string", "abc", NewString("abc")},
		{"string number", "1", NewString("1")},
		{"empty string", "", NewString("")},
		{"bool", true, NewString("true")},
		{"bytes", []byte("raw"), NewString("raw")},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), NewString("2024-01-02T03:04:05Z")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FromValue(tc.in)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "want %v, got %v", tc.want, got)
		})
	}

	_, ok := FromValue(nil)
	assert.False(t, ok)
}

func TestSymbol_ValueRoundTrip(t *testing.T) {
	negZero := math.Copysign(0, -1)

	testCases := []struct {
		name string
		in   any
		want any
	}{
		{"int", int64(42), int64(42)},
		{"int32 boundary", int64(2147483647), int64(2147483647)},
		{"past int32 boundary", int64(2147483648), int64(2147483648)},
		{"negative past boundary", int64(-2147483649), int64(-2147483649)},
		{"max int64", int64(math.MaxInt64), int64(math.MaxInt64)},
		{"fraction", 3.25, 3.25},
		{"large magnitude", 8.45e86, 8.45e86},
		{"tiny magnitude", 1.23e-30, 1.23e-30},
		{"whole float becomes int", 2.0, int64(2)},
		{"string", "hello", "hello"},
		{"string zero stays string", "0", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sym, ok := FromValue(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want, sym.Value())
		})
	}

	t.Run("negative zero keeps sign", func(t *testing.T) {
		sym, ok := FromValue(negZero)
		require.True(t, ok)
		got, isFloat := sym.Value().(float64)
		require.True(t, isFloat)
		assert.True(t, math.Signbit(got))
	})
}

func TestSymbol_ValueKeepsNonCanonicalDuals(t *testing.T) {
	testCases := []struct {
		name string
		sym  Symbol
		want any
	}{
		{"canonical dual int", NewDualInt(7, "7"), int64(7)},
		{"canonical dual double", NewDualDouble(0.5, "0.5"), 0.5},
		{"month name", NewDualInt(1, "Jan"), NewDualInt(1, "Jan")},
		{"padded int", NewDualInt(1, "01"), NewDualInt(1, "01")},
		{"empty display", NewDualInt(0, ""), NewDualInt(0, "")},
		{"formatted date", NewDualDouble(45292, "2024-01-01"), NewDualDouble(45292, "2024-01-01")},
		{"decimal comma", NewDualDouble(2.5, "2,5"), NewDualDouble(2.5, "2,5")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.sym.Value()
			assert.Equal(t, tc.want, got)

			again, ok := FromValue(got)
			require.True(t, ok)
			assert.True(t, again.Equal(tc.sym), "got %v", again)
		})
	}

	_, ok := FromValue(Symbol{})
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0.1", FormatNumber(0.1))
	assert.Equal(t, "123456789012", FormatNumber(123456789012))
	assert.Equal(t, "1e+21", FormatNumber(1e21))
	assert.Equal(t, "1e-07", FormatNumber(1e-7))
	assert.Equal(t, "NaN", FormatNumber(math.NaN()))
	assert.Equal(t, "Infinity", FormatNumber(math.Inf(1)))
	assert.Equal(t, "-Infinity", FormatNumber(math.Inf(-1)))
}
