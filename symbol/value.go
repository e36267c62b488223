package symbol

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// class is the closed set of decisions made for a raw cell value.
type class uint8

const (
	classNull class = iota
	classInteger
	classNumber
	classOther
)

// classify resolves a raw value once into integer / non-integer number /
// other. Whole-valued floats inside the int32 range count as integers;
// negative zero never does so its sign survives.
func classify(v any) (c class, i int64, f float64, s string) {
	switch x := v.(type) {
	case nil:
		return classNull, 0, 0, ""
	case int:
		return classInteger, int64(x), 0, ""
	case int8:
		return classInteger, int64(x), 0, ""
	case int16:
		return classInteger, int64(x), 0, ""
	case int32:
		return classInteger, int64(x), 0, ""
	case int64:
		return classInteger, x, 0, ""
	case uint8:
		return classInteger, int64(x), 0, ""
	case uint16:
		return classInteger, int64(x), 0, ""
	case uint32:
		return classInteger, int64(x), 0, ""
	case uint:
		if uint64(x) > math.MaxInt64 {
			return classNumber, 0, float64(x), strconv.FormatUint(uint64(x), 10)
		}
		return classInteger, int64(x), 0, ""
	case uint64:
		if x > math.MaxInt64 {
			return classNumber, 0, float64(x), strconv.FormatUint(x, 10)
		}
		return classInteger, int64(x), 0, ""
	case float32:
		return classifyFloat(float64(x))
	case float64:
		return classifyFloat(x)
	case string:
		return classOther, 0, 0, x
	case []byte:
		return classOther, 0, 0, string(x)
	case bool:
		return classOther, 0, 0, strconv.FormatBool(x)
	case time.Time:
		return classOther, 0, 0, x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return classOther, 0, 0, x.String()
	default:
		return classOther, 0, 0, fmt.Sprint(x)
	}
}

func classifyFloat(f float64) (class, int64, float64, string) {
	if isWhole(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f)) {
		return classInteger, int64(f), 0, ""
	}
	return classNumber, 0, f, FormatNumber(f)
}

func isWhole(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Trunc(f) == f
}

// FromValue converts a raw cell value to its dictionary symbol. Integers in
// the int32 range become dual-int; other numbers become dual-double; any
// other value becomes a pure string. A Symbol is kept as is. It reports
// false for nil and for an invalid Symbol.
func FromValue(v any) (Symbol, bool) {
	if sym, ok := v.(Symbol); ok {
		return sym, sym.kind != KindInvalid
	}
	c, i, f, s := classify(v)
	switch c {
	case classNull:
		return Symbol{}, false
	case classInteger:
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return NewDualInt(int32(i), strconv.FormatInt(i, 10)), true
		}
		return NewDualDouble(float64(i), strconv.FormatInt(i, 10)), true
	case classNumber:
		return NewDualDouble(f, s), true
	default:
		return NewString(s), true
	}
}

// FormatNumber renders f the way the display slot of a dual value expects:
// plain decimal notation for ordinary magnitudes and exponent notation for
// very large or very small ones.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Value returns the native cell value for s: int64 for integer shapes,
// float64 for double shapes and string for pure strings. A dual-double whose
// string slot is the exact integer rendering of its number yields int64,
// which is how integers outside the int32 range round-trip. A dual whose
// string slot is not the canonical rendering of its number (a month name, a
// formatted date) yields s itself so both slots survive a rewrite. An
// invalid symbol yields nil.
func (s Symbol) Value() any {
	switch s.kind {
	case KindInt:
		return int64(s.i)
	case KindDualInt:
		if s.s == strconv.FormatInt(int64(s.i), 10) {
			return int64(s.i)
		}
		return s
	case KindDouble:
		return s.d
	case KindDualDouble:
		if n, ok := integerLiteral(s.s); ok && float64(n) == s.d && !(n == 0 && math.Signbit(s.d)) {
			return n
		}
		if s.s == FormatNumber(s.d) {
			return s.d
		}
		return s
	case KindString:
		return s.s
	default:
		return nil
	}
}

func integerLiteral(str string) (int64, bool) {
	if str == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != str {
		return 0, false
	}
	return n, true
}
