// Package symbol implements the QVD dictionary entry: a tagged union of a
// pure integer, a pure double, a pure string, or a dual value carrying a
// number together with its display string.
//
// # Encoding
//
// Every symbol is written as a type byte followed by its payload. All
// numbers are little-endian.
//
//	1  int32
//	2  float64
//	4  UTF-8 string, NUL-terminated
//	5  int32   + UTF-8 string, NUL-terminated
//	6  float64 + UTF-8 string, NUL-terminated
//
// Type byte 3 is reserved and never produced or accepted.
package symbol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/INLOpen/qvd/core"
)

// Kind identifies which of the five shapes a Symbol holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindDouble
	KindString
	KindDualInt
	KindDualDouble
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDualInt:
		return "dual-int"
	case KindDualDouble:
		return "dual-double"
	default:
		return "invalid"
	}
}

// TypeByte returns the on-disk tag for k, or 0 for KindInvalid.
func (k Kind) TypeByte() byte {
	switch k {
	case KindInt:
		return core.SymbolTypeInt
	case KindDouble:
		return core.SymbolTypeDouble
	case KindString:
		return core.SymbolTypeString
	case KindDualInt:
		return core.SymbolTypeDualInt
	case KindDualDouble:
		return core.SymbolTypeDualDouble
	default:
		return 0
	}
}

// Symbol is an immutable dictionary entry. The zero value is KindInvalid.
type Symbol struct {
	kind Kind
	i    int32
	d    float64
	s    string
}

func NewInt(v int32) Symbol { return Symbol{kind: KindInt, i: v} }

func NewDouble(v float64) Symbol { return Symbol{kind: KindDouble, d: v} }

func NewString(v string) Symbol { return Symbol{kind: KindString, s: v} }

func NewDualInt(v int32, s string) Symbol { return Symbol{kind: KindDualInt, i: v, s: s} }

func NewDualDouble(v float64, s string) Symbol { return Symbol{kind: KindDualDouble, d: v, s: s} }

func (s Symbol) Kind() Kind { return s.kind }

// Int returns the integer slot and whether the shape populates it.
func (s Symbol) Int() (int32, bool) {
	return s.i, s.kind == KindInt || s.kind == KindDualInt
}

// Double returns the double slot and whether the shape populates it.
func (s Symbol) Double() (float64, bool) {
	return s.d, s.kind == KindDouble || s.kind == KindDualDouble
}

// Str returns the string slot and whether the shape populates it.
func (s Symbol) Str() (string, bool) {
	return s.s, s.kind == KindString || s.kind == KindDualInt || s.kind == KindDualDouble
}

// PrimaryValue returns the display value: the string slot when present,
// else the integer, else the double. It returns nil for an invalid symbol.
func (s Symbol) PrimaryValue() any {
	if v, ok := s.Str(); ok {
		return v
	}
	if v, ok := s.Int(); ok {
		return v
	}
	if v, ok := s.Double(); ok {
		return v
	}
	return nil
}

// Equal reports structural equality across all three slots. Doubles compare
// by bit pattern so 0.0 and -0.0 are distinct and NaN equals itself.
func (s Symbol) Equal(o Symbol) bool {
	return s.kind == o.kind &&
		s.i == o.i &&
		math.Float64bits(s.d) == math.Float64bits(o.d) &&
		s.s == o.s
}

// Key returns a comparable form of s usable as a map key. Two symbols have
// the same Key exactly when Equal reports true.
func (s Symbol) Key() Key {
	return Key{kind: s.kind, i: s.i, bits: math.Float64bits(s.d), s: s.s}
}

// Key is the hashable identity of a Symbol.
type Key struct {
	kind Kind
	i    int32
	bits uint64
	s    string
}

// EncodedLen returns the number of bytes AppendTo will write.
func (s Symbol) EncodedLen() int {
	switch s.kind {
	case KindInt:
		return 1 + core.IntSize
	case KindDouble:
		return 1 + core.DoubleSize
	case KindString:
		return 1 + len(s.s) + 1
	case KindDualInt:
		return 1 + core.IntSize + len(s.s) + 1
	case KindDualDouble:
		return 1 + core.DoubleSize + len(s.s) + 1
	default:
		return 0
	}
}

// AppendTo appends the encoded symbol to dst. It panics on an invalid
// symbol: constructing bytes from an empty shape is a programming error.
func (s Symbol) AppendTo(dst []byte) []byte {
	switch s.kind {
	case KindInt:
		dst = append(dst, core.SymbolTypeInt)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(s.i))
	case KindDouble:
		dst = append(dst, core.SymbolTypeDouble)
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(s.d))
	case KindString:
		dst = append(dst, core.SymbolTypeString)
		dst = append(dst, s.s...)
		dst = append(dst, 0)
	case KindDualInt:
		dst = append(dst, core.SymbolTypeDualInt)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(s.i))
		dst = append(dst, s.s...)
		dst = append(dst, 0)
	case KindDualDouble:
		dst = append(dst, core.SymbolTypeDualDouble)
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(s.d))
		dst = append(dst, s.s...)
		dst = append(dst, 0)
	default:
		panic("symbol: cannot encode a symbol with no populated shape")
	}
	return dst
}

// Bytes returns the encoded symbol.
func (s Symbol) Bytes() []byte {
	return s.AppendTo(make([]byte, 0, s.EncodedLen()))
}

func (s Symbol) String() string {
	switch s.kind {
	case KindInt:
		return fmt.Sprintf("int(%d)", s.i)
	case KindDouble:
		return fmt.Sprintf("double(%v)", s.d)
	case KindString:
		return fmt.Sprintf("string(%q)", s.s)
	case KindDualInt:
		return fmt.Sprintf("dual-int(%d, %q)", s.i, s.s)
	case KindDualDouble:
		return fmt.Sprintf("dual-double(%v, %q)", s.d, s.s)
	default:
		return "invalid"
	}
}
