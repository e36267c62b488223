package core

// This file centralizes constants related to the QVD on-disk layout and the
// limits enforced while reading it.

// --- Layout ---

// HeaderDelimiter separates the XML header from the binary payload.
var HeaderDelimiter = []byte{0x0D, 0x0A, 0x00}

// HeaderDelimiterLen is the length of HeaderDelimiter.
const HeaderDelimiterLen = 3

// DelimiterNotFound is returned by the delimiter search when no delimiter exists.
// A delimiter at offset 0 is valid, so 0 cannot double as "absent".
const DelimiterNotFound = -1

// --- Symbol type bytes ---
const (
	SymbolTypeInt        byte = 1
	SymbolTypeDouble     byte = 2
	SymbolTypeString     byte = 4
	SymbolTypeDualInt    byte = 5
	SymbolTypeDualDouble byte = 6
)

// --- Widths ---
const (
	IntSize    = 4 // int32, little-endian
	DoubleSize = 8 // float64, little-endian
)

// NullBias is the Bias recorded for a column whose index values are shifted to
// make room for null.
const NullBias = -2

// NullIndexShift is the amount added to dictionary positions of a column with
// NullBias before they are bit-packed.
const NullIndexShift = 2

// --- Limits ---
const (
	// MaxStringLength caps a single symbol string payload.
	MaxStringLength = 1 << 20 // 1 MiB
	// MaxRecordByteSize caps the declared width of one index-table record.
	MaxRecordByteSize = 1 << 20 // 1 MiB
	// MaxIndexTableOverrun is how far a declared index-table length may exceed
	// the physical buffer before it is treated as hostile rather than truncated.
	MaxIndexTableOverrun = 100 << 20 // 100 MiB
	// MaxBitWidth is the widest per-field bit slice the decoder will extract.
	MaxBitWidth = 64
	// MaxHeaderSize bounds how much of a file the delimiter scan accumulates.
	MaxHeaderSize = 64 << 20 // 64 MiB
)

// DefaultChunkSize is the read size used while scanning for the header delimiter.
const DefaultChunkSize = 64 * 1024

// --- Processing stages (error context and progress reporting) ---
const (
	StageHeader      = "header"
	StageSymbolTable = "symbol-table"
	StageIndexTable  = "index-table"
	StageWrite       = "write"
	StageRead        = "read"
	StagePath        = "path"
)

// Header defaults used when a table was not loaded from a file.
const (
	DefaultBuildNo          = "50699"
	DefaultNumberFormatType = "UNKNOWN"
	HeaderTimeLayout        = "2006-01-02 15:04:05"
)
