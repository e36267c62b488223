package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is a stable, machine-readable identifier for an error class.
type Code string

const (
	CodeParse      Code = "QVD_PARSE_ERROR"
	CodeValidation Code = "QVD_VALIDATION_ERROR"
	CodeIO         Code = "QVD_IO_ERROR"
	CodeCorrupted  Code = "QVD_CORRUPTED"
	CodeSecurity   Code = "QVD_SECURITY_ERROR"
)

// Sentinels for errors.Is. Every typed error below matches exactly one of them.
var (
	ErrParse      = errors.New("qvd: parse error")
	ErrValidation = errors.New("qvd: validation error")
	ErrIO         = errors.New("qvd: i/o error")
	ErrCorrupted  = errors.New("qvd: data is corrupted")
	ErrSecurity   = errors.New("qvd: security violation")
)

// Context keys shared by every package that builds an error.
const (
	CtxField      = "field"
	CtxFile       = "file"
	CtxStage      = "stage"
	CtxOffset     = "offset"
	CtxLength     = "length"
	CtxBufferSize = "buffer_size"
	CtxValue      = "value"
	CtxMax        = "max"
	CtxMin        = "min"
	CtxIndex      = "index"
	CtxReason     = "reason"
	CtxPath       = "path"
	CtxAvailable  = "available"
	CtxTypeByte   = "type_byte"
	CtxRecord     = "record"
)

// BaseError carries the fields common to every error class.
type BaseError struct {
	code    Code
	Message string
	Context map[string]any
	Cause   error
}

func (e *BaseError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Context[k])
		}
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Code returns the stable error code.
func (e *BaseError) Code() Code { return e.code }

func (e *BaseError) Unwrap() error { return e.Cause }

// With returns a copy of ctx extended with key=value. It never mutates ctx.
func With(ctx map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		out[k] = v
	}
	out[key] = value
	return out
}

// ParseError reports a header or symbol type byte that cannot be interpreted.
type ParseError struct{ BaseError }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError reports a caller-supplied argument or precondition violation.
type ValidationError struct{ BaseError }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IOError wraps a filesystem failure. Callers may retry.
type IOError struct{ BaseError }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// CorruptedError reports header geometry or payload bytes that fail validation.
type CorruptedError struct{ BaseError }

func (e *CorruptedError) Is(target error) bool { return target == ErrCorrupted }

// SecurityError reports a rejected path. Context never includes file contents.
type SecurityError struct{ BaseError }

func (e *SecurityError) Is(target error) bool { return target == ErrSecurity }

func NewParseError(msg string, ctx map[string]any, cause error) *ParseError {
	return &ParseError{BaseError{code: CodeParse, Message: msg, Context: ctx, Cause: cause}}
}

func NewValidationError(msg string, ctx map[string]any) *ValidationError {
	return &ValidationError{BaseError{code: CodeValidation, Message: msg, Context: ctx}}
}

func NewIOError(msg string, ctx map[string]any, cause error) *IOError {
	return &IOError{BaseError{code: CodeIO, Message: msg, Context: ctx, Cause: cause}}
}

func NewCorruptedError(msg string, ctx map[string]any) *CorruptedError {
	return &CorruptedError{BaseError{code: CodeCorrupted, Message: msg, Context: ctx}}
}

func NewSecurityError(msg string, ctx map[string]any) *SecurityError {
	return &SecurityError{BaseError{code: CodeSecurity, Message: msg, Context: ctx}}
}

// IsCorrupted checks if an error, or any error in its chain, is a CorruptedError.
func IsCorrupted(err error) bool {
	var corrupted *CorruptedError
	return errors.As(err, &corrupted)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

// IsSecurityError checks if an error is a SecurityError.
func IsSecurityError(err error) bool {
	var securityError *SecurityError
	return errors.As(err, &securityError)
}

// ContextOf returns the context map of any error class in err's chain, or nil.
func ContextOf(err error) map[string]any {
	type contextual interface{ contextMap() map[string]any }
	var c contextual
	if errors.As(err, &c) {
		return c.contextMap()
	}
	return nil
}

func (e *BaseError) contextMap() map[string]any { return e.Context }

// CodeOf returns the error code of err, or "" when err is not a codec error.
func CodeOf(err error) Code {
	type coded interface{ Code() Code }
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
