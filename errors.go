package propx

import (
	"fmt"
	"strings"
)

// ErrorCode defines string error
type ErrorCode string

// ErrorCode returns error message
func (e ErrorCode) Error() string {
	return string(e)
}

const (
	// ErrCyclicReference indicates that a variable references itself, directly or transitively
	ErrCyclicReference = ErrorCode("cyclic variable reference")
	// ErrConversion indicates that a value cannot be converted to the requested target
	ErrConversion = ErrorCode("conversion failed")
	// ErrUnsupportedTarget indicates that the requested target kind is not known
	ErrUnsupportedTarget = ErrorCode("unsupported conversion target")
)

// CyclicReferenceError reports the variable that closed a reference cycle
// together with the chain of names that led to it.
type CyclicReferenceError struct {
	Name string
	Path []string
}

func (e *CyclicReferenceError) Error() string {
	chain := append(append([]string(nil), e.Path...), e.Name)
	return fmt.Sprintf("%s: %s", ErrCyclicReference, strings.Join(chain, " -> "))
}

func (e *CyclicReferenceError) Unwrap() error {
	return ErrCyclicReference
}

// ConversionError provides details of a failed conversion
type ConversionError struct {
	Value  string
	Target Target
	Reason string
	Cause  error
}

func (e *ConversionError) Error() string {
	sb := new(strings.Builder)
	sb.WriteString(fmt.Sprintf("cannot convert %q to %s", e.Value, e.Target))
	if e.Reason != "" {
		sb.WriteString(": " + e.Reason)
	}
	if e.Cause != nil {
		sb.WriteString(": " + e.Cause.Error())
	}
	return sb.String()
}

func (e *ConversionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConversion}
	}
	return []error{ErrConversion, e.Cause}
}

func conversionError(v Value, t Target, reason string, cause error) error {
	return &ConversionError{Value: v.String(), Target: t, Reason: reason, Cause: cause}
}
