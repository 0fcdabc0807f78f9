package envx

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
	// ErrRequired indicates that required value is missing
	ErrRequired = ErrorCode("value is required")
	// ErrEmpty indicates that value is empty
	ErrEmpty = ErrorCode("value is empty")
	// ErrInvalidValue indicates that given value is not valid
	ErrInvalidValue = ErrorCode("invalid value")
)

// Error provides error details
type Error struct {
	VarName string
	Reason  string
	Cause   error
}

func (e Error) Error() string {
	sb := new(strings.Builder)
	sb.WriteString(fmt.Sprintf("variable %q", e.VarName))
	if e.Reason != "" {
		sb.WriteString(" " + e.Reason)
	}
	if e.Cause != nil {
		sb.WriteString(": " + e.Cause.Error())
	}
	return sb.String()
}

func (e Error) Unwrap() error {
	return e.Cause
}

// invalid builds an Error caused by ErrInvalidValue.
func invalid(name string, format string, args ...any) Error {
	return Error{
		VarName: name,
		Reason:  fmt.Sprintf(format, args...),
		Cause:   ErrInvalidValue,
	}
}

// mustBe reports that the value of v is not a valid kind.
func mustBe(v *Variable, kind string) Error {
	return invalid(v.Name, "must be a valid %s value, got '%s'", kind, v.Val)
}
