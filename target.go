package propx

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetKind enumerates the representations a value can be converted to.
type TargetKind uint8

// Supported conversion targets. TargetInvalid is the zero value and is rejected by Convert.
const (
	TargetInvalid TargetKind = iota
	TargetInt8
	TargetInt16
	TargetInt32
	TargetInt64
	TargetBigInt
	TargetFloat32
	TargetFloat64
	TargetDecimal
	TargetBool
	TargetText
	TargetSequence
)

var targetNames = map[TargetKind]string{
	TargetInt8:     "int8",
	TargetInt16:    "int16",
	TargetInt32:    "int32",
	TargetInt64:    "int64",
	TargetBigInt:   "bigint",
	TargetFloat32:  "float32",
	TargetFloat64:  "float64",
	TargetDecimal:  "decimal",
	TargetBool:     "bool",
	TargetText:     "string",
	TargetSequence: "list",
}

func (k TargetKind) String() string {
	if name, ok := targetNames[k]; ok {
		return name
	}
	return "target(" + strconv.Itoa(int(k)) + ")"
}

// Target describes the requested result of a conversion.
// Sequence targets also carry the element target and the delimiter used
// to split textual input.
type Target struct {
	Kind  TargetKind
	elem  *Target
	delim rune
}

// Scalar targets.
var (
	Int8       = Target{Kind: TargetInt8}
	Int16      = Target{Kind: TargetInt16}
	Int32      = Target{Kind: TargetInt32}
	Int64      = Target{Kind: TargetInt64}
	BigInt     = Target{Kind: TargetBigInt}
	Float32    = Target{Kind: TargetFloat32}
	Float64    = Target{Kind: TargetFloat64}
	BigDecimal = Target{Kind: TargetDecimal}
	Bool       = Target{Kind: TargetBool}
	String     = Target{Kind: TargetText}
)

// SequenceOf returns a sequence target whose elements convert to elem.
func SequenceOf(elem Target) Target {
	e := elem
	return Target{Kind: TargetSequence, elem: &e}
}

// WithDelimiter returns a copy of t splitting textual input by d.
func (t Target) WithDelimiter(d rune) Target {
	t.delim = d
	return t
}

// Elem returns the element target of a sequence target. It defaults to String.
func (t Target) Elem() Target {
	if t.elem == nil {
		return String
	}
	return *t.elem
}

// Delimiter returns the delimiter used to split textual input.
func (t Target) Delimiter() rune {
	if t.delim == 0 {
		return DefaultDelimiter
	}
	return t.delim
}

func (t Target) String() string {
	if t.Kind == TargetSequence {
		return "[]" + t.Elem().String()
	}
	return t.Kind.String()
}

// supported reports whether t and, for sequences, its element targets are known.
func (t Target) supported() bool {
	if _, ok := targetNames[t.Kind]; !ok {
		return false
	}
	if t.Kind == TargetSequence && t.elem != nil {
		return t.elem.supported()
	}
	return true
}

// ParseTarget parses a target name as rendered by Target.String.
// "list" is a shorthand for "[]string".
func ParseTarget(name string) (Target, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "list" {
		return SequenceOf(String), nil
	}
	if elem, ok := strings.CutPrefix(name, "[]"); ok {
		t, err := ParseTarget(elem)
		if err != nil {
			return Target{}, err
		}
		return SequenceOf(t), nil
	}
	for kind, n := range targetNames {
		if n == name && kind != TargetSequence {
			return Target{Kind: kind}, nil
		}
	}
	return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedTarget, name)
}
