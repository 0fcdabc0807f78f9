package propx

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Known value kinds.
const (
	KindOpaque Kind = iota
	KindText
	KindInteger
	KindFloat
	KindDecimal
	KindBoolean
	KindSequence
)

var kindNames = [...]string{
	KindOpaque:   "opaque",
	KindText:     "text",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindBoolean:  "boolean",
	KindSequence: "sequence",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a raw configuration value as held by a store.
// The kind is assigned once when the value enters the store, conversions
// match on it instead of probing Go types.
type Value struct {
	kind    Kind
	text    string
	b       bool
	payload any
	seq     []Value
}

// Text wraps a string.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Boolean wraps a bool.
func Boolean(b bool) Value {
	return Value{kind: KindBoolean, b: b}
}

// Integer wraps a fixed-size Go integer.
func Integer[T int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64](n T) Value {
	return Value{kind: KindInteger, payload: n}
}

// BigInteger wraps an arbitrary-precision integer. A nil pointer yields an opaque nil value.
func BigInteger(n *big.Int) Value {
	if n == nil {
		return Opaque(nil)
	}
	return Value{kind: KindInteger, payload: n}
}

// Float wraps a float32 or float64.
func Float[T float32 | float64](f T) Value {
	return Value{kind: KindFloat, payload: f}
}

// Decimal wraps an arbitrary-precision decimal. A nil pointer yields an opaque nil value.
func Decimal(d *apd.Decimal) Value {
	if d == nil {
		return Opaque(nil)
	}
	return Value{kind: KindDecimal, payload: d}
}

// Sequence builds a sequence value; the given elements are copied.
func Sequence(elems ...Value) Value {
	seq := make([]Value, len(elems))
	copy(seq, elems)
	return Value{kind: KindSequence, seq: seq}
}

// Opaque wraps a value that is neither textual, numeric, boolean nor a sequence.
func Opaque(v any) Value {
	return Value{kind: KindOpaque, payload: v}
}

// Of classifies an arbitrary Go value. Slices of supported element
// types and []any become sequences.
func Of(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case *apd.Decimal:
		return Decimal(x)
	case *big.Int:
		return BigInteger(x)
	case bool:
		return Boolean(x)
	case int:
		return Integer(x)
	case int8:
		return Integer(x)
	case int16:
		return Integer(x)
	case int32:
		return Integer(x)
	case int64:
		return Integer(x)
	case uint:
		return Integer(x)
	case uint8:
		return Integer(x)
	case uint16:
		return Integer(x)
	case uint32:
		return Integer(x)
	case uint64:
		return Integer(x)
	case float32:
		return Float(x)
	case float64:
		return Float(x)
	case []Value:
		return Sequence(x...)
	case []any:
		return sequenceOf(x)
	case []string:
		return sequenceOf(x)
	case []int:
		return sequenceOf(x)
	case []int64:
		return sequenceOf(x)
	case []float64:
		return sequenceOf(x)
	case []bool:
		return sequenceOf(x)
	default:
		return Opaque(v)
	}
}

func sequenceOf[T any](items []T) Value {
	seq := make([]Value, len(items))
	for i, item := range items {
		seq[i] = Of(item)
	}
	return Value{kind: KindSequence, seq: seq}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNumeric reports whether v holds an integer, float or decimal.
func (v Value) IsNumeric() bool {
	return v.kind == KindInteger || v.kind == KindFloat || v.kind == KindDecimal
}

// Len returns the number of elements of a sequence, 0 for anything else.
func (v Value) Len() int {
	return len(v.seq)
}

// Index returns the i-th element of a sequence.
func (v Value) Index(i int) Value {
	return v.seq[i]
}

// Values returns a copy of the elements of a sequence.
func (v Value) Values() []Value {
	if v.kind != KindSequence {
		return nil
	}
	out := make([]Value, len(v.seq))
	copy(out, v.seq)
	return out
}

// Interface returns the underlying Go value: string, bool, the stored
// numeric type, []any for sequences or the opaque payload.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindBoolean:
		return v.b
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Interface()
		}
		return out
	default:
		return v.payload
	}
}

// String renders the value as text. Sequences are rendered comma separated.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindInteger:
		return fmt.Sprint(v.payload)
	case KindFloat:
		switch f := v.payload.(type) {
		case float32:
			return strconv.FormatFloat(float64(f), 'g', -1, 32)
		case float64:
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case KindDecimal:
		return v.payload.(*apd.Decimal).Text('f')
	case KindSequence:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.String()
		}
		return strings.Join(parts, ", ")
	}
	if v.payload == nil {
		return ""
	}
	return fmt.Sprint(v.payload)
}
