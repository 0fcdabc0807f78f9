package propx

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

var (
	errInvalidNumber  = errors.New("invalid number")
	errOutOfRange     = errors.New("value out of range")
	errInvalidBoolean = errors.New("invalid boolean")
	errNotConvertible = errors.New("value kind cannot be converted")
)

// Convert coerces v into the representation requested by t.
//
// Numeric values are authoritative: they are returned as they are for every
// scalar target, no narrowing or widening happens here (see ToInt32 and
// friends for explicit narrowing). Text is trimmed and parsed; the prefixes
// 0x, 0X and # select base 16 and a leading 0 followed by digits selects
// base 8. Sequence targets split textual input by the target's delimiter
// and convert every element.
func Convert(v Value, t Target) (Value, error) {
	if !t.supported() {
		return Value{}, conversionError(v, t, "", ErrUnsupportedTarget)
	}

	switch t.Kind {
	case TargetSequence:
		return toSequence(v, t)
	case TargetText:
		return Text(substitution(v)), nil
	}

	if v.IsNumeric() {
		return v, nil
	}

	switch t.Kind {
	case TargetInt8, TargetInt16, TargetInt32, TargetInt64, TargetBigInt:
		return toInteger(v, t)
	case TargetFloat32, TargetFloat64:
		return toFloat(v, t)
	case TargetDecimal:
		return toDecimal(v, t)
	default:
		return toBool(v, t)
	}
}

func toInteger(v Value, t Target) (Value, error) {
	if v.kind != KindText {
		return Value{}, conversionError(v, t, v.kind.String(), errNotConvertible)
	}

	n, err := parseInteger(v.text)
	if err != nil {
		return Value{}, conversionError(v, t, "", err)
	}
	if t.Kind == TargetBigInt {
		return BigInteger(n), nil
	}
	if !fitsBits(n, bitsOf(t.Kind)) {
		return Value{}, conversionError(v, t, "", errOutOfRange)
	}

	x := n.Int64()
	switch t.Kind {
	case TargetInt8:
		return Integer(int8(x)), nil
	case TargetInt16:
		return Integer(int16(x)), nil
	case TargetInt32:
		return Integer(int32(x)), nil
	default:
		return Integer(x), nil
	}
}

func toFloat(v Value, t Target) (Value, error) {
	if v.kind != KindText {
		return Value{}, conversionError(v, t, v.kind.String(), errNotConvertible)
	}

	bits := bitsOf(t.Kind)
	s := strings.TrimSpace(v.text)
	var f float64
	if radixPrefixed(s) {
		n, err := parseInteger(s)
		if err != nil {
			return Value{}, conversionError(v, t, "", err)
		}
		var acc big.Accuracy
		if bits == 32 {
			var f32 float32
			f32, acc = new(big.Float).SetInt(n).Float32()
			f = float64(f32)
		} else {
			f, acc = new(big.Float).SetInt(n).Float64()
		}
		if math.IsInf(f, 0) && acc != big.Exact {
			return Value{}, conversionError(v, t, "", errOutOfRange)
		}
	} else {
		var err error
		f, err = strconv.ParseFloat(s, bits)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return Value{}, conversionError(v, t, "", errOutOfRange)
			}
			return Value{}, conversionError(v, t, "", errInvalidNumber)
		}
	}

	if bits == 32 {
		return Float(float32(f)), nil
	}
	return Float(f), nil
}

func toDecimal(v Value, t Target) (Value, error) {
	if v.kind != KindText {
		return Value{}, conversionError(v, t, v.kind.String(), errNotConvertible)
	}

	s := strings.TrimSpace(v.text)
	if radixPrefixed(s) {
		n, err := parseInteger(s)
		if err != nil {
			return Value{}, conversionError(v, t, "", err)
		}
		s = n.String()
	}

	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return Value{}, conversionError(v, t, "", errInvalidNumber)
	}
	return Decimal(d), nil
}

func toBool(v Value, t Target) (Value, error) {
	switch v.kind {
	case KindBoolean:
		return v, nil
	case KindText:
		switch strings.ToLower(strings.TrimSpace(v.text)) {
		case "true", "yes", "on", "y", "t", "1":
			return Boolean(true), nil
		case "false", "no", "off", "n", "f", "0":
			return Boolean(false), nil
		}
		return Value{}, conversionError(v, t, "", errInvalidBoolean)
	default:
		return Value{}, conversionError(v, t, v.kind.String(), errNotConvertible)
	}
}

// toSequence decomposes v the same way Elements does and converts every item.
func toSequence(v Value, t Target) (Value, error) {
	elem := t.Elem()

	out := make([]Value, 0)
	var convErr error
	walk(v, t.Delimiter(), func(item Value) bool {
		converted, err := Convert(item, elem)
		if err != nil {
			convErr = err
			return false
		}
		out = append(out, converted)
		return true
	})
	if convErr != nil {
		return Value{}, convErr
	}
	return Value{kind: KindSequence, seq: out}, nil
}

// parseInteger parses an optionally signed integer honoring radix prefixes.
func parseInteger(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "#"):
		base, s = 16, s[1:]
	case len(s) > 1 && s[0] == '0' && isDigits(s[1:]):
		base, s = 8, s[1:]
	}

	if s == "" || s[0] == '+' || s[0] == '-' {
		return nil, errInvalidNumber
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, errInvalidNumber
	}
	if negative {
		n.Neg(n)
	}
	return n, nil
}

func radixPrefixed(s string) bool {
	s = strings.TrimLeft(s, "+-")
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"), strings.HasPrefix(s, "#"):
		return true
	default:
		return len(s) > 1 && s[0] == '0' && isDigits(s[1:])
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func bitsOf(k TargetKind) int {
	switch k {
	case TargetInt8:
		return 8
	case TargetInt16:
		return 16
	case TargetInt32, TargetFloat32:
		return 32
	default:
		return 64
	}
}

func fitsBits(n *big.Int, bits int) bool {
	if !n.IsInt64() {
		return false
	}
	x := n.Int64()
	lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
	if bits == 64 {
		lo, hi = math.MinInt64, math.MaxInt64
	}
	return x >= lo && x <= hi
}
