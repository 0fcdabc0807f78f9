package propx

import (
	"errors"
	"math"
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

var errNotIntegral = errors.New("value has a fractional part")

// ToInt8 converts v and narrows the result to int8.
func ToInt8(v Value) (int8, error) {
	n, err := toFixedInt(v, Int8)
	return int8(n), err
}

// ToInt16 converts v and narrows the result to int16.
func ToInt16(v Value) (int16, error) {
	n, err := toFixedInt(v, Int16)
	return int16(n), err
}

// ToInt32 converts v and narrows the result to int32.
func ToInt32(v Value) (int32, error) {
	n, err := toFixedInt(v, Int32)
	return int32(n), err
}

// ToInt64 converts v and narrows the result to int64.
func ToInt64(v Value) (int64, error) {
	return toFixedInt(v, Int64)
}

// ToBigInt converts v to an arbitrary-precision integer.
func ToBigInt(v Value) (*big.Int, error) {
	r, err := Convert(v, BigInt)
	if err != nil {
		return nil, err
	}
	return integral(r, BigInt)
}

// ToFloat64 converts v to float64.
func ToFloat64(v Value) (float64, error) {
	r, err := Convert(v, Float64)
	if err != nil {
		return 0, err
	}
	return floating(r, Float64)
}

// ToFloat32 converts v to float32, failing when the magnitude does not fit.
func ToFloat32(v Value) (float32, error) {
	r, err := Convert(v, Float32)
	if err != nil {
		return 0, err
	}
	f, err := floating(r, Float32)
	if err != nil {
		return 0, err
	}
	if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, conversionError(v, Float32, "", errOutOfRange)
	}
	return float32(f), nil
}

// ToDecimal converts v to an arbitrary-precision decimal.
func ToDecimal(v Value) (*apd.Decimal, error) {
	r, err := Convert(v, BigDecimal)
	if err != nil {
		return nil, err
	}

	switch r.kind {
	case KindDecimal:
		return r.payload.(*apd.Decimal), nil
	case KindInteger:
		n, err := integral(r, BigDecimal)
		if err != nil {
			return nil, err
		}
		return apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(n), 0), nil
	default:
		f, err := floating(r, BigDecimal)
		if err != nil {
			return nil, err
		}
		d, err := new(apd.Decimal).SetFloat64(f)
		if err != nil {
			return nil, conversionError(v, BigDecimal, "", err)
		}
		return d, nil
	}
}

// ToBool converts v to bool. Numeric values are not treated as booleans.
func ToBool(v Value) (bool, error) {
	r, err := Convert(v, Bool)
	if err != nil {
		return false, err
	}
	if r.kind != KindBoolean {
		return false, conversionError(v, Bool, r.kind.String(), errNotConvertible)
	}
	return r.b, nil
}

// ToString renders v as text; sequences contribute their first element.
func ToString(v Value) string {
	return substitution(v)
}

// ToStrings converts v to a list of strings, splitting text by delim.
func ToStrings(v Value, delim rune) []string {
	out := make([]string, 0, v.Len())
	for e := range Elements(v, delim) {
		out = append(out, e.String())
	}
	return out
}

// ToSlice converts v to a sequence of elem and narrows each element with narrow.
func ToSlice[T any](v Value, elem Target, delim rune, narrow func(Value) (T, error)) ([]T, error) {
	r, err := Convert(v, SequenceOf(elem).WithDelimiter(delim))
	if err != nil {
		return nil, err
	}
	out := make([]T, len(r.seq))
	for i, e := range r.seq {
		if out[i], err = narrow(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toFixedInt(v Value, t Target) (int64, error) {
	r, err := Convert(v, t)
	if err != nil {
		return 0, err
	}
	n, err := integral(r, t)
	if err != nil {
		return 0, err
	}
	if !fitsBits(n, bitsOf(t.Kind)) {
		return 0, conversionError(v, t, "", errOutOfRange)
	}
	return n.Int64(), nil
}

// integral returns the exact integer held by a numeric value.
func integral(v Value, t Target) (*big.Int, error) {
	switch v.kind {
	case KindInteger:
		switch x := v.payload.(type) {
		case *big.Int:
			return new(big.Int).Set(x), nil
		case int:
			return big.NewInt(int64(x)), nil
		case int8:
			return big.NewInt(int64(x)), nil
		case int16:
			return big.NewInt(int64(x)), nil
		case int32:
			return big.NewInt(int64(x)), nil
		case int64:
			return big.NewInt(x), nil
		case uint:
			return new(big.Int).SetUint64(uint64(x)), nil
		case uint8:
			return new(big.Int).SetUint64(uint64(x)), nil
		case uint16:
			return new(big.Int).SetUint64(uint64(x)), nil
		case uint32:
			return new(big.Int).SetUint64(uint64(x)), nil
		case uint64:
			return new(big.Int).SetUint64(x), nil
		}
	case KindFloat:
		f, _ := floating(v, t)
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, conversionError(v, t, "", errNotIntegral)
		}
		n, _ := big.NewFloat(f).Int(nil)
		return n, nil
	case KindDecimal:
		var reduced apd.Decimal
		reduced.Reduce(v.payload.(*apd.Decimal))
		if reduced.Exponent < 0 {
			return nil, conversionError(v, t, "", errNotIntegral)
		}
		n, ok := new(big.Int).SetString(reduced.Text('f'), 10)
		if !ok {
			return nil, conversionError(v, t, "", errInvalidNumber)
		}
		return n, nil
	}
	return nil, conversionError(v, t, v.kind.String(), errNotConvertible)
}

// floating returns the float64 closest to a numeric value.
func floating(v Value, t Target) (float64, error) {
	switch v.kind {
	case KindFloat:
		switch x := v.payload.(type) {
		case float32:
			return float64(x), nil
		case float64:
			return x, nil
		}
	case KindInteger:
		n, err := integral(v, t)
		if err != nil {
			return 0, err
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case KindDecimal:
		f, err := v.payload.(*apd.Decimal).Float64()
		if err != nil {
			return 0, conversionError(v, t, "", err)
		}
		return f, nil
	}
	return 0, conversionError(v, t, v.kind.String(), errNotConvertible)
}
