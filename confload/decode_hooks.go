package confload

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"reflect"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-viper/mapstructure/v2"

	"github.com/velmie/x/propx"
)

var (
	urlType     = reflect.TypeOf(&url.URL{})
	bigIntType  = reflect.TypeOf(&big.Int{})
	decimalType = reflect.TypeOf(&apd.Decimal{})

	errInvalidAbsoluteURL = errors.New("invalid absolute URL (scheme and host required)")
	errInvalidBool        = errors.New("invalid boolean value")
	errInvalidNumber      = errors.New("invalid number value")
)

// decodeHooks returns the hooks applied by Store.Unmarshal, in order.
// Strings are expanded first so that every later hook sees the final text.
func decodeHooks(lookup propx.Lookup, delim rune) []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		interpolateHook(lookup),
		splitHook(delim),
		mapstructure.StringToTimeDurationHookFunc(),
		stringToBoolHook,
		stringToNumberHook,
		stringToFloatHook,
		toArbitraryPrecisionHook,
		stringToURLHook,
	}
}

func interpolateHook(lookup propx.Lookup) mapstructure.DecodeHookFuncType {
	return func(from, _ reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}

		str, ok := data.(string)
		if !ok {
			return data, nil
		}

		return propx.InterpolateString(str, lookup)
	}
}

// splitHook turns text into a list when the target is a slice.
func splitHook(delim rune) mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() == reflect.Uint8 {
			return data, nil
		}

		str, ok := data.(string)
		if !ok {
			return data, nil
		}

		return propx.Split(str, delim), nil
	}
}

func stringToURLHook(_, to reflect.Type, data any) (any, error) {
	if to != urlType {
		return data, nil
	}

	str, ok := data.(string)
	if !ok {
		return data, nil
	}

	str = strings.TrimSpace(str)
	if str == "" {
		return (*url.URL)(nil), nil
	}

	parsed, err := url.Parse(str)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidAbsoluteURL, str)
	}

	return parsed, nil
}

func stringToBoolHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}

	raw, ok := data.(string)
	if !ok {
		return data, nil
	}

	val, err := propx.ToBool(propx.Text(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errInvalidBool, raw)
	}

	return val, nil
}

// stringToNumberHook parses integers, hexadecimal (0x, #) and octal (leading 0) included.
func stringToNumberHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}

	raw, ok := data.(string)
	if !ok {
		return data, nil
	}
	raw = strings.TrimSpace(raw)

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if raw == "" {
			return 0, nil
		}
		val, err := parseSigned(propx.Text(raw), to.Bits())
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", errInvalidNumber, raw, err)
		}

		return val, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if raw == "" {
			return 0, nil
		}
		val, err := parseUnsigned(propx.Text(raw), to.Bits())
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", errInvalidNumber, raw, err)
		}

		return val, nil
	}

	return data, nil
}

func stringToFloatHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}

	raw, ok := data.(string)
	if !ok {
		return data, nil
	}
	raw = strings.TrimSpace(raw)

	switch to.Kind() {
	case reflect.Float32:
		if raw == "" {
			return float32(0), nil
		}
		val, err := propx.ToFloat32(propx.Text(raw))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", errInvalidNumber, raw, err)
		}

		return val, nil
	case reflect.Float64:
		if raw == "" {
			return 0.0, nil
		}
		val, err := propx.ToFloat64(propx.Text(raw))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", errInvalidNumber, raw, err)
		}

		return val, nil
	}

	return data, nil
}

// toArbitraryPrecisionHook fills *big.Int and *apd.Decimal fields from text or numbers.
func toArbitraryPrecisionHook(_, to reflect.Type, data any) (any, error) {
	if to != bigIntType && to != decimalType {
		return data, nil
	}

	v := propx.Of(data)
	if v.Kind() == propx.KindText && strings.TrimSpace(v.String()) == "" {
		return reflect.Zero(to).Interface(), nil
	}

	var (
		val any
		err error
	)
	if to == bigIntType {
		val, err = propx.ToBigInt(v)
	} else {
		val, err = propx.ToDecimal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", errInvalidNumber, v.String(), err)
	}

	return val, nil
}

func parseSigned(v propx.Value, bits int) (int64, error) {
	switch bits {
	case 8:
		n, err := propx.ToInt8(v)
		return int64(n), err
	case 16:
		n, err := propx.ToInt16(v)
		return int64(n), err
	case 32:
		n, err := propx.ToInt32(v)
		return int64(n), err
	default:
		return propx.ToInt64(v)
	}
}

func parseUnsigned(v propx.Value, bits int) (uint64, error) {
	n, err := propx.ToBigInt(v)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.BitLen() > bits {
		return 0, fmt.Errorf("%s exceeds uint%d range", n, bits)
	}

	return n.Uint64(), nil
}
