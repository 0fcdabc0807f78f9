package envx

import (
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/velmie/x/propx"
)

// Variable is a single named value together with the runners that
// validate or transform it before conversion.
type Variable struct {
	Name     string
	Val      string
	Exist    bool
	AllNames []string

	runners  []Runner
	resolver Resolver
}

func (v *Variable) Default(val string) *Variable {
	v.runners = append(v.runners, DefaultVal(val))
	return v
}

func (v *Variable) ExactLength(val int) *Variable {
	v.runners = append(v.runners, ExactLength(val))
	return v
}

func (v *Variable) MinLength(min int) *Variable {
	v.runners = append(v.runners, MinLength(min))
	return v
}

func (v *Variable) MaxLength(max int) *Variable {
	v.runners = append(v.runners, MaxLength(max))
	return v
}

func (v *Variable) MinInt(min int64) *Variable {
	v.runners = append(v.runners, MinInt(min))
	return v
}

func (v *Variable) MaxInt(max int64) *Variable {
	v.runners = append(v.runners, MaxInt(max))
	return v
}

func (v *Variable) IntRange(min, max int64) *Variable {
	v.runners = append(v.runners, MinInt(min), MaxInt(max))
	return v
}

func (v *Variable) MinFloat(min float64) *Variable {
	v.runners = append(v.runners, MinFloat(min))
	return v
}

func (v *Variable) MaxFloat(max float64) *Variable {
	v.runners = append(v.runners, MaxFloat(max))
	return v
}

func (v *Variable) WithRunners(runners ...Runner) *Variable {
	v.runners = append(v.runners, runners...)
	return v
}

func (v *Variable) Required() *Variable {
	v.runners = append(v.runners, Required)
	return v
}

func (v *Variable) RequiredIf(cond bool) *Variable {
	if cond {
		v.runners = append(v.runners, Required)
	}
	return v
}

func (v *Variable) NotEmpty() *Variable {
	v.runners = append(v.runners, NotEmpty)
	return v
}

func (v *Variable) NotEmptyIf(cond bool) *Variable {
	if cond {
		v.runners = append(v.runners, NotEmpty)
	}
	return v
}

func (v *Variable) ValidPortNumber() *Variable {
	v.runners = append(v.runners, PortNumber)
	return v
}

func (v *Variable) ValidURL() *Variable {
	v.runners = append(v.runners, URL)
	return v
}

func (v *Variable) OneOf(values ...string) *Variable {
	v.runners = append(v.runners, OneOf(values))
	return v
}

// Expand replaces ${NAME} placeholders in the value with variables
// resolved through the resolver the variable was obtained from.
func (v *Variable) Expand() *Variable {
	v.runners = append(v.runners, Expand)
	return v
}

func (v *Variable) Or(c1, c2 Runner) *Variable {
	v.runners = append(v.runners, OR(c1, c2))
	return v
}

func (v *Variable) String() (string, error) {
	if err := doRun(v.runners, v); err != nil {
		return "", err
	}
	return v.Val, nil
}

// StringSlice splits the value by the delimiter, comma by default.
// A backslash before the delimiter keeps it inside the item.
func (v *Variable) StringSlice(delimiter ...rune) ([]string, error) {
	if err := doRun(v.runners, v); err != nil {
		return nil, err
	}
	return propx.Split(v.Val, delim(delimiter)), nil
}

func (v *Variable) MapStringString() (map[string]string, error) {
	const kvSep = "="
	if err := doRun(v.runners, v); err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for _, pair := range propx.Split(v.Val, propx.DefaultDelimiter) {
		key, value, ok := strings.Cut(pair, kvSep)
		if ok {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return result, nil
}

func (v *Variable) UniqueStringSlice(delimiter ...rune) ([]string, error) {
	result, err := v.StringSlice(delimiter...)
	if err != nil {
		return result, err
	}
	//nolint:gomnd // if length 0 or 1 then slice contains only unique values
	if len(result) < 2 {
		return result, nil
	}
	set := map[string]struct{}{}
	unique := make([]string, 0, len(result))
	for _, val := range result {
		if _, ok := set[val]; ok {
			continue
		}
		set[val] = struct{}{}
		unique = append(unique, val)
	}
	return unique, nil
}

// Boolean accepts true/false, yes/no, on/off, y/n, t/f and 1/0.
func (v *Variable) Boolean() (bool, error) {
	return convertVar(v, false, "boolean", propx.ToBool)
}

func (v *Variable) Duration() (time.Duration, error) {
	if err := doRun(v.runners, v); err != nil {
		return 0, err
	}
	if v.Val == "" {
		return 0, nil
	}
	result, err := time.ParseDuration(v.Val)
	if err != nil {
		return 0, mustBe(v, "time duration")
	}
	return result, nil
}

func (v *Variable) Int() (int, error) {
	result, err := v.Int64()
	return int(result), err
}

func (v *Variable) Int8() (int8, error) {
	return convertVar(v, 0, "int8", propx.ToInt8)
}

func (v *Variable) Int16() (int16, error) {
	return convertVar(v, 0, "int16", propx.ToInt16)
}

func (v *Variable) Int32() (int32, error) {
	return convertVar(v, 0, "int32", propx.ToInt32)
}

// Int64 parses the value as a 64-bit integer. Hexadecimal (0x, #) and
// octal (leading 0) notations are accepted.
func (v *Variable) Int64() (int64, error) {
	return convertVar(v, 0, "integer", propx.ToInt64)
}

func (v *Variable) BigInt() (*big.Int, error) {
	return convertVar(v, nil, "integer", propx.ToBigInt)
}

func (v *Variable) Uint() (uint, error) {
	result, err := v.Uint64()
	return uint(result), err
}

func (v *Variable) Uint8() (uint8, error) {
	result, err := v.unsigned(8)
	return uint8(result), err
}

func (v *Variable) Uint16() (uint16, error) {
	result, err := v.unsigned(16)
	return uint16(result), err
}

func (v *Variable) Uint32() (uint32, error) {
	result, err := v.unsigned(32)
	return uint32(result), err
}

func (v *Variable) Uint64() (uint64, error) {
	return v.unsigned(64)
}

func (v *Variable) Float64() (float64, error) {
	return convertVar(v, 0, "float", propx.ToFloat64)
}

func (v *Variable) Float32() (float32, error) {
	return convertVar(v, 0, "float", propx.ToFloat32)
}

func (v *Variable) Decimal() (*apd.Decimal, error) {
	return convertVar(v, nil, "decimal", propx.ToDecimal)
}

func (v *Variable) Time(layout string) (time.Time, error) {
	if err := doRun(v.runners, v); err != nil {
		return time.Time{}, err
	}
	if v.Val == "" {
		return time.Time{}, nil
	}
	result, err := time.Parse(layout, v.Val)
	if err != nil {
		return time.Time{}, invalid(v.Name, "must be a valid time in format '%s', got '%s'", layout, v.Val)
	}
	return result, nil
}

func (v *Variable) URL() (*url.URL, error) {
	if err := doRun(v.runners, v); err != nil {
		return nil, err
	}
	if v.Val == "" {
		return &url.URL{}, nil
	}
	result, err := url.ParseRequestURI(v.Val)
	if err != nil {
		return nil, mustBe(v, "URL")
	}
	return result, nil
}

// Each converts a variable into a list of variables where each list item is obtained by splitting the original value
// by a delimiter.
// By default, the delimiter is a comma ",". A backslash before the delimiter escapes it.
// Converting to a list of variables can be useful if there is a need to validate each item independently.
func (v *Variable) Each(delimiter ...rune) Variables {
	values := propx.Split(v.Val, delim(delimiter))
	vars := make(Variables, len(values))
	for i, val := range values {
		runners := make([]Runner, len(v.runners))
		copy(runners, v.runners)
		vars[i] = &Variable{
			Name:     v.Name,
			Val:      val,
			Exist:    v.Exist,
			AllNames: v.AllNames,
			runners:  runners,
			resolver: v.resolver,
		}
	}
	return vars
}

func (v *Variable) unsigned(bits uint) (uint64, error) {
	n, err := v.BigInt()
	if err != nil || n == nil {
		return 0, err
	}
	if n.Sign() < 0 || n.BitLen() > int(bits) {
		return 0, invalid(v.Name, "value %s exceeds uint%d range", n, bits)
	}
	return n.Uint64(), nil
}

// convertVar runs the runners and converts the value with f.
// An empty value converts to zero.
func convertVar[T any](v *Variable, zero T, kind string, f func(propx.Value) (T, error)) (T, error) {
	if err := doRun(v.runners, v); err != nil {
		return zero, err
	}
	if v.Val == "" {
		return zero, nil
	}
	result, err := f(propx.Text(v.Val))
	if err != nil {
		return zero, mustBe(v, kind)
	}
	return result, nil
}

func delim(delimiter []rune) rune {
	if len(delimiter) > 0 {
		return delimiter[0]
	}
	return propx.DefaultDelimiter
}

func (v *Variable) lookup() propx.Lookup {
	r := v.resolver
	if r == nil {
		r = DefaultResolver
	}
	return lookupOf(r)
}
