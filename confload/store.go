package confload

import (
	"fmt"
	"iter"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/v2"

	"github.com/velmie/x/propx"
)

// Store is an immutable, merged configuration tree.
//
// Textual values may reference other keys with ${dotted.key} markers; typed
// getters expand them before converting, so "${base_port}" with
// base_port: 0x1F90 reads as 8080 through Int32. Reading a missing key yields
// the zero value without an error, use Has to tell the two apart.
type Store struct {
	k       *koanf.Koanf
	origins map[string]ValueOrigin
	files   []string
	opts    options
	// root is the store a subset was cut from, markers fall back to it
	root *Store
}

// Get returns the raw value stored under key.
func (s *Store) Get(key string) (propx.Value, bool) {
	if !s.k.Exists(key) {
		return propx.Value{}, false
	}
	return propx.Of(s.k.Get(key)), true
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	return s.k.Exists(key)
}

// Keys returns the sorted leaf keys equal to prefix or below it. An empty prefix returns every key.
func (s *Store) Keys(prefix string) []string {
	keys := s.k.Keys()
	if prefix == "" {
		return keys
	}

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == prefix || strings.HasPrefix(key, prefix+keyDelim) {
			out = append(out, key)
		}
	}

	return out
}

// Lookup resolves interpolation markers against the store.
// Within a subset, names not found relative to the subset are resolved from the root.
func (s *Store) Lookup() propx.Lookup {
	return func(name string) (propx.Value, bool) {
		if v, ok := s.Get(name); ok {
			return v, true
		}
		if s.root != nil {
			return s.root.Get(name)
		}
		return propx.Value{}, false
	}
}

// Interpolated returns the value under key with markers expanded.
// Elements of a sequence are expanded one by one.
func (s *Store) Interpolated(key string) (propx.Value, bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return v, false, nil
	}

	v, err := s.interpolate(v)
	if err != nil {
		return propx.Value{}, true, fmt.Errorf("interpolate %q: %w", key, err)
	}

	return v, true, nil
}

func (s *Store) interpolate(v propx.Value) (propx.Value, error) {
	lookup := s.Lookup()
	if v.Kind() != propx.KindSequence {
		return propx.Interpolate(v, lookup)
	}

	elems := make([]propx.Value, v.Len())
	for i := range elems {
		elem, err := s.interpolate(v.Index(i))
		if err != nil {
			return propx.Value{}, err
		}
		elems[i] = elem
	}

	return propx.Sequence(elems...), nil
}

// Convert expands and converts the value under key to target.
func (s *Store) Convert(key string, target propx.Target) (propx.Value, error) {
	return read(s, key, func(v propx.Value) (propx.Value, error) {
		return propx.Convert(v, target)
	})
}

// String returns the value under key rendered as text.
func (s *Store) String(key string) (string, error) {
	return read(s, key, func(v propx.Value) (string, error) {
		return propx.ToString(v), nil
	})
}

// Int returns the value under key as int. Hexadecimal and octal text is accepted.
func (s *Store) Int(key string) (int, error) {
	n, err := s.Int64(key)
	return int(n), err
}

func (s *Store) Int8(key string) (int8, error) {
	return read(s, key, propx.ToInt8)
}

func (s *Store) Int16(key string) (int16, error) {
	return read(s, key, propx.ToInt16)
}

func (s *Store) Int32(key string) (int32, error) {
	return read(s, key, propx.ToInt32)
}

func (s *Store) Int64(key string) (int64, error) {
	return read(s, key, propx.ToInt64)
}

func (s *Store) BigInt(key string) (*big.Int, error) {
	return read(s, key, propx.ToBigInt)
}

func (s *Store) Float32(key string) (float32, error) {
	return read(s, key, propx.ToFloat32)
}

func (s *Store) Float64(key string) (float64, error) {
	return read(s, key, propx.ToFloat64)
}

func (s *Store) Decimal(key string) (*apd.Decimal, error) {
	return read(s, key, propx.ToDecimal)
}

// Bool accepts true/false, yes/no, on/off, y/n, t/f and 1/0.
func (s *Store) Bool(key string) (bool, error) {
	return read(s, key, propx.ToBool)
}

func (s *Store) Duration(key string) (time.Duration, error) {
	return read(s, key, func(v propx.Value) (time.Duration, error) {
		return time.ParseDuration(propx.ToString(v))
	})
}

// List returns the value under key as strings. Text is split by the
// configured delimiter, a backslash escapes it.
func (s *Store) List(key string) ([]string, error) {
	return read(s, key, func(v propx.Value) ([]string, error) {
		return propx.ToStrings(v, s.opts.delimiter()), nil
	})
}

// Elements returns a lazy sequence over the items of the value under key.
func (s *Store) Elements(key string) (iter.Seq[propx.Value], error) {
	v, _, err := s.Interpolated(key)
	if err != nil {
		return nil, err
	}
	return propx.Elements(v, s.opts.delimiter()), nil
}

// Subset returns the subtree rooted at prefix with keys relative to it.
func (s *Store) Subset(prefix string) *Store {
	origins := make(map[string]ValueOrigin)
	for key, origin := range s.origins {
		if rel, ok := strings.CutPrefix(key, prefix+keyDelim); ok {
			origins[rel] = origin
		}
	}

	root := s.root
	if root == nil {
		root = s
	}

	return &Store{
		k:       s.k.Cut(prefix),
		origins: origins,
		files:   s.files,
		opts:    s.opts,
		root:    root,
	}
}

// Origin reports which source the value under key came from.
func (s *Store) Origin(key string) (ValueOrigin, bool) {
	origin, ok := s.origins[key]
	return origin, ok
}

// Files returns the configuration files and readers that were loaded, in order.
func (s *Store) Files() []string {
	return append([]string(nil), s.files...)
}

// All returns a flat copy of every key and its raw value.
func (s *Store) All() map[string]any {
	return flattenKoanf(s.k)
}

// Unmarshal populates target with the configuration rooted at prefix.
// Text is expanded and converted with the same rules as the typed getters.
func (s *Store) Unmarshal(prefix string, target any) error {
	tagName := normalizeTagName(s.opts.TagName)
	hooks := append(decodeHooks(s.Lookup(), s.opts.delimiter()), s.opts.DecodeHooks...)

	unmarshalConf := koanf.UnmarshalConf{
		Tag: tagName,
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          tagName,
			Result:           target,
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(hooks...),
			WeaklyTypedInput: true,
		},
	}

	if err := s.k.UnmarshalWithConf(prefix, target, unmarshalConf); err != nil {
		scope := prefix
		if scope == "" {
			scope = "configuration"
		}

		return fmt.Errorf("unmarshal %s: %w", scope, err)
	}

	return nil
}

// read expands the value under key and converts it with conv.
func read[T any](s *Store, key string, conv func(propx.Value) (T, error)) (T, error) {
	var zero T
	v, ok, err := s.Interpolated(key)
	if err != nil || !ok {
		return zero, err
	}

	out, err := conv(v)
	if err != nil {
		return zero, fmt.Errorf("config key %q: %w", key, err)
	}

	return out, nil
}
