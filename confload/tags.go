package confload

import (
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/velmie/x/propx"
)

const netURLPkg = "net/url"

// walkTagged calls visit for every tagged field of t with its dotted key.
// Nested structs are descended into unless visit reports false.
func walkTagged(t reflect.Type, prefix, tagName string, visit func(key string, f reflect.StructField, ft reflect.Type) bool) {
	if t == nil {
		return
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.TrimSpace(f.Tag.Get(tagName))
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + keyDelim + tag
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if visit(key, f, ft) && isNested(ft) {
			walkTagged(ft, key, tagName, visit)
		}
	}
}

// isNested reports whether ft is a struct holding further configuration keys.
// net/url.URL contains internal fields, but for us it is a leaf.
func isNested(ft reflect.Type) bool {
	return ft.Kind() == reflect.Struct && ft.PkgPath() != netURLPkg && ft != bigIntType.Elem() && ft != decimalType.Elem()
}

func collectTaggedKeys(t reflect.Type, prefix, tagName string) []string {
	out := make([]string, 0)
	walkTagged(t, prefix, tagName, func(key string, _ reflect.StructField, ft reflect.Type) bool {
		if !isNested(ft) {
			out = append(out, key)
		}
		return true
	})
	sort.Strings(out)

	return out
}

func collectAllowedKeys(t reflect.Type, prefix, tagName string) map[string]struct{} {
	keys := collectTaggedKeys(t, prefix, tagName)
	out := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		out[key] = struct{}{}
		for parent := parentPath(key); parent != ""; parent = parentPath(parent) {
			out[parent] = struct{}{}
		}
	}

	return out
}

// collectMapPrefixes returns the keys of map fields, any subkey below them is allowed.
func collectMapPrefixes(t reflect.Type, prefix, tagName string) []string {
	out := make([]string, 0)
	walkTagged(t, prefix, tagName, func(key string, _ reflect.StructField, ft reflect.Type) bool {
		if ft.Kind() == reflect.Map {
			out = append(out, key)
		}
		return true
	})
	sort.Strings(out)

	return out
}

// collectTagDefaults traverses the struct fields and collects `default` tags.
// Slice defaults are split with `default_sep`, a backslash escapes the separator.
func collectTagDefaults(t reflect.Type, prefix, tagName string) map[string]any {
	acc := make(map[string]any)
	walkTagged(t, prefix, tagName, func(key string, f reflect.StructField, ft reflect.Type) bool {
		if isNested(ft) {
			return true
		}

		defVal, ok := f.Tag.Lookup("default")
		if !ok {
			return false
		}

		if ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
			sep := propx.DefaultDelimiter
			if r, _ := utf8.DecodeRuneInString(f.Tag.Get("default_sep")); r != utf8.RuneError {
				sep = r
			}
			parts := propx.Split(defVal, sep)
			list := make([]any, len(parts))
			for i, p := range parts {
				list[i] = p
			}
			acc[key] = list

			return false
		}

		acc[key] = defVal

		return false
	})

	return acc
}
