package propx

import "strings"

const (
	markerStart = "${"
	markerEnd   = "}"
)

// Lookup resolves a variable name to its raw value.
// It must not modify the underlying store while an interpolation is running.
type Lookup func(name string) (Value, bool)

// MapLookup returns a Lookup backed by a map. Map values are classified with Of.
func MapLookup(m map[string]any) Lookup {
	return func(name string) (Value, bool) {
		v, ok := m[name]
		if !ok {
			return Value{}, false
		}
		return Of(v), true
	}
}

// Interpolate expands ${name} placeholders of a textual value.
// Values of any other kind are returned unchanged.
func Interpolate(v Value, lookup Lookup) (Value, error) {
	if v.kind != KindText {
		return v, nil
	}
	s, err := InterpolateString(v.text, lookup)
	if err != nil {
		return Value{}, err
	}
	return Text(s), nil
}

// InterpolateString replaces every ${name} in s by the value lookup
// returns for name, expanding placeholders inside that value as well.
// Placeholders without a binding are left untouched. A variable that
// refers back to itself yields a *CyclicReferenceError.
func InterpolateString(s string, lookup Lookup) (string, error) {
	return expand(s, lookup, nil)
}

// resolutionPath holds the names being expanded on the current branch.
// Each level links to its parent and is never modified once built.
type resolutionPath struct {
	name   string
	parent *resolutionPath
}

func (p *resolutionPath) contains(name string) bool {
	for ; p != nil; p = p.parent {
		if p.name == name {
			return true
		}
	}
	return false
}

func (p *resolutionPath) names() []string {
	var out []string
	for ; p != nil; p = p.parent {
		out = append(out, p.name)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func expand(s string, lookup Lookup, path *resolutionPath) (string, error) {
	if !strings.Contains(s, markerStart) {
		return s, nil
	}

	var out strings.Builder
	out.Grow(len(s))
	for {
		start := strings.Index(s, markerStart)
		if start < 0 {
			break
		}
		nameStart := start + len(markerStart)
		end := strings.Index(s[nameStart:], markerEnd)
		if end < 0 {
			break
		}
		end += nameStart

		out.WriteString(s[:start])
		name := s[nameStart:end]
		resolved, found, err := resolve(name, lookup, path)
		if err != nil {
			return "", err
		}
		if found {
			out.WriteString(resolved)
		} else {
			out.WriteString(s[start : end+len(markerEnd)])
		}
		s = s[end+len(markerEnd):]
	}
	out.WriteString(s)

	return out.String(), nil
}

func resolve(name string, lookup Lookup, path *resolutionPath) (string, bool, error) {
	if path.contains(name) {
		return "", false, &CyclicReferenceError{Name: name, Path: path.names()}
	}
	if lookup == nil {
		return "", false, nil
	}
	val, ok := lookup(name)
	if !ok {
		return "", false, nil
	}

	expanded, err := expand(substitution(val), lookup, &resolutionPath{name: name, parent: path})
	if err != nil {
		return "", false, err
	}
	return expanded, true, nil
}

// substitution renders a looked up value for insertion into a string.
// List-valued properties contribute their first element.
func substitution(v Value) string {
	if v.kind == KindSequence {
		if len(v.seq) == 0 {
			return ""
		}
		return substitution(v.seq[0])
	}
	return v.String()
}
