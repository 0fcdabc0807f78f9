package confload

import (
	"sort"
	"strings"
)

// UnknownKeysError reports configuration keys that are not present in the target struct.
type UnknownKeysError struct {
	Keys    []string
	Origins map[string]ValueOrigin
}

func (e *UnknownKeysError) Error() string {
	if e == nil || len(e.Keys) == 0 {
		return "unknown configuration keys"
	}

	var b strings.Builder
	b.WriteString("unknown configuration keys: ")
	for i, key := range e.Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(key)
		if origin, ok := e.Origins[key]; ok {
			b.WriteString(" (" + string(origin.Source))
			if origin.Identifier != "" {
				b.WriteString(" " + origin.Identifier)
			}
			b.WriteString(")")
		}
	}

	return b.String()
}

func validateStrict(s *Store, allowedKeys map[string]struct{}, wildcardPrefixes []string, prefix string) error {
	var unknown []string
	unknownOrigins := make(map[string]ValueOrigin)
	for _, key := range s.Keys(prefix) {
		if isAllowedKey(key, allowedKeys, wildcardPrefixes) {
			continue
		}
		unknown = append(unknown, key)
		if origin, ok := s.Origin(key); ok {
			unknownOrigins[key] = origin
		}
	}

	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)

	return &UnknownKeysError{Keys: unknown, Origins: unknownOrigins}
}

func isAllowedKey(key string, allowedKeys map[string]struct{}, wildcardPrefixes []string) bool {
	if _, ok := allowedKeys[key]; ok {
		return true
	}
	for _, prefix := range wildcardPrefixes {
		if strings.HasPrefix(key, prefix+keyDelim) {
			return true
		}
	}

	return false
}
