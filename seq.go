package propx

import "iter"

// Elements returns a lazy sequence over the items of v. Nested sequences
// are flattened, text is split by delim token by token, and every other
// value yields itself. The returned sequence can be ranged over repeatedly.
func Elements(v Value, delim rune) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		walk(v, delim, yield)
	}
}

// walk reports false once yield asked to stop.
func walk(v Value, delim rune, yield func(Value) bool) bool {
	switch v.kind {
	case KindSequence:
		for _, e := range v.seq {
			if !walk(e, delim, yield) {
				return false
			}
		}
		return true
	case KindText:
		for token := range splitSeq(v.text, delim) {
			if !yield(Text(token)) {
				return false
			}
		}
		return true
	default:
		return yield(v)
	}
}
