package envx

// DefaultResolver is the global resolver used by the package functions.
// By default, it contains only an EnvSource and uses ContinueOnError.
var DefaultResolver Resolver = NewResolver(EnvSource{}).WithErrorHandler(ContinueOnError)

// Get looks up a variable by name from the DefaultResolver.
// Errors from the resolver are ignored.
func Get(name string) *Variable {
	v, _ := DefaultResolver.Get(name)
	return withResolver(v, DefaultResolver, name)
}

// Coalesce tries a list of variable names and returns the first one found
// using the DefaultResolver.
// Errors from the resolver are ignored.
func Coalesce(names ...string) *Variable {
	v, _ := DefaultResolver.Coalesce(names...)
	primary := ""
	if len(names) > 0 {
		primary = names[0]
	}
	return withResolver(v, DefaultResolver, primary)
}

// Prefixed looks up variables whose names share a common prefix.
type Prefixed string

// Get looks up the prefixed name.
func (p Prefixed) Get(name string) *Variable {
	return Get(string(p) + name)
}

// Coalesce looks up the prefixed names in order.
func (p Prefixed) Coalesce(names ...string) *Variable {
	prefixed := make([]string, len(names))
	for i, n := range names {
		prefixed[i] = string(p) + n
	}
	return Coalesce(prefixed...)
}

// withResolver never returns nil so that runner chains are always safe to call.
func withResolver(v *Variable, r Resolver, name string) *Variable {
	if v == nil {
		v = &Variable{Name: name, AllNames: []string{name}}
	}
	if v.resolver == nil {
		v.resolver = r
	}
	return v
}
