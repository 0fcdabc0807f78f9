package envx

import "github.com/velmie/x/propx"

// Resolver defines methods that any resolver must implement.
type Resolver interface {
	// Get looks up a variable by name.
	Get(name string) (*Variable, error)

	// Coalesce tries a list of variable names and returns the first one found.
	Coalesce(names ...string) (*Variable, error)

	// AddSource adds a new source to the resolver.
	AddSource(src Source)
}

// ErrorHandler defines how errors from sources should be handled
type ErrorHandler func(err error, sourceName string) (bool, error)

// ContinueOnError is the default error handler that ignores errors and continues to next source
func ContinueOnError(err error, sourceName string) (bool, error) {
	return true, nil
}

// BreakOnError is an error handler that stops resolution on first error
func BreakOnError(err error, sourceName string) (bool, error) {
	return false, err
}

// StandardResolver implements Resolver interface and manages multiple sources,
// looking up values from them sequentially.
type StandardResolver struct {
	sources      []Source
	errorHandler ErrorHandler
}

// NewResolver creates a new StandardResolver with the given sources.
// Sources will be queried in the order they are provided.
// By default, uses BreakOnError as the error handler.
func NewResolver(sources ...Source) *StandardResolver {
	return &StandardResolver{
		sources:      sources,
		errorHandler: BreakOnError,
	}
}

// WithErrorHandler sets a custom error handler and returns the resolver for chaining.
func (r *StandardResolver) WithErrorHandler(handler ErrorHandler) *StandardResolver {
	r.errorHandler = handler
	return r
}

// AddSource adds a new source to the resolver.
// The new source is added to the end of the source list (lowest priority).
func (r *StandardResolver) AddSource(src Source) {
	r.sources = append(r.sources, src)
}

// Get looks up a variable by name from all registered sources.
// Returns the first value found or an empty Variable if not found in any source.
// Returns error if a source returns an error and the error handler decides to break.
func (r *StandardResolver) Get(name string) (*Variable, error) {
	val, exist, err := r.lookup(name, false)
	if err != nil {
		return nil, err
	}
	return &Variable{
		Name:     name,
		Val:      val,
		Exist:    exist,
		AllNames: []string{name},
		resolver: r,
	}, nil
}

// Coalesce tries a list of variable names and returns the first one found
// with a non-empty value. It tries each name in all sources before moving
// to the next name.
func (r *StandardResolver) Coalesce(names ...string) (*Variable, error) {
	if len(names) == 0 {
		return &Variable{resolver: r}, nil
	}

	allNames := make([]string, len(names))
	copy(allNames, names)

	for _, name := range names {
		val, exist, err := r.lookup(name, true)
		if err != nil {
			return nil, err
		}
		if exist {
			return &Variable{
				Name:     names[0], // primary name is used in error messages
				Val:      val,
				Exist:    true,
				AllNames: allNames,
				resolver: r,
			}, nil
		}
	}

	return &Variable{
		Name:     names[0],
		Exist:    false,
		AllNames: allNames,
		resolver: r,
	}, nil
}

// Lookup exposes the resolver as a propx.Lookup so that ${NAME}
// placeholders can be expanded against the same sources.
// A source error the error handler does not absorb makes the name
// unresolved; use LookupValue to observe it.
func (r *StandardResolver) Lookup() propx.Lookup {
	return func(name string) (propx.Value, bool) {
		val, exist, err := r.lookup(name, false)
		if err != nil || !exist {
			return propx.Value{}, false
		}
		return propx.Text(val), true
	}
}

// LookupValue returns the first value defined for name. Source errors go
// through the error handler and are returned when it stops the resolution.
func (r *StandardResolver) LookupValue(name string) (string, bool, error) {
	return r.lookup(name, false)
}

func (r *StandardResolver) lookup(name string, skipEmpty bool) (string, bool, error) {
	for _, src := range r.sources {
		val, exist, err := src.Lookup(name)
		if err != nil {
			if r.errorHandler == nil {
				return "", false, err
			}

			continueResolution, handlerErr := r.errorHandler(err, src.Name())
			if !continueResolution {
				return "", false, handlerErr
			}
			continue
		}
		if exist && (!skipEmpty || val != "") {
			return val, true, nil
		}
	}
	return "", false, nil
}

// lookupOf returns a propx.Lookup for any Resolver.
func lookupOf(r Resolver) propx.Lookup {
	if sr, ok := r.(*StandardResolver); ok {
		return sr.Lookup()
	}
	return func(name string) (propx.Value, bool) {
		v, err := r.Get(name)
		if err != nil || v == nil || !v.Exist {
			return propx.Value{}, false
		}
		return propx.Text(v.Val), true
	}
}
