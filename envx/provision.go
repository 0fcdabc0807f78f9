package envx

import "errors"

// Getter represents a function that retrieves a value and possibly returns an error
type Getter[T any] func() (T, error)

// Default is a helper function which helps to provision default values
func Default[T any](defaultVal T, v *Variable, g Getter[T]) Getter[T] {
	return func() (T, error) {
		gotVal, err := g()
		if err != nil {
			return gotVal, err
		}
		if !v.Exist {
			return defaultVal, nil
		}

		return gotVal, nil
	}
}

// Setter represents a function that sets a value and possibly returns an error
type Setter func() error

// Set creates a setter for a target from a getter.
func Set[T any](target *T, g Getter[T]) Setter {
	return func() error {
		val, err := g()
		if err != nil {
			return err
		}
		*target = val
		return nil
	}
}

// Supply executes setters in order and joins their errors.
func Supply(setters ...Setter) error {
	var errs []error
	for _, s := range setters {
		if err := s(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prototype creates variables sharing a prefix, a resolver and a set of runners.
type Prototype struct {
	prefix   string
	resolver Resolver
	runners  []Runner
}

// CreatePrototype returns a new instance of Prototype
func CreatePrototype() *Prototype {
	return &Prototype{}
}

// WithPrefix sets a prefix for the Prototype
func (p *Prototype) WithPrefix(prefix string) *Prototype {
	p.prefix = prefix
	return p
}

// WithResolver makes the prototype read from r instead of DefaultResolver.
func (p *Prototype) WithResolver(r Resolver) *Prototype {
	p.resolver = r
	return p
}

// WithRunners appends the provided runners to the prototype
func (p *Prototype) WithRunners(runners ...Runner) *Prototype {
	p.runners = append(p.runners, runners...)
	return p
}

// Get retrieves a variable by name based on the prototype configuration
func (p *Prototype) Get(name string) *Variable {
	r := p.resolverOrDefault()
	v, _ := r.Get(p.prefix + name)
	return p.copyRunners(withResolver(v, r, p.prefix+name))
}

// Coalesce retrieves the first available variable from the
// given names based on the prototype configuration
func (p *Prototype) Coalesce(names ...string) *Variable {
	r := p.resolverOrDefault()
	prefixed := make([]string, len(names))
	for i, n := range names {
		prefixed[i] = p.prefix + n
	}
	v, _ := r.Coalesce(prefixed...)
	primary := ""
	if len(prefixed) > 0 {
		primary = prefixed[0]
	}
	return p.copyRunners(withResolver(v, r, primary))
}

func (p *Prototype) resolverOrDefault() Resolver {
	if p.resolver != nil {
		return p.resolver
	}
	return DefaultResolver
}

// copyRunners copies runners from a prototype to a variable
func (p *Prototype) copyRunners(v *Variable) *Variable {
	v.runners = make([]Runner, len(p.runners))
	copy(v.runners, p.runners)

	return v
}
