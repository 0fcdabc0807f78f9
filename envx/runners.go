package envx

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/velmie/x/propx"
)

type Runner func(f *Variable) error

func DefaultVal(val string) Runner {
	return func(f *Variable) error {
		if !f.Exist {
			f.Val = val
		}
		return nil
	}
}

func MatchRegexp(expr *regexp.Regexp) Runner {
	return func(f *Variable) error {
		if !expr.MatchString(f.Val) {
			return invalid(f.Name, "value '%s' does not match regular expression '%s'", f.Val, expr.String())
		}
		return nil
	}
}

func Required(v *Variable) error {
	if !v.Exist {
		return Error{
			VarName: v.Name,
			Reason:  "is not set",
			Cause:   ErrRequired,
		}
	}
	return nil
}

// Expand resolves ${NAME} placeholders in the value, recursively.
// Unknown names are left as they are, reference cycles are reported as errors.
func Expand(v *Variable) error {
	expanded, err := propx.InterpolateString(v.Val, v.lookup())
	if err != nil {
		return Error{
			VarName: v.Name,
			Reason:  "cannot be expanded",
			Cause:   err,
		}
	}
	v.Val = expanded
	return nil
}

// ExpandWith resolves ${NAME} placeholders using the given lookup.
func ExpandWith(lookup propx.Lookup) Runner {
	return func(v *Variable) error {
		expanded, err := propx.InterpolateString(v.Val, lookup)
		if err != nil {
			return Error{
				VarName: v.Name,
				Reason:  "cannot be expanded",
				Cause:   err,
			}
		}
		v.Val = expanded
		return nil
	}
}

func NotEmpty(v *Variable) error {
	if v.Val == "" {
		return Error{
			VarName: v.Name,
			Reason:  "has empty value",
			Cause:   ErrEmpty,
		}
	}
	return nil
}

func validatePortNumber(port string) error {
	val, err := propx.ToInt32(propx.Text(port))
	if err != nil {
		return errors.New("not valid number")
	}
	if val < 1 || val > 65535 {
		return errors.New("out of port range")
	}
	return nil
}

func PortNumber(v *Variable) error {
	if v.Val == "" {
		return nil
	}

	if err := validatePortNumber(v.Val); err != nil {
		return invalid(v.Name, "%s", err.Error())
	}
	return nil
}

func URL(v *Variable) error {
	if v.Val == "" {
		return nil
	}
	if _, err := url.Parse(v.Val); err != nil {
		return invalid(v.Name, "%s", err.Error())
	}
	return nil
}

func OneOf(values []string) Runner {
	return func(v *Variable) error {
		for _, value := range values {
			if value == v.Val {
				return nil
			}
		}
		return invalid(
			v.Name,
			"must be one of the following values '%s'; got '%s'",
			strings.Join(values, "', '"),
			v.Val,
		)
	}
}

func OR(c1, c2 Runner) Runner {
	return func(v *Variable) error {
		if err := c1(v); err == nil {
			return nil
		}
		return c2(v)
	}
}

func ExactLength(val int) Runner {
	return func(f *Variable) error {
		if len(f.Val) != val {
			return invalid(f.Name, "must be %d characters long", val)
		}
		return nil
	}
}

func MinLength(min int) Runner {
	return func(f *Variable) error {
		if len(f.Val) < min {
			return invalid(f.Name, "must be at least %d characters long", min)
		}
		return nil
	}
}

func MaxLength(max int) Runner {
	return func(f *Variable) error {
		if len(f.Val) > max {
			return invalid(f.Name, "must be no more than %d characters long", max)
		}
		return nil
	}
}

func MinInt(min int64) Runner {
	return boundRunner(propx.ToInt64, "integer", func(val int64) (bool, string) {
		return val >= min, fmt.Sprintf("must be greater than or equal to %d", min)
	})
}

func MaxInt(max int64) Runner {
	return boundRunner(propx.ToInt64, "integer", func(val int64) (bool, string) {
		return val <= max, fmt.Sprintf("must be less than or equal to %d", max)
	})
}

func MinFloat(min float64) Runner {
	return boundRunner(propx.ToFloat64, "float", func(val float64) (bool, string) {
		return val >= min, fmt.Sprintf("must be greater than or equal to %f", min)
	})
}

func MaxFloat(max float64) Runner {
	return boundRunner(propx.ToFloat64, "float", func(val float64) (bool, string) {
		return val <= max, fmt.Sprintf("must be less than or equal to %f", max)
	})
}

// boundRunner converts a non-empty value with conv and checks it with within.
func boundRunner[T any](conv func(propx.Value) (T, error), kind string, within func(T) (bool, string)) Runner {
	return func(f *Variable) error {
		if f.Val == "" {
			return nil
		}
		val, err := conv(propx.Text(f.Val))
		if err != nil {
			return mustBe(f, kind)
		}
		if ok, reason := within(val); !ok {
			return invalid(f.Name, "%s", reason)
		}
		return nil
	}
}

func doRun(runners []Runner, v *Variable) error {
	for _, c := range runners {
		if err := c(v); err != nil {
			return err
		}
	}
	return nil
}
