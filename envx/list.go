package envx

import (
	"net/url"
	"regexp"
	"time"
)

// Variables is a list of variables usually produced by Variable.Each.
type Variables []*Variable

func (v Variables) ValidPortNumber() Variables {
	v.appendRunners(PortNumber)
	return v
}

func (v Variables) ValidURL() Variables {
	v.appendRunners(URL)
	return v
}

func (v Variables) OneOf(values ...string) Variables {
	v.appendRunners(OneOf(values))
	return v
}

func (v Variables) MinLength(min int) Variables {
	v.appendRunners(MinLength(min))
	return v
}

func (v Variables) MaxLength(max int) Variables {
	v.appendRunners(MaxLength(max))
	return v
}

func (v Variables) IntRange(min, max int64) Variables {
	v.appendRunners(MinInt(min), MaxInt(max))
	return v
}

func (v Variables) FloatRange(min, max float64) Variables {
	v.appendRunners(MinFloat(min), MaxFloat(max))
	return v
}

func (v Variables) Expand() Variables {
	v.appendRunners(Expand)
	return v
}

func (v Variables) MatchRegexp(expr *regexp.Regexp) Variables {
	v.appendRunners(MatchRegexp(expr))
	return v
}

func (v Variables) WithRunners(runners ...Runner) Variables {
	v.appendRunners(runners...)
	return v
}

func (v Variables) StringSlice() ([]string, error) {
	return varsToSliceOf(v, (*Variable).String)
}

func (v Variables) IntSlice() ([]int, error) {
	return varsToSliceOf(v, (*Variable).Int)
}

func (v Variables) Int32Slice() ([]int32, error) {
	return varsToSliceOf(v, (*Variable).Int32)
}

func (v Variables) Int64Slice() ([]int64, error) {
	return varsToSliceOf(v, (*Variable).Int64)
}

func (v Variables) Uint16Slice() ([]uint16, error) {
	return varsToSliceOf(v, (*Variable).Uint16)
}

func (v Variables) Float64Slice() ([]float64, error) {
	return varsToSliceOf(v, (*Variable).Float64)
}

func (v Variables) BooleanSlice() ([]bool, error) {
	return varsToSliceOf(v, (*Variable).Boolean)
}

func (v Variables) DurationSlice() ([]time.Duration, error) {
	return varsToSliceOf(v, (*Variable).Duration)
}

func (v Variables) URLSlice() ([]*url.URL, error) {
	return varsToSliceOf(v, (*Variable).URL)
}

func (v Variables) TimeSlice(layout string) ([]time.Time, error) {
	converter := func(variable *Variable) (time.Time, error) {
		return variable.Time(layout)
	}
	return varsToSliceOf(v, converter)
}

func (v Variables) appendRunners(runners ...Runner) {
	for _, vv := range v {
		vv.runners = append(vv.runners, runners...)
	}
}

func varsToSliceOf[T any](vars Variables, f func(variable *Variable) (T, error)) ([]T, error) {
	result := make([]T, len(vars))
	for i, vv := range vars {
		val, err := f(vv)
		if err != nil {
			return nil, err
		}
		result[i] = val
	}
	return result, nil
}
