package envx_test

import (
	"errors"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/velmie/x/propx/envx"
	"github.com/velmie/x/propx"
)

func Test_Variable(t *testing.T) {
	tests := []struct {
		env         string
		v           string
		expected    interface{}
		skipSetting bool
		err         error
		run         func(env string) (interface{}, error)
	}{
		{
			env:      "JUST_EMPTY_STRING",
			v:        "",
			expected: "",
			run: func(env string) (interface{}, error) {
				return Get(env).String()
			},
		},
		{
			env:      "SOME_PREFIX_PREFIXED_GET",
			v:        "test",
			expected: "test",
			run: func(_ string) (interface{}, error) {
				return Prefixed("SOME_PREFIX_").Get("PREFIXED_GET").String()
			},
		},
		{
			env:      "SOME_PREFIX_PREFIXED_COALESCE",
			v:        "test",
			expected: "test",
			run: func(_ string) (interface{}, error) {
				return Prefixed("SOME_PREFIX_").Coalesce("VAR1", "PREFIXED_COALESCE").String()
			},
		},
		{
			env:         "REQUIRED_STRING",
			expected:    "",
			skipSetting: true,
			err:         ErrRequired,
			run: func(env string) (interface{}, error) {
				return Get(env).Required().String()
			},
		},
		{
			env:      "NOT_EMPTY_STRING",
			v:        "",
			expected: "",
			err:      ErrEmpty,
			run: func(env string) (interface{}, error) {
				return Get(env).NotEmpty().String()
			},
		},
		{
			env:         "DEFAULT_STRING",
			expected:    "fallback",
			skipSetting: true,
			run: func(env string) (interface{}, error) {
				return Get(env).Default("fallback").String()
			},
		},
		{
			env:      "HEX_INT",
			v:        "0x1F",
			expected: 31,
			run: func(env string) (interface{}, error) {
				return Get(env).Int()
			},
		},
		{
			env:      "OCTAL_INT32",
			v:        "017",
			expected: int32(15),
			run: func(env string) (interface{}, error) {
				return Get(env).Int32()
			},
		},
		{
			env:      "INVALID_INT8",
			v:        "1000",
			expected: int8(0),
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).Int8()
			},
		},
		{
			env:      "VALID_INT16",
			v:        "#7fff",
			expected: int16(32767),
			run: func(env string) (interface{}, error) {
				return Get(env).Int16()
			},
		},
		{
			env:      "UINT16_VALUE",
			v:        "65535",
			expected: uint16(65535),
			run: func(env string) (interface{}, error) {
				return Get(env).Uint16()
			},
		},
		{
			env:      "UINT8_OVERFLOW",
			v:        "256",
			expected: uint8(0),
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).Uint8()
			},
		},
		{
			env:      "NEGATIVE_UINT",
			v:        "-1",
			expected: uint64(0),
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).Uint64()
			},
		},
		{
			env:      "FLOAT_VALUE",
			v:        "2.5",
			expected: 2.5,
			run: func(env string) (interface{}, error) {
				return Get(env).Float64()
			},
		},
		{
			env:      "FLOAT32_VALUE",
			v:        "0.5",
			expected: float32(0.5),
			run: func(env string) (interface{}, error) {
				return Get(env).Float32()
			},
		},
		{
			env:      "BOOL_YES",
			v:        "yes",
			expected: true,
			run: func(env string) (interface{}, error) {
				return Get(env).Boolean()
			},
		},
		{
			env:      "BOOL_INVALID",
			v:        "perhaps",
			expected: false,
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).Boolean()
			},
		},
		{
			env:      "DURATION_VALUE",
			v:        "1m30s",
			expected: 90 * time.Second,
			run: func(env string) (interface{}, error) {
				return Get(env).Duration()
			},
		},
		{
			env:      "SLICE_VALUE",
			v:        `a, b\,c ,d`,
			expected: []string{"a", "b,c", "d"},
			run: func(env string) (interface{}, error) {
				return Get(env).StringSlice()
			},
		},
		{
			env:      "SLICE_CUSTOM_DELIMITER",
			v:        "a|b|a",
			expected: []string{"a", "b"},
			run: func(env string) (interface{}, error) {
				return Get(env).UniqueStringSlice('|')
			},
		},
		{
			env:      "MAP_VALUE",
			v:        "a=1, b = 2,broken",
			expected: map[string]string{"a": "1", "b": "2"},
			run: func(env string) (interface{}, error) {
				return Get(env).MapStringString()
			},
		},
		{
			env:      "ONE_OF_VALUE",
			v:        "blue",
			expected: "",
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).OneOf("red", "green").String()
			},
		},
		{
			env:      "REGEXP_VALUE",
			v:        "abc123",
			expected: "abc123",
			run: func(env string) (interface{}, error) {
				return Get(env).WithRunners(MatchRegexp(regexp.MustCompile(`^[a-z]+\d+$`))).String()
			},
		},
		{
			env:      "INT_RANGE",
			v:        "0x10",
			expected: int64(0),
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).IntRange(1, 10).Int64()
			},
		},
		{
			env:      "FLOAT_RANGE",
			v:        "0.5",
			expected: 0.5,
			run: func(env string) (interface{}, error) {
				return Get(env).MinFloat(0).MaxFloat(1).Float64()
			},
		},
		{
			env:      "LENGTH_VALUE",
			v:        "abcd",
			expected: "",
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).MinLength(1).MaxLength(3).String()
			},
		},
		{
			env:      "PORT_VALUE",
			v:        "70000",
			expected: 0,
			err:      ErrInvalidValue,
			run: func(env string) (interface{}, error) {
				return Get(env).ValidPortNumber().Int()
			},
		},
		{
			env:      "OR_VALUE",
			v:        "",
			expected: "",
			run: func(env string) (interface{}, error) {
				return Get(env).Or(NotEmpty, ExactLength(0)).String()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if !tt.skipSetting {
				t.Setenv(tt.env, tt.v)
			}
			got, err := tt.run(tt.env)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestVariable_Expand(t *testing.T) {
	resolver := NewResolver(NewMapSource(map[string]string{
		"DB_HOST": "db.internal",
		"DB_PORT": "0x1538",
		"DB_ADDR": "${DB_HOST}:${DB_PORT}",
		"DSN":     "postgres://${DB_ADDR}/${DB_NAME}",
		"LOOP_A":  "${LOOP_B}",
		"LOOP_B":  "${LOOP_A}",
	}, "test"))

	v, err := resolver.Get("DSN")
	require.NoError(t, err)
	dsn, err := v.Expand().String()
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal:0x1538/${DB_NAME}", dsn)

	v, err = resolver.Get("DB_PORT")
	require.NoError(t, err)
	port, err := v.Expand().Int()
	require.NoError(t, err)
	assert.Equal(t, 5432, port)

	v, err = resolver.Get("LOOP_A")
	require.NoError(t, err)
	_, err = v.Expand().String()
	require.ErrorIs(t, err, propx.ErrCyclicReference)

	var envErr Error
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "LOOP_A", envErr.VarName)
}

func TestVariable_ExpandWith(t *testing.T) {
	t.Setenv("GREETING", "hello ${who}")

	got, err := Get("GREETING").
		WithRunners(ExpandWith(propx.MapLookup(map[string]any{"who": "world"}))).
		String()
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestVariable_ExpandDefault(t *testing.T) {
	t.Setenv("APP_HOME", "/opt/app")

	got, err := Get("APP_LOG_DIR").Default("${APP_HOME}/logs").Expand().String()
	require.NoError(t, err)
	assert.Equal(t, "/opt/app/logs", got)
}

func TestVariable_BigNumbers(t *testing.T) {
	t.Setenv("BIG", "0xffffffffffffffffff")
	t.Setenv("PRICE", "19.990")

	n, err := Get("BIG").BigInt()
	require.NoError(t, err)
	assert.Equal(t, "4722366482869645213695", n.String())

	d, err := Get("PRICE").Decimal()
	require.NoError(t, err)
	assert.Equal(t, "19.990", d.String())

	n, err = Get("BIG_MISSING").BigInt()
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestVariable_Each(t *testing.T) {
	t.Setenv("PORTS", "80, 0x1bb ,8080")
	t.Setenv("URLS", "https://a.example,https://b.example")

	ports, err := Get("PORTS").Each().IntRange(1, 65535).IntSlice()
	require.NoError(t, err)
	assert.Equal(t, []int{80, 443, 8080}, ports)

	_, err = Get("PORTS").Each().IntRange(1, 100).IntSlice()
	require.ErrorIs(t, err, ErrInvalidValue)

	urls, err := Get("URLS").Each().ValidURL().URLSlice()
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, &url.URL{Scheme: "https", Host: "b.example"}, urls[1])

	flags, err := Get("MISSING_FLAGS").Each().BooleanSlice()
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestVariable_Time(t *testing.T) {
	t.Setenv("START", "2024-01-02")

	got, err := Get("START").Time(time.DateOnly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = Get("START").Time(time.RFC3339)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestPrototype(t *testing.T) {
	resolver := NewResolver(NewMapSource(map[string]string{
		"SVC_NAME": "billing",
		"SVC_URL":  "http://${SVC_NAME}.local",
	}, "test"))

	p := CreatePrototype().WithPrefix("SVC_").WithResolver(resolver).WithRunners(Expand)

	got, err := p.Get("URL").String()
	require.NoError(t, err)
	assert.Equal(t, "http://billing.local", got)

	got, err = p.Coalesce("MISSING", "NAME").String()
	require.NoError(t, err)
	assert.Equal(t, "billing", got)

	v := p.Get("ABSENT")
	assert.Equal(t, "SVC_ABSENT", v.Name)
	assert.False(t, v.Exist)
}
