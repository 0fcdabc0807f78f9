package confload

import (
	"flag"
	"io"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/velmie/x/propx"
)

// Logger receives diagnostic messages from the loader. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
}

// EnvKeyFunc builds the environment variable name for a dotted key.
type EnvKeyFunc func(prefix, dotted string) string

// EnvLookupFunc reads one environment variable. os.LookupEnv is the default.
type EnvLookupFunc func(name string) (string, bool)

type options struct {
	EnvPrefix     string
	EnvKeys       []string
	EnvKeyFunc    EnvKeyFunc
	EnvAliases    map[string]string
	EnvLookup     EnvLookupFunc
	TagName       string
	ConfigFileEnv string
	Defaults      map[string]any
	Sources       []sourceEntry
	FlagSet       *flag.FlagSet
	Overrides     map[string]any
	DecodeHooks   []mapstructure.DecodeHookFunc
	Delimiter     rune
	Logger        Logger
	Strict        bool
}

type sourceKind uint8

const (
	sourceFile sourceKind = iota
	sourceReader
)

type sourceEntry struct {
	kind     sourceKind
	path     string
	optional bool
	data     []byte
	readErr  error
}

// Option configures Loader behavior.
type Option func(*options)

// WithEnvPrefix configures the prefix applied to environment variables.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			return
		}
		if !strings.HasSuffix(prefix, "_") {
			prefix += "_"
		}
		o.EnvPrefix = prefix
	}
}

// WithEnvKeys declares dotted keys that are looked up in the environment
// even when no other source defines them.
func WithEnvKeys(keys ...string) Option {
	return func(o *options) {
		for _, key := range keys {
			if key = strings.TrimSpace(key); key != "" {
				o.EnvKeys = append(o.EnvKeys, key)
			}
		}
	}
}

// WithEnvKeyFunc overrides the environment variable name mapping for dotted keys.
func WithEnvKeyFunc(fn EnvKeyFunc) Option {
	return func(o *options) {
		if fn == nil {
			return
		}
		o.EnvKeyFunc = fn
	}
}

// WithEnvLookup replaces os.LookupEnv as the reader of environment variables.
func WithEnvLookup(fn EnvLookupFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.EnvLookup = fn
		}
	}
}

// WithEnvAliases sets explicit environment variable names for specific dotted keys.
func WithEnvAliases(aliases map[string]string) Option {
	return func(o *options) {
		if len(aliases) == 0 {
			return
		}

		o.EnvAliases = cloneStringMap(aliases)
	}
}

// WithTagName sets the struct tag key used by LoadInto and Store.Unmarshal.
func WithTagName(tag string) Option {
	return func(o *options) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		o.TagName = tag
	}
}

// WithConfigFileEnv sets the environment variable key used to locate an additional configuration file.
func WithConfigFileEnv(key string) Option {
	return func(o *options) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		o.ConfigFileEnv = key
	}
}

// WithDefaults supplies default values expressed using dotted keys.
func WithDefaults(values map[string]any) Option {
	return func(o *options) {
		if len(values) == 0 {
			return
		}

		if o.Defaults == nil {
			o.Defaults = make(map[string]any, len(values))
		}

		for k, v := range values {
			o.Defaults[k] = v
		}
	}
}

// WithFiles adds configuration files that will be loaded in the provided order.
func WithFiles(paths ...string) Option {
	return func(o *options) {
		for _, path := range paths {
			o.Sources = append(o.Sources, sourceEntry{kind: sourceFile, path: path})
		}
	}
}

// WithOptionalFiles adds configuration files that will be loaded if they exist.
func WithOptionalFiles(paths ...string) Option {
	return func(o *options) {
		for _, path := range paths {
			o.Sources = append(o.Sources, sourceEntry{kind: sourceFile, path: path, optional: true})
		}
	}
}

// WithReader loads configuration from an io.Reader using the file extension of name.
// The reader is consumed when the option is applied, and read errors surface during load.
func WithReader(name string, reader io.Reader) Option {
	return func(o *options) {
		name = strings.TrimSpace(name)
		if name == "" || reader == nil {
			return
		}

		data, err := io.ReadAll(reader)
		o.Sources = append(o.Sources, sourceEntry{
			kind:    sourceReader,
			path:    name,
			data:    data,
			readErr: err,
		})
	}
}

// WithFlagSet enables flag values as a configuration source.
// Only flags that were set on the command line are taken into account.
func WithFlagSet(fs *flag.FlagSet) Option {
	return func(o *options) {
		o.FlagSet = fs
	}
}

// WithOverrides applies programmatic overrides expressed using dotted keys.
func WithOverrides(values map[string]any) Option {
	return func(o *options) {
		if len(values) == 0 {
			return
		}

		if o.Overrides == nil {
			o.Overrides = make(map[string]any, len(values))
		}
		for k, v := range values {
			o.Overrides[k] = v
		}
	}
}

// WithDecodeHooks registers additional decode hooks applied after the defaults.
func WithDecodeHooks(hooks ...mapstructure.DecodeHookFunc) Option {
	return func(o *options) {
		o.DecodeHooks = append(o.DecodeHooks, hooks...)
	}
}

// WithStrict makes LoadInto and LoadSubset reject keys that are not present in the target struct.
func WithStrict() Option {
	return func(o *options) {
		o.Strict = true
	}
}

// WithDelimiter sets the delimiter used to split textual list values.
func WithDelimiter(delim rune) Option {
	return func(o *options) {
		o.Delimiter = delim
	}
}

// WithLogger sets the logger, slog.Default() is used otherwise.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.Logger = logger
	}
}

func (o options) delimiter() rune {
	if o.Delimiter == 0 {
		return propx.DefaultDelimiter
	}
	return o.Delimiter
}

func (o options) logger() Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
