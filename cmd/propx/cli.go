package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/kingpin/v2"

	"github.com/velmie/x/propx"
	"github.com/velmie/x/propx/confload"
	"github.com/velmie/x/propx/envx"
	"github.com/velmie/x/propx/internal/logging"
	"github.com/velmie/x/propx/sqlsource"
	"github.com/velmie/x/propx/sqlsource/mysql"
)

var (
	errKeyNotFound      = errors.New("key not found")
	errInvalidDelimiter = errors.New("delimiter must be a single character")
)

// newSQLSource opens the property table used by --sql.
var newSQLSource = func(ctx context.Context, envPrefix string, log logging.Adapter) (*sqlsource.Source, error) {
	cfg, err := mysql.ConfigFromEnv(envPrefix)
	if err != nil {
		return nil, fmt.Errorf("read database configuration: %w", err)
	}
	return mysql.NewSource(ctx, cfg, log)
}

// sourceFlags select the layers a command reads properties from.
// Later layers win: sql defaults, files, environment, --set.
// Env files back the process environment.
type sourceFlags struct {
	files        *[]string
	envFiles     *[]string
	envPrefix    *string
	set          *map[string]string
	delimiter    *string
	sql          *bool
	sqlEnvPrefix *string
}

func bindSourceFlags(cmd *kingpin.CmdClause) sourceFlags {
	return sourceFlags{
		files:        cmd.Flag("config", "Configuration file (yaml, json or toml), may be repeated").Short('c').ExistingFiles(),
		envFiles:     cmd.Flag("env-file", "Dotenv file consulted after the process environment, earlier files win").ExistingFiles(),
		envPrefix:    cmd.Flag("env-prefix", "Prefix of environment variables overriding file values").String(),
		set:          cmd.Flag("set", "Override a property, KEY=VALUE").StringMap(),
		delimiter:    cmd.Flag("delimiter", "List delimiter").Short('d').Default(string(propx.DefaultDelimiter)).String(),
		sql:          cmd.Flag("sql", "Read defaults from the MySQL property table").Bool(),
		sqlEnvPrefix: cmd.Flag("sql-env-prefix", "Prefix of the DB_* connection variables").String(),
	}
}

type cli struct {
	app     *kingpin.Application
	verbose *bool

	get       *kingpin.CmdClause
	getKey    *string
	getType   *string
	getSource sourceFlags

	interpolate       *kingpin.CmdClause
	interpolateText   *string
	interpolateSource sourceFlags

	split          *kingpin.CmdClause
	splitValue     *string
	splitDelimiter *string
}

func newCLI() *cli {
	c := &cli{
		app: kingpin.New("propx", "Resolves, interpolates and converts configuration properties"),
	}
	c.verbose = c.app.Flag("verbose", "Log debug messages").Short('v').Bool()

	c.get = c.app.Command("get", "Print a property converted to the requested type")
	c.getKey = c.get.Arg("key", "Dotted property key").Required().String()
	c.getType = c.get.Flag("type", "Conversion target: string, int8, int16, int32, int64, bigint, "+
		"float32, float64, decimal, bool, list or []<type>").Short('t').Default("string").String()
	c.getSource = bindSourceFlags(c.get)

	c.interpolate = c.app.Command("interpolate", "Expand ${key} markers in a template")
	c.interpolateText = c.interpolate.Arg("template", "Text containing ${key} markers").Required().String()
	c.interpolateSource = bindSourceFlags(c.interpolate)

	c.split = c.app.Command("split", "Split a value by a delimiter, honouring backslash escapes")
	c.splitValue = c.split.Arg("value", "Value to split").Required().String()
	c.splitDelimiter = c.split.Flag("delimiter", "List delimiter").Short('d').Default(string(propx.DefaultDelimiter)).String()

	return c
}

// execute runs the parsed command and writes its result to out.
func (c *cli) execute(ctx context.Context, command string, out io.Writer, log logging.Adapter) error {
	switch command {
	case c.get.FullCommand():
		return c.runGet(ctx, out, log)
	case c.interpolate.FullCommand():
		return c.runInterpolate(ctx, out, log)
	case c.split.FullCommand():
		return c.runSplit(out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *cli) runGet(ctx context.Context, out io.Writer, log logging.Adapter) error {
	text, err := readProperty(ctx, *c.getKey, *c.getType, c.getSource, log)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}

// readProperty loads the store, converts key to the named type and renders
// the result one line per element.
func readProperty(ctx context.Context, key, typeName string, flags sourceFlags, log logging.Adapter) (string, error) {
	target, err := propx.ParseTarget(typeName)
	if err != nil {
		return "", err
	}
	delim, err := parseDelimiter(*flags.delimiter)
	if err != nil {
		return "", err
	}
	if target.Kind == propx.TargetSequence {
		target = target.WithDelimiter(delim)
	}

	env, err := envResolver(flags)
	if err != nil {
		return "", err
	}
	store, err := loadStore(ctx, flags, env, log, key)
	if err != nil {
		return "", err
	}
	if !store.Has(key) {
		return "", fmt.Errorf("%w: %q", errKeyNotFound, key)
	}

	v, err := store.Convert(key, target)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if v.Kind() == propx.KindSequence {
		for _, elem := range v.Values() {
			b.WriteString(elem.String())
			b.WriteByte('\n')
		}
		return b.String(), nil
	}
	b.WriteString(v.String())
	b.WriteByte('\n')
	return b.String(), nil
}

func (c *cli) runInterpolate(ctx context.Context, out io.Writer, log logging.Adapter) error {
	env, err := envResolver(c.interpolateSource)
	if err != nil {
		return err
	}
	store, err := loadStore(ctx, c.interpolateSource, env, log)
	if err != nil {
		return err
	}

	lookup := store.Lookup()
	if env != nil {
		lookup = firstOf(lookup, env.Lookup())
	}
	text, err := propx.InterpolateString(*c.interpolateText, lookup)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

func (c *cli) runSplit(out io.Writer) error {
	delim, err := parseDelimiter(*c.splitDelimiter)
	if err != nil {
		return err
	}
	for _, part := range propx.Split(*c.splitValue, delim) {
		if _, err := fmt.Fprintln(out, part); err != nil {
			return err
		}
	}
	return nil
}

// envResolver chains the process environment with the --env-file layers.
// It returns nil when no env file is given.
func envResolver(flags sourceFlags) (*envx.StandardResolver, error) {
	if len(*flags.envFiles) == 0 {
		return nil, nil
	}
	resolver := envx.NewResolver(envx.EnvSource{})
	for _, path := range *flags.envFiles {
		src, err := envx.NewEnvFileSource(path)
		if err != nil {
			return nil, err
		}
		resolver.AddSource(src)
	}
	return resolver, nil
}

func firstOf(lookups ...propx.Lookup) propx.Lookup {
	return func(name string) (propx.Value, bool) {
		for _, lookup := range lookups {
			if v, ok := lookup(name); ok {
				return v, true
			}
		}
		return propx.Value{}, false
	}
}

// loadStore merges the layers selected by flags. keys are also looked up
// in the environment when no file defines them; env reads that environment
// when it is not nil.
func loadStore(ctx context.Context, flags sourceFlags, env *envx.StandardResolver, log logging.Adapter, keys ...string) (*confload.Store, error) {
	delim, err := parseDelimiter(*flags.delimiter)
	if err != nil {
		return nil, err
	}

	opts := []confload.Option{
		confload.WithLogger(log),
		confload.WithDelimiter(delim),
		confload.WithEnvPrefix(*flags.envPrefix),
		confload.WithEnvKeys(keys...),
		confload.WithFiles(*flags.files...),
	}

	if env != nil {
		opts = append(opts, confload.WithEnvLookup(func(name string) (string, bool) {
			val, ok, err := env.LookupValue(name)
			if err != nil {
				log.Warn("environment lookup failed", "name", name, "error", err)
			}
			return val, ok
		}))
	}

	if *flags.sql {
		defaults, err := sqlDefaults(ctx, *flags.sqlEnvPrefix, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, confload.WithDefaults(defaults))
	}

	if len(*flags.set) > 0 {
		overrides := make(map[string]any, len(*flags.set))
		for key, value := range *flags.set {
			overrides[key] = value
		}
		opts = append(opts, confload.WithOverrides(overrides))
	}

	return confload.New(opts...).Load()
}

func sqlDefaults(ctx context.Context, envPrefix string, log logging.Adapter) (map[string]any, error) {
	src, err := newSQLSource(ctx, envPrefix, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("close property database", "error", err)
		}
	}()

	values, err := src.Values(ctx, "")
	if err != nil {
		return nil, err
	}
	log.Debug("sql properties loaded", "source", src.Name(), "count", len(values))

	defaults := make(map[string]any, len(values))
	for key, value := range values {
		defaults[key] = value
	}
	return defaults, nil
}

func parseDelimiter(s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: %q", errInvalidDelimiter, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
