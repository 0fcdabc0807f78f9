package confload

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

var (
	errUnsupportedConfigFormat = errors.New("unsupported config file format")
	errConfigFileIsDir         = errors.New("config file path must be a file")
	errNilLoader               = errors.New("loader is nil")
)

const (
	defaultTagName = "k"
	keyDelim       = "."
)

// Loader aggregates configuration from defaults, files, environment variables and flags
// into an immutable Store. Later sources take precedence over earlier ones:
// struct tag defaults, defaults, files and readers, environment, flags, overrides.
type Loader struct {
	opts options
}

// SourceType describes where a configuration value originated from.
type SourceType string

// Known configuration value sources.
const (
	SourceStructDefault SourceType = "struct_default"
	SourceDefaults      SourceType = "defaults"
	SourceFile          SourceType = "file"
	SourceReader        SourceType = "reader"
	SourceEnv           SourceType = "env"
	SourceFlag          SourceType = "flag"
	SourceOverride      SourceType = "override"
)

// ValueOrigin provides provenance details for a configuration key.
type ValueOrigin struct {
	Source     SourceType
	Identifier string
}

// New constructs a configuration loader with the supplied options applied.
func New(opts ...Option) *Loader {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Loader{opts: o}
}

// Load reads every configured source and returns the merged store.
func (l *Loader) Load() (*Store, error) {
	if l == nil {
		return nil, errNilLoader
	}

	return l.load(nil, nil)
}

// LoadInto loads the configuration and unmarshals the entire tree into the provided type.
// Keys tagged on T are looked up in the environment, `default` tags supply the lowest
// priority values.
func LoadInto[T any](loader *Loader) (*T, error) {
	return LoadSubset[T](loader, "")
}

// LoadSubset loads the configuration and unmarshals the subtree rooted at prefix into the provided type.
func LoadSubset[T any](loader *Loader, prefix string) (*T, error) {
	if loader == nil {
		return nil, errNilLoader
	}

	var target T
	targetType := reflect.TypeOf(&target).Elem()
	tagName := normalizeTagName(loader.opts.TagName)

	store, err := loader.load(
		collectTaggedKeys(targetType, prefix, tagName),
		collectTagDefaults(targetType, prefix, tagName),
	)
	if err != nil {
		return nil, err
	}

	if loader.opts.Strict {
		err = validateStrict(
			store,
			collectAllowedKeys(targetType, prefix, tagName),
			collectMapPrefixes(targetType, prefix, tagName),
			prefix,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := store.Unmarshal(prefix, &target); err != nil {
		return nil, err
	}

	return &target, nil
}

// EnvName returns the environment variable name for a dotted path using loader options.
func (l *Loader) EnvName(dotted string) string {
	if l == nil {
		return ""
	}

	return envNameForKey(l.opts.EnvPrefix, dotted, l.opts.EnvKeyFunc, l.opts.EnvAliases)
}

func (l *Loader) load(keys []string, tagDefaults map[string]any) (*Store, error) {
	k := koanf.New(keyDelim)
	origins := make(map[string]ValueOrigin)

	if err := loadMap(k, tagDefaults, ValueOrigin{Source: SourceStructDefault}, origins); err != nil {
		return nil, fmt.Errorf("load struct tag defaults: %w", err)
	}

	if err := loadMap(k, l.opts.Defaults, ValueOrigin{Source: SourceDefaults}, origins); err != nil {
		return nil, fmt.Errorf("load default configuration: %w", err)
	}

	files, err := l.loadSources(k, origins)
	if err != nil {
		return nil, err
	}

	if err := l.loadEnv(k, envKeys(k, keys, l.opts.EnvKeys), origins); err != nil {
		return nil, err
	}

	if err := l.loadFlags(k, origins); err != nil {
		return nil, err
	}

	if err := loadMap(k, l.opts.Overrides, ValueOrigin{Source: SourceOverride}, origins); err != nil {
		return nil, fmt.Errorf("apply overrides: %w", err)
	}

	return &Store{
		k:       k,
		origins: origins,
		files:   uniqueStrings(files),
		opts:    l.opts,
	}, nil
}

func loadMap(k *koanf.Koanf, values map[string]any, origin ValueOrigin, origins map[string]ValueOrigin) error {
	if len(values) == 0 {
		return nil
	}

	cloned := cloneMap(values)
	if err := k.Load(confmap.Provider(cloned, keyDelim), nil); err != nil {
		return err
	}
	recordOrigins(cloned, origin, origins)

	return nil
}

func (l *Loader) loadSources(k *koanf.Koanf, origins map[string]ValueOrigin) ([]string, error) {
	log := l.opts.logger()
	loaded := make([]string, 0, len(l.opts.Sources)+1)
	for _, source := range l.opts.Sources {
		switch source.kind {
		case sourceFile:
			ok, err := loadFile(k, source.path, origins, source.optional)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Debug("optional config file skipped", "path", source.path)
				continue
			}
			loaded = append(loaded, filepath.Clean(strings.TrimSpace(source.path)))
			log.Debug("config file loaded", "path", source.path)
		case sourceReader:
			if source.readErr != nil {
				return nil, fmt.Errorf("read config reader %q: %w", source.path, source.readErr)
			}
			if err := loadReader(k, source.path, source.data, origins); err != nil {
				return nil, err
			}
			loaded = append(loaded, source.path)
		}
	}

	if l.opts.ConfigFileEnv == "" {
		return loaded, nil
	}
	if envPath := strings.TrimSpace(os.Getenv(l.opts.ConfigFileEnv)); envPath != "" {
		ok, err := loadFile(k, envPath, origins, false)
		if err != nil {
			return nil, err
		}
		if ok {
			loaded = append(loaded, filepath.Clean(envPath))
			log.Debug("config file loaded", "path", envPath, "env", l.opts.ConfigFileEnv)
		}
	}

	return loaded, nil
}

func loadFile(k *koanf.Koanf, path string, origins map[string]ValueOrigin, optional bool) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, nil
	}

	cleanPath := filepath.Clean(path)
	info, statErr := os.Stat(cleanPath)
	if statErr != nil {
		if optional && os.IsNotExist(statErr) {
			return false, nil
		}
		return false, fmt.Errorf("stat config file %q: %w", cleanPath, statErr)
	}
	if info.IsDir() {
		return false, fmt.Errorf("config file %q: %w", cleanPath, errConfigFileIsDir)
	}

	parser, err := parserForPath(cleanPath)
	if err != nil {
		return false, err
	}

	kFile := koanf.New(keyDelim)
	if err := kFile.Load(file.Provider(cleanPath), parser); err != nil {
		return false, fmt.Errorf("load config file %q: %w", cleanPath, err)
	}
	if err := k.Merge(kFile); err != nil {
		return false, fmt.Errorf("merge config file %q: %w", cleanPath, err)
	}
	recordOrigins(flattenKoanf(kFile), ValueOrigin{Source: SourceFile, Identifier: cleanPath}, origins)

	return true, nil
}

func loadReader(k *koanf.Koanf, name string, data []byte, origins map[string]ValueOrigin) error {
	parser, err := parserForPath(name)
	if err != nil {
		return err
	}

	kReader := koanf.New(keyDelim)
	if err := kReader.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("load config reader %q: %w", name, err)
	}
	if err := k.Merge(kReader); err != nil {
		return fmt.Errorf("merge config reader %q: %w", name, err)
	}
	recordOrigins(flattenKoanf(kReader), ValueOrigin{Source: SourceReader, Identifier: name}, origins)

	return nil
}

func parserForPath(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		if ext == "" {
			ext = "unknown"
		}

		return nil, fmt.Errorf("%w: %s", errUnsupportedConfigFormat, ext)
	}
}

func (l *Loader) loadFlags(k *koanf.Koanf, origins map[string]ValueOrigin) error {
	if l.opts.FlagSet == nil {
		return nil
	}

	values := make(map[string]any)
	identifiers := make(map[string]string)
	l.opts.FlagSet.Visit(func(f *flag.Flag) {
		dotted := flagKeyToDotted(f.Name)
		if provider, ok := f.Value.(interface{ DottedKey() string }); ok {
			if dk := strings.TrimSpace(provider.DottedKey()); dk != "" {
				dotted = dk
			}
		}
		if dotted == "" {
			return
		}

		values[dotted] = f.Value.String()
		identifiers[dotted] = f.Name
	})

	if len(values) == 0 {
		return nil
	}

	if err := k.Load(confmap.Provider(values, keyDelim), nil); err != nil {
		return fmt.Errorf("load flag configuration: %w", err)
	}
	for key := range values {
		origins[key] = ValueOrigin{Source: SourceFlag, Identifier: identifiers[key]}
	}

	return nil
}

func (l *Loader) loadEnv(k *koanf.Koanf, keys []string, origins map[string]ValueOrigin) error {
	if len(keys) == 0 {
		return nil
	}

	lookup := l.opts.EnvLookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	values := readEnvExact(lookup, l.opts.EnvPrefix, keys, l.opts.EnvKeyFunc, l.opts.EnvAliases)
	if len(values) == 0 {
		return nil
	}

	if err := k.Load(confmap.Provider(values, keyDelim), nil); err != nil {
		return fmt.Errorf("load environment configuration: %w", err)
	}
	for key := range values {
		origins[key] = ValueOrigin{
			Source:     SourceEnv,
			Identifier: envNameForKey(l.opts.EnvPrefix, key, l.opts.EnvKeyFunc, l.opts.EnvAliases),
		}
	}

	return nil
}

// envKeys merges the keys already known to k with the declared ones.
func envKeys(k *koanf.Koanf, declared ...[]string) []string {
	acc := make(map[string]struct{})
	for _, key := range k.Keys() {
		acc[key] = struct{}{}
	}
	for _, keys := range declared {
		for _, key := range keys {
			acc[key] = struct{}{}
		}
	}

	out := make([]string, 0, len(acc))
	for key := range acc {
		out = append(out, key)
	}
	sort.Strings(out)

	return out
}

func envName(prefix, dotted string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")

	return prefix + strings.ToUpper(replacer.Replace(dotted))
}

func normalizeTagName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return defaultTagName
	}

	return tag
}

func envNameForKey(prefix, dotted string, fn EnvKeyFunc, aliases map[string]string) string {
	if alias, ok := aliases[dotted]; ok {
		return strings.TrimSpace(alias)
	}

	if fn != nil {
		return strings.TrimSpace(fn(prefix, dotted))
	}

	return envName(prefix, dotted)
}

func readEnvExact(lookup EnvLookupFunc, prefix string, keys []string, fn EnvKeyFunc, aliases map[string]string) map[string]any {
	out := make(map[string]any)
	for _, key := range keys {
		envKey := envNameForKey(prefix, key, fn, aliases)
		if envKey == "" {
			continue
		}

		if val, ok := lookup(envKey); ok {
			out[key] = val

			continue
		}

		if list := readEnvList(lookup, envKey); len(list) > 0 {
			out[key] = list
		}
	}

	return out
}

// readEnvList collects NAME_0, NAME_1, ... until the first gap.
func readEnvList(lookup EnvLookupFunc, base string) []any {
	var values []any
	for idx := 0; ; idx++ {
		val, ok := lookup(fmt.Sprintf("%s_%d", base, idx))
		if !ok {
			return values
		}
		values = append(values, val)
	}
}

func flagKeyToDotted(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}

	replacer := strings.NewReplacer("-", ".", "__", ".", "_", ".")
	trimmed = replacer.Replace(trimmed)
	trimmed = strings.Trim(trimmed, ".")

	return strings.ToLower(trimmed)
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func cloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func recordOrigins(values map[string]any, origin ValueOrigin, origins map[string]ValueOrigin) {
	for key := range values {
		origins[key] = origin

		for parent := parentPath(key); parent != ""; parent = parentPath(parent) {
			if _, exists := origins[parent]; exists {
				continue
			}

			origins[parent] = origin
		}
	}
}

func parentPath(path string) string {
	idx := strings.LastIndex(path, keyDelim)
	if idx <= 0 {
		return ""
	}

	return path[:idx]
}

func flattenKoanf(k *koanf.Koanf) map[string]any {
	keys := k.Keys()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = k.Get(key)
	}

	return out
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	uniq := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}

	return uniq
}
