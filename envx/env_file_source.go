package envx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// EnvFileSource serves the NAME=VALUE pairs of a dotenv file.
// The file is read once; values keep their ${NAME} markers.
type EnvFileSource struct {
	path   string
	values map[string]string
}

// NewEnvFileSource reads and parses the dotenv file at path.
func NewEnvFileSource(path string) (*EnvFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	values, err := ParseEnvFile(f)
	if err != nil {
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}

	return &EnvFileSource{path: path, values: values}, nil
}

// Lookup implements Source.
func (s *EnvFileSource) Lookup(name string) (string, bool, error) {
	value, found := s.values[name]
	return value, found, nil
}

// Name implements Source.
func (s *EnvFileSource) Name() string {
	return "env-file[" + s.path + "]"
}

// ParseEnvFile reads dotenv lines. Blank lines and # comments are skipped,
// an "export " prefix is accepted and one pair of matching quotes is removed
// from the value. A later line overrides an earlier one.
func ParseEnvFile(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}

		name, value, ok := strings.Cut(strings.TrimPrefix(text, "export "), "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected NAME=VALUE", line)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("line %d: empty name", line)
		}

		values[name] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	if q := value[0]; (q == '"' || q == '\'') && value[len(value)-1] == q {
		return value[1 : len(value)-1]
	}
	return value
}
