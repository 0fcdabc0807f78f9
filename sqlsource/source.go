// Package sqlsource stores hierarchical properties in a SQL table.
//
// Keys are dot separated paths such as "db.primary.host". The table holds one
// row per key:
//
//	CREATE TABLE properties (
//		name  VARCHAR(255) NOT NULL PRIMARY KEY,
//		value TEXT         NOT NULL
//	);
//
// Source implements envx.Source, so a table can be chained with the
// environment and files, and values may reference other keys with ${name}.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultTable is the table used unless WithTable is given.
const DefaultTable = "properties"

const keySeparator = "."

var (
	errInvalidTable = errors.New("sqlsource: invalid table name")
	errEmptyKey     = errors.New("sqlsource: empty key")

	tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	likeMeta  = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// Logger specifies simple logger
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Option configures a Source.
type Option func(*Source)

// WithTable sets the table holding the properties.
func WithTable(name string) Option {
	return func(s *Source) {
		s.table = name
	}
}

// WithLogger sets the logger used to report rollback failures.
func WithLogger(logger Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Source reads and writes properties of a single table.
// It is safe for concurrent use, pooling is left to *sql.DB.
type Source struct {
	db     *sql.DB
	table  string
	logger Logger

	selectValue string
	selectKeys  string
	selectAll   string
	countRows   string
	updateValue string
	insertValue string
	deleteTree  string
}

// New returns a Source over db.
func New(db *sql.DB, opts ...Option) (*Source, error) {
	s := &Source{
		db:     db,
		table:  DefaultTable,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if !tableName.MatchString(s.table) {
		return nil, fmt.Errorf("%w: %q", errInvalidTable, s.table)
	}

	s.selectValue = fmt.Sprintf("SELECT value FROM %s WHERE name = ?", s.table)
	s.selectKeys = fmt.Sprintf(`SELECT name FROM %s WHERE name = ? OR name LIKE ? ESCAPE '\\' ORDER BY name`, s.table)
	s.selectAll = fmt.Sprintf(`SELECT name, value FROM %s WHERE name = ? OR name LIKE ? ESCAPE '\\' ORDER BY name`, s.table)
	s.countRows = fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	s.updateValue = fmt.Sprintf("UPDATE %s SET value = ? WHERE name = ?", s.table)
	s.insertValue = fmt.Sprintf("INSERT INTO %s (name, value) VALUES (?, ?)", s.table)
	s.deleteTree = fmt.Sprintf(`DELETE FROM %s WHERE name = ? OR name LIKE ? ESCAPE '\\'`, s.table)

	return s, nil
}

// Name identifies the source in resolver error handling.
func (s *Source) Name() string {
	return "sql:" + s.table
}

// Close closes the underlying database.
func (s *Source) Close() error {
	return s.db.Close()
}

// Lookup implements envx.Source.
func (s *Source) Lookup(name string) (string, bool, error) {
	return s.LookupContext(context.Background(), name)
}

// LookupContext returns the value stored under name. A missing row is not an error.
func (s *Source) LookupContext(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.conn(ctx).QueryRowContext(ctx, s.selectValue, name).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("lookup %q: %w", name, err)
	}
	return value, true, nil
}

// Keys returns the sorted keys equal to prefix or nested below it.
// An empty prefix returns every key.
func (s *Source) Keys(ctx context.Context, prefix string) ([]string, error) {
	name, pattern := treeArgs(prefix)
	rows, err := s.conn(ctx).QueryContext(ctx, s.selectKeys, name, pattern)
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list keys %q: %w", prefix, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	return keys, nil
}

// Values returns the keys equal to prefix or nested below it with their values.
func (s *Source) Values(ctx context.Context, prefix string) (map[string]string, error) {
	name, pattern := treeArgs(prefix)
	rows, err := s.conn(ctx).QueryContext(ctx, s.selectAll, name, pattern)
	if err != nil {
		return nil, fmt.Errorf("read values %q: %w", prefix, err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("read values %q: %w", prefix, err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read values %q: %w", prefix, err)
	}
	return values, nil
}

// IsEmpty reports whether the table holds no properties.
func (s *Source) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := s.conn(ctx).QueryRowContext(ctx, s.countRows).Scan(&count); err != nil {
		return false, fmt.Errorf("count properties: %w", err)
	}
	return count == 0, nil
}

// Set stores value under key, replacing the previous value.
func (s *Source) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errEmptyKey
	}
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		c := s.conn(ctx)
		res, err := c.ExecContext(ctx, s.updateValue, value, key)
		if err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		// MySQL reports changed rows, so an unchanged value looks like a missing key.
		_, exists, err := s.LookupContext(ctx, key)
		if err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		if exists {
			return nil
		}
		if _, err := c.ExecContext(ctx, s.insertValue, key, value); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		return nil
	})
}

// SetAll stores every value in a single transaction, in key order.
func (s *Source) SetAll(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return s.WithTransaction(ctx, func(ctx context.Context) error {
		for _, key := range keys {
			if err := s.Set(ctx, key, values[key]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes key together with every key nested below it and
// returns the number of removed properties.
func (s *Source) Clear(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, errEmptyKey
	}
	name, pattern := treeArgs(key)
	res, err := s.conn(ctx).ExecContext(ctx, s.deleteTree, name, pattern)
	if err != nil {
		return 0, fmt.Errorf("clear %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear %q: %w", key, err)
	}
	return n, nil
}

// treeArgs returns the arguments matching prefix itself and every key below it.
func treeArgs(prefix string) (string, string) {
	if prefix == "" {
		return "", "%"
	}
	return prefix, likeMeta.Replace(prefix+keySeparator) + "%"
}
