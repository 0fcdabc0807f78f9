package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velmie/x/propx"
	"github.com/velmie/x/propx/internal/logging"
	"github.com/velmie/x/propx/sqlsource"
)

const cliYAML = `base_port: "0x1F90"
port: "${base_port}"
service:
  name: billing
  url: "http://${service.name}:${port}"
  hosts: "a, b, c"
  tags: 'x;y\;z'
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	c := newCLI()
	command, err := c.app.Parse(args)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	err = c.execute(context.Background(), command, &out, logging.Adapt(zap.NewNop()))

	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliYAML), 0o600))

	return path
}

func TestSplit(t *testing.T) {
	out, err := runCLI(t, "split", `a, b\,c ,d`)
	require.NoError(t, err)
	assert.Equal(t, "a\nb,c\nd\n", out)

	out, err = runCLI(t, "split", `x;y\;z`, "--delimiter", ";")
	require.NoError(t, err)
	assert.Equal(t, "x\ny;z\n", out)

	_, err = runCLI(t, "split", "a,b", "--delimiter", "ab")
	require.ErrorIs(t, err, errInvalidDelimiter)
}

func TestGet(t *testing.T) {
	config := writeConfig(t)

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{name: "hex reference as int32", args: []string{"port", "-t", "int32"}, expected: "8080\n"},
		{name: "bigint", args: []string{"base_port", "--type", "bigint"}, expected: "8080\n"},
		{name: "nested interpolation", args: []string{"service.url"}, expected: "http://billing:0x1F90\n"},
		{name: "list", args: []string{"service.hosts", "-t", "list"}, expected: "a\nb\nc\n"},
		{name: "typed list", args: []string{"service.hosts", "-t", "[]string"}, expected: "a\nb\nc\n"},
		{
			name:     "custom delimiter",
			args:     []string{"service.tags", "-t", "list", "-d", ";"},
			expected: "x\ny;z\n",
		},
		{name: "override", args: []string{"port", "--set", "port=010", "-t", "int16"}, expected: "8\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"get", "-c", config, "--env-prefix", "CLI_GET_TEST"}, tt.args...)
			out, err := runCLI(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestGet_Errors(t *testing.T) {
	config := writeConfig(t)
	base := []string{"get", "-c", config, "--env-prefix", "CLI_GET_ERR_TEST"}

	_, err := runCLI(t, append(base, "port", "-t", "int8")...)
	require.ErrorIs(t, err, propx.ErrConversion)

	_, err = runCLI(t, append(base, "port", "-t", "uint")...)
	require.ErrorIs(t, err, propx.ErrUnsupportedTarget)

	_, err = runCLI(t, append(base, "nope")...)
	require.ErrorIs(t, err, errKeyNotFound)

	_, err = runCLI(t, "get", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "port")
	require.Error(t, err)

	_, err = runCLI(t, "get")
	require.Error(t, err)
}

func TestGet_Environment(t *testing.T) {
	config := writeConfig(t)
	t.Setenv("CLI_ENV_TEST_BASE_PORT", "0x2000")
	t.Setenv("CLI_ENV_TEST_EXTRA_KEY", "from env")

	out, err := runCLI(t, "get", "-c", config, "--env-prefix", "CLI_ENV_TEST", "port", "-t", "int64")
	require.NoError(t, err)
	assert.Equal(t, "8192\n", out)

	out, err = runCLI(t, "get", "--env-prefix", "CLI_ENV_TEST", "extra.key")
	require.NoError(t, err)
	assert.Equal(t, "from env\n", out)
}

func TestGet_EnvFile(t *testing.T) {
	config := writeConfig(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("CLI_DOTENV_BASE_PORT=0x2000\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(
		"CLI_DOTENV_BASE_PORT=1\nexport CLI_DOTENV_SERVICE_HOSTS=\"x, y\"\n"), 0o600))

	out, err := runCLI(t, "get", "-c", config, "--env-prefix", "CLI_DOTENV",
		"--env-file", first, "--env-file", second, "port", "-t", "int64")
	require.NoError(t, err)
	assert.Equal(t, "8192\n", out)

	out, err = runCLI(t, "get", "-c", config, "--env-prefix", "CLI_DOTENV",
		"--env-file", second, "service.hosts", "-t", "list")
	require.NoError(t, err)
	assert.Equal(t, "x\ny\n", out)

	t.Setenv("CLI_DOTENV_BASE_PORT", "0x10")
	out, err = runCLI(t, "get", "-c", config, "--env-prefix", "CLI_DOTENV",
		"--env-file", first, "port", "-t", "int64")
	require.NoError(t, err)
	assert.Equal(t, "16\n", out)
}

func TestInterpolate_EnvFile(t *testing.T) {
	config := writeConfig(t)
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("# deploy\nCLI_DOTENV_REGION='eu-1'\nservice.name=shadowed\n"), 0o600))

	out, err := runCLI(t, "interpolate", "-c", config, "--env-file", dotenv,
		"${service.name}@${CLI_DOTENV_REGION}")
	require.NoError(t, err)
	assert.Equal(t, "billing@eu-1\n", out)

	broken := filepath.Join(t.TempDir(), "broken.env")
	require.NoError(t, os.WriteFile(broken, []byte("NOT A PAIR\n"), 0o600))
	_, err = runCLI(t, "interpolate", "--env-file", broken, "${x}")
	require.ErrorContains(t, err, "line 1")
}

func TestInterpolate(t *testing.T) {
	config := writeConfig(t)

	out, err := runCLI(t, "interpolate", "-c", config, "--env-prefix", "CLI_INTERPOLATE_TEST",
		"${service.name} listens on ${port}, ${missing} stays")
	require.NoError(t, err)
	assert.Equal(t, "billing listens on 0x1F90, ${missing} stays\n", out)

	_, err = runCLI(t, "interpolate", "--env-prefix", "CLI_INTERPOLATE_TEST",
		"--set", "a=${b}", "--set", "b=${a}", "value: ${a}")
	require.ErrorIs(t, err, propx.ErrCyclicReference)
}

func TestInterpolate_SQLDefaults(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT name, value FROM properties WHERE name = ? OR name LIKE ? ESCAPE '\\' ORDER BY name`).
		WithArgs("", "%").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("db.host", "db.local").
			AddRow("db.port", "3306").
			AddRow("db.url", "mysql://${db.host}:${db.port}"))
	mock.ExpectClose()

	original := newSQLSource
	t.Cleanup(func() {
		newSQLSource = original
	})

	var gotPrefix string
	newSQLSource = func(_ context.Context, envPrefix string, _ logging.Adapter) (*sqlsource.Source, error) {
		gotPrefix = envPrefix
		return sqlsource.New(db)
	}

	out, err := runCLI(t, "interpolate", "--env-prefix", "CLI_SQL_TEST",
		"--sql", "--sql-env-prefix", "PROPS_", "--set", "db.port=3307", "${db.url}")
	require.NoError(t, err)
	assert.Equal(t, "mysql://db.local:3307\n", out)
	assert.Equal(t, "PROPS_", gotPrefix)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInterpolate_SQLUnavailable(t *testing.T) {
	original := newSQLSource
	t.Cleanup(func() {
		newSQLSource = original
	})
	newSQLSource = func(context.Context, string, logging.Adapter) (*sqlsource.Source, error) {
		return nil, sql.ErrConnDone
	}

	_, err := runCLI(t, "interpolate", "--sql", "${db.url}")
	require.ErrorIs(t, err, sql.ErrConnDone)
}
