package sqlsource_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmie/x/propx/envx"
	. "github.com/velmie/x/propx/sqlsource"
)

const (
	selectValue = "SELECT value FROM properties WHERE name = ?"
	selectKeys  = `SELECT name FROM properties WHERE name = ? OR name LIKE ? ESCAPE '\\' ORDER BY name`
	selectAll   = `SELECT name, value FROM properties WHERE name = ? OR name LIKE ? ESCAPE '\\' ORDER BY name`
	countRows   = "SELECT COUNT(*) FROM properties"
	updateValue = "UPDATE properties SET value = ? WHERE name = ?"
	insertValue = "INSERT INTO properties (name, value) VALUES (?, ?)"
	deleteTree  = `DELETE FROM properties WHERE name = ? OR name LIKE ? ESCAPE '\\'`
)

func TestNew_InvalidTable(t *testing.T) {
	db, _ := testDBWithMock(t)

	_, err := New(db, WithTable("props; DROP TABLE users"))
	require.Error(t, err)

	src, err := New(db, WithTable("app_settings"))
	require.NoError(t, err)
	assert.Equal(t, "sql:app_settings", src.Name())
}

func TestSource_Lookup(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectQuery(selectValue).WithArgs("db.host").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("db.local"))
	mock.ExpectQuery(selectValue).WithArgs("db.port").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectQuery(selectValue).WithArgs("db.user").
		WillReturnError(errors.New("connection reset"))

	val, ok, err := src.Lookup("db.host")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "db.local", val)

	_, ok, err = src.LookupContext(context.Background(), "db.port")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = src.Lookup("db.user")
	require.ErrorContains(t, err, "connection reset")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_Keys(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectQuery(selectKeys).WithArgs("db", "db.%").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("db").AddRow("db.host").AddRow("db.port"))
	mock.ExpectQuery(selectKeys).WithArgs("my_app", `my\_app.%`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(selectKeys).WithArgs("", "%").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))

	keys, err := src.Keys(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "db.host", "db.port"}, keys)

	keys, err = src.Keys(context.Background(), "my_app")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = src.Keys(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_Values(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectQuery(selectAll).WithArgs("", "%").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("db.host", "db.local").
			AddRow("db.url", "mysql://${db.host}"))

	values, err := src.Values(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"db.host": "db.local", "db.url": "mysql://${db.host}"}, values)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_IsEmpty(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectQuery(countRows).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(countRows).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	empty, err := src.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = src.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.False(t, empty)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_Set(t *testing.T) {
	t.Run("update existing", func(t *testing.T) {
		db, mock := testDBWithMock(t)
		src := newSource(t, db)

		mock.ExpectBegin()
		mock.ExpectExec(updateValue).WithArgs("0x1F90", "port").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, src.Set(context.Background(), "port", "0x1F90"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert missing", func(t *testing.T) {
		db, mock := testDBWithMock(t)
		src := newSource(t, db)

		mock.ExpectBegin()
		mock.ExpectExec(updateValue).WithArgs("8080", "port").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectValue).WithArgs("port").WillReturnRows(sqlmock.NewRows([]string{"value"}))
		mock.ExpectExec(insertValue).WithArgs("port", "8080").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, src.Set(context.Background(), "port", "8080"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged existing", func(t *testing.T) {
		db, mock := testDBWithMock(t)
		src := newSource(t, db)

		mock.ExpectBegin()
		mock.ExpectExec(updateValue).WithArgs("8080", "port").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectValue).WithArgs("port").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("8080"))
		mock.ExpectCommit()

		require.NoError(t, src.Set(context.Background(), "port", "8080"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure rolls back", func(t *testing.T) {
		db, mock := testDBWithMock(t)
		src := newSource(t, db)

		mock.ExpectBegin()
		mock.ExpectExec(updateValue).WithArgs("x", "port").WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		err := src.Set(context.Background(), "port", "x")
		require.ErrorContains(t, err, "deadlock")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty key", func(t *testing.T) {
		db, _ := testDBWithMock(t)
		src := newSource(t, db)

		require.Error(t, src.Set(context.Background(), "", "x"))
	})
}

func TestSource_SetAllSharesTransaction(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectBegin()
	mock.ExpectExec(updateValue).WithArgs("db.local", "db.host").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateValue).WithArgs("3306", "db.port").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectValue).WithArgs("db.port").WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec(insertValue).WithArgs("db.port", "3306").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := src.SetAll(context.Background(), map[string]string{
		"db.port": "3306",
		"db.host": "db.local",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_Clear(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectExec(deleteTree).WithArgs("db", "db.%").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := src.Clear(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = src.Clear(context.Background(), "")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSource_ResolverChain(t *testing.T) {
	db, mock := testDBWithMock(t)
	src := newSource(t, db)

	mock.ExpectQuery(selectValue).WithArgs("DSN").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("mysql://${DB_HOST}:${DB_PORT}"))
	mock.ExpectQuery(selectValue).WithArgs("DB_PORT").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("0xCEA"))
	mock.ExpectQuery(selectValue).WithArgs("DB_PORT").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("0xCEA"))

	resolver := envx.NewResolver(
		envx.NewMapSource(map[string]string{"DB_HOST": "db.local"}, "defaults"),
		src,
	)

	v, err := resolver.Get("DSN")
	require.NoError(t, err)
	dsn, err := v.Expand().String()
	require.NoError(t, err)
	assert.Equal(t, "mysql://db.local:0xCEA", dsn)

	v, err = resolver.Get("DB_PORT")
	require.NoError(t, err)
	port, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, 3306, port)

	require.NoError(t, mock.ExpectationsWereMet())
}

func newSource(t *testing.T, db *sql.DB) *Source {
	t.Helper()

	src, err := New(db, WithLogger(noopLogger{}))
	require.NoError(t, err)

	return src
}

func testDBWithMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db, mock
}

type noopLogger struct{}

func (noopLogger) Warn(_ string, _ ...any) {
	return // do nothing
}
