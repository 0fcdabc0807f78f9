package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/velmie/x/propx/sqlsource"
)

const (
	defaultTLSConfigName = "propxMysqlTLSConfig"

	defaultConnMaxIdleTime = 10 * time.Minute
	defaultConnMaxLifetime = 1 * time.Hour
)

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// DSN formats the driver data source name for cfg.
func (cfg *Config) DSN() string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Name
	c.ParseTime = true
	c.ClientFoundRows = true
	if cfg.TLSConfig != nil {
		c.TLSConfig = defaultTLSConfigName
	}
	return c.FormatDSN()
}

// NewConnection creates new database connection
func NewConnection(ctx context.Context, cfg *Config, log Logger) (*sql.DB, error) {
	if cfg.TLSConfig != nil {
		if err := mysql.RegisterTLSConfig(defaultTLSConfigName, cfg.TLSConfig); err != nil {
			return nil, fmt.Errorf("cannot register mysql tls config: %w", err)
		}
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("cannot open mysql connection: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql connection is not established: %w", err)
	}

	if err = configurePool(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("maximum number of database connections is set", "maxConn", cfg.MaxOpenConnections)
	log.Info("maximum number of idle database connections is set", "maxIdleConn", cfg.MaxIdleConnections)
	log.Info("maximum life time of idle database connections is set", "minutes", cfg.ConnMaxIdleTime.Minutes())
	log.Info("maximum life time of database connections is set", "minutes", cfg.ConnMaxLifetime.Minutes())

	return db, nil
}

// NewSource connects to the database and returns the property table named by cfg.
func NewSource(ctx context.Context, cfg *Config, log Logger) (*sqlsource.Source, error) {
	db, err := NewConnection(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	src, err := sqlsource.New(db, sqlsource.WithTable(cfg.Table), sqlsource.WithLogger(log))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// configurePool sizes the pool from the server's max_connections unless cfg sets the limits.
func configurePool(ctx context.Context, db *sql.DB, cfg *Config) error {
	if cfg.MaxIdleConnections == 0 || cfg.MaxOpenConnections == 0 {
		var (
			maxConn int
			name    string
		)
		err := db.QueryRowContext(ctx, "SHOW VARIABLES LIKE 'max_connections'").Scan(&name, &maxConn)
		if err != nil {
			return fmt.Errorf("cannot get maximum number of connections: %w", err)
		}

		const (
			maxOpenConnsCoefficient = .9
			maxIdleConnsCoefficient = .1
		)

		if cfg.MaxIdleConnections == 0 {
			cfg.MaxIdleConnections = max(int(float64(maxConn)*maxIdleConnsCoefficient), 1)
		}
		if cfg.MaxOpenConnections == 0 {
			cfg.MaxOpenConnections = max(int(float64(maxConn)*maxOpenConnsCoefficient), 1)
		}
	}

	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaultConnMaxLifetime
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return nil
}
