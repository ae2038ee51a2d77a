// Package drivers registers the database/sql drivers for every supported
// dialect, builds their connection strings and classifies their errors.
package drivers

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/microsoft/go-mssqldb" // registers "sqlserver"
	"github.com/microsoft/go-mssqldb/msdsn"
	go_ora "github.com/sijms/go-ora/v2"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
)

// DriverName returns the database/sql driver registered for a dialect.
func DriverName(name string) (string, error) {
	canonical, err := dialect.Canonical(name)
	if err != nil {
		return "", err
	}
	switch canonical {
	case "mysql":
		return "mysql", nil
	case "postgresql":
		return "pgx", nil
	case "sqlite":
		return sqliteDriver, nil
	case "mssql":
		return "sqlserver", nil
	default:
		return "oracle", nil
	}
}

// DSN builds the driver connection string for a connection config. An
// explicit DSN is validated where the driver offers a parser, then used
// as is.
func DSN(cfg config.ConnectionConfig) (string, error) {
	canonical, err := dialect.Canonical(cfg.Dialect)
	if err != nil {
		return "", err
	}
	switch canonical {
	case "mysql":
		return mysqlDSN(cfg)
	case "postgresql":
		return postgresDSN(cfg)
	case "sqlite":
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		if cfg.Database == "" {
			return "", fmt.Errorf("sqlite connection needs a database file")
		}
		return sqliteDSN(config.ExpandHome(cfg.Database), cfg.Options), nil
	case "mssql":
		return mssqlDSN(cfg)
	default:
		return oracleDSN(cfg), nil
	}
}

func mysqlDSN(cfg config.ConnectionConfig) (string, error) {
	if cfg.DSN != "" {
		if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		return cfg.DSN, nil
	}
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	if cfg.SSL {
		mc.TLSConfig = "true"
	}
	if len(cfg.Options) > 0 {
		mc.Params = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN(), nil
}

func postgresDSN(cfg config.ConnectionConfig) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		q := url.Values{}
		if cfg.SSL {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
		if cfg.Schema != "" {
			q.Set("search_path", cfg.Schema)
		}
		for k, v := range cfg.Options {
			q.Set(k, v)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:     "/" + cfg.Database,
			RawQuery: q.Encode(),
		}
		dsn = u.String()
	}
	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres dsn: %w", err)
	}
	return dsn, nil
}

func mssqlDSN(cfg config.ConnectionConfig) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		q := url.Values{}
		q.Set("database", cfg.Database)
		if cfg.SSL {
			q.Set("encrypt", "true")
		} else {
			q.Set("encrypt", "disable")
		}
		for k, v := range cfg.Options {
			q.Set(k, v)
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			RawQuery: q.Encode(),
		}
		dsn = u.String()
	}
	if _, err := msdsn.Parse(dsn); err != nil {
		return "", fmt.Errorf("mssql dsn: %w", err)
	}
	return dsn, nil
}

func oracleDSN(cfg config.ConnectionConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	opts := make(map[string]string, len(cfg.Options)+1)
	for k, v := range cfg.Options {
		opts[k] = v
	}
	if cfg.SSL {
		opts["SSL"] = "enable"
	}
	return go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, opts)
}

// Open connects to the configured database and reserves one connection.
func Open(ctx context.Context, cfg config.ConnectionConfig) (*conn.SQLConn, error) {
	driver, err := DriverName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	return conn.Open(ctx, driver, dsn)
}

// Describe returns the connection target without credentials, for logs.
func Describe(cfg config.ConnectionConfig) string {
	if cfg.Host == "" {
		return fmt.Sprintf("%s %s", cfg.Dialect, cfg.Database)
	}
	return fmt.Sprintf("%s %s:%d/%s", cfg.Dialect, cfg.Host, cfg.Port, cfg.Database)
}
