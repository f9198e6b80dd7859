package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Default ports per introspection platform.
const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// DSN returns the data source name for the platform's driver. A configured
// ConnectionString is used as is; otherwise one is built from the discrete fields.
func (d *DatabaseConfig) DSN(platformName string) (string, error) {
	if dsn := strings.TrimSpace(d.ConnectionString); dsn != "" {
		return dsn, nil
	}
	switch platformName {
	case "mysql":
		return d.mysqlDSN(), nil
	case "pgsql":
		return d.postgresDSN(), nil
	default:
		return "", fmt.Errorf("platform %q does not support live introspection", platformName)
	}
}

func (d *DatabaseConfig) mysqlDSN() string {
	port := d.Port
	if port == 0 {
		port = defaultMySQLPort
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(port))
	cfg.DBName = d.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if d.ConnectTimeout > 0 {
		cfg.Timeout = d.ConnectTimeout
	}
	if d.TLSMode != "" {
		cfg.TLSConfig = d.TLSMode
	}
	return cfg.FormatDSN()
}

func (d *DatabaseConfig) postgresDSN() string {
	port := d.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(port)),
		Path:   "/" + d.Database,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	query := url.Values{}
	if d.TLSMode != "" {
		query.Set("sslmode", d.TLSMode)
	}
	if d.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// EffectiveDatabaseName returns the database to introspect: the configured
// name, or the one embedded in a MySQL DSN.
func (d *DatabaseConfig) EffectiveDatabaseName(platformName string) (string, error) {
	configured := strings.TrimSpace(d.Database)
	dsn := strings.TrimSpace(d.ConnectionString)
	if dsn == "" || platformName != "mysql" {
		return configured, nil
	}

	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database.dsn is invalid: %w", err)
	}
	dsnDatabase := strings.TrimSpace(parsed.DBName)
	if configured != "" && dsnDatabase != "" && configured != dsnDatabase {
		return "", fmt.Errorf(
			"database mismatch: database.database=%q but database.dsn targets %q",
			configured,
			dsnDatabase,
		)
	}
	if configured != "" {
		return configured, nil
	}
	return dsnDatabase, nil
}
