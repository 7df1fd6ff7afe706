package connpool

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/getpup/sharding-orchestrator"
	"github.com/go-sql-driver/mysql"
)

// DSN builds the driver name and data source name for a shard connection.
func DSN(conn sharding.ShardConnection) (driver string, dsn string, err error) {
	driver = conn.Driver
	if driver == "" {
		driver = sharding.DriverPostgres
	}

	switch driver {
	case sharding.DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(conn.Username, conn.Password),
			Host:     net.JoinHostPort(conn.Host, strconv.Itoa(portOr(conn.Port, 5432))),
			Path:     "/" + conn.DatabaseName,
			RawQuery: "sslmode=disable",
		}
		return driver, u.String(), nil

	case sharding.DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = conn.Username
		cfg.Passwd = conn.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(portOr(conn.Port, 3306)))
		cfg.DBName = conn.DatabaseName
		cfg.ParseTime = true
		cfg.MultiStatements = true
		return driver, cfg.FormatDSN(), nil

	case sharding.DriverSQLite:
		if conn.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite shard requires a database file")
		}
		return driver, "file:" + conn.DatabaseName + "?_foreign_keys=on", nil

	default:
		return "", "", fmt.Errorf("unsupported shard driver %q", driver)
	}
}

func portOr(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}
