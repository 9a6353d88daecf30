package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Config struct {
	Env     Env
	DB      DBConfig
	Migrate MigrateConfig
}

type Env int

const (
	EnvDevelopment Env = iota
	EnvTesting
	EnvProduction
)

func (e Env) IsDevOrTest() bool {
	return e == EnvDevelopment || e == EnvTesting
}

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func ParseDriver(s string) (Driver, error) {
	switch s {
	case "postgres", "postgresql":
		return DriverPostgres, nil
	case "mysql":
		return DriverMySQL, nil
	case "sqlite", "sqlite3", "file":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", s)
	}
}

type DBConfig struct {
	Driver        Driver
	User          string
	MaybePassword *string
	Host          string
	Port          int
	DBName        string
	// Path is the database file for sqlite
	Path string
}

func (c DBConfig) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		mysqlCfg := mysql.NewConfig()
		mysqlCfg.User = c.User
		if c.MaybePassword != nil {
			mysqlCfg.Passwd = *c.MaybePassword
		}
		mysqlCfg.Net = "tcp"
		mysqlCfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mysqlCfg.DBName = c.DBName
		mysqlCfg.ParseTime = true
		return mysqlCfg.FormatDSN()
	case DriverSQLite:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", c.Path)
	default:
		password := ""
		if c.MaybePassword != nil {
			password = fmt.Sprintf(" password=%s", *c.MaybePassword)
		}
		return fmt.Sprintf("user=%s%s host=%s port=%d dbname=%s", c.User, password, c.Host, c.Port, c.DBName)
	}
}

// Name identifies the database for lock keys and log lines.
func (c DBConfig) Name() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.DBName
}

type MigrateConfig struct {
	LedgerTable string
	LockTimeout time.Duration
	// Dir is a directory of yaml migrations to use instead of the compiled-in ones
	Dir string
}

const (
	DefaultLedgerTable = "schema_migrations"
	DefaultLockTimeout = 10 * time.Second
)

var Cfg Config

func init() {
	if isTesting {
		Cfg = testingConfig()
		return
	}

	_, ok := os.LookupEnv("CARDCHECK_ENV")
	if !ok {
		Cfg = developmentConfig()
		return
	}

	Cfg = productionConfig()
}

func migrateConfigFromEnv() MigrateConfig {
	cfg := MigrateConfig{
		LedgerTable: DefaultLedgerTable,
		LockTimeout: DefaultLockTimeout,
	}
	if table, ok := os.LookupEnv("CARDCHECK_MIGRATE_LEDGER_TABLE"); ok {
		cfg.LedgerTable = table
	}
	if timeoutStr, ok := os.LookupEnv("CARDCHECK_MIGRATE_LOCK_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			panic(fmt.Errorf("CARDCHECK_MIGRATE_LOCK_TIMEOUT: %w", err))
		}
		cfg.LockTimeout = timeout
	}
	if dir, ok := os.LookupEnv("CARDCHECK_MIGRATE_DIR"); ok {
		cfg.Dir = dir
	}
	return cfg
}

func lookupEnvOr(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
