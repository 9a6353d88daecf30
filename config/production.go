package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

func productionConfig() Config {
	dbConfig, err := parseDatabaseUrl(mustLookupEnv("DATABASE_URL"))
	if err != nil {
		panic(err)
	}

	return Config{
		Env:     EnvProduction,
		DB:      dbConfig,
		Migrate: migrateConfigFromEnv(),
	}
}

func parseDatabaseUrl(databaseUrl string) (DBConfig, error) {
	dbUri, err := url.Parse(databaseUrl)
	if err != nil {
		return DBConfig{}, err
	}
	driver, err := ParseDriver(dbUri.Scheme)
	if err != nil {
		return DBConfig{}, err
	}
	if driver == DriverSQLite {
		path := dbUri.Opaque
		if path == "" {
			path = dbUri.Host + dbUri.Path
		}
		return DBConfig{Driver: driver, Path: path}, nil
	}

	dbPassword, ok := dbUri.User.Password()
	if !ok {
		return DBConfig{}, fmt.Errorf("password is not in the database url")
	}
	dbPort := 5432
	if driver == DriverMySQL {
		dbPort = 3306
	}
	if dbUri.Port() != "" {
		dbPort, err = strconv.Atoi(dbUri.Port())
		if err != nil {
			return DBConfig{}, err
		}
	}
	if len(dbUri.Path) < 2 {
		return DBConfig{}, fmt.Errorf("database name is not in the database url")
	}

	return DBConfig{
		Driver:        driver,
		User:          dbUri.User.Username(),
		MaybePassword: &dbPassword,
		Host:          dbUri.Hostname(),
		Port:          dbPort,
		DBName:        dbUri.Path[1:],
	}, nil
}

func mustLookupEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Errorf("%s environment variable not set", key))
	}
	return value
}
