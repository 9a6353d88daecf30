package config

func developmentConfig() Config {
	driver, err := ParseDriver(lookupEnvOr("CARDCHECK_DB_DRIVER", "postgres"))
	if err != nil {
		panic(err)
	}

	port := 5432
	if driver == DriverMySQL {
		port = 3306
	}

	return Config{
		Env: EnvDevelopment,
		DB: DBConfig{
			Driver:        driver,
			User:          lookupEnvOr("CARDCHECK_DB_USER", "postgres"),
			MaybePassword: nil,
			Host:          lookupEnvOr("CARDCHECK_DB_HOST", "localhost"),
			Port:          port,
			DBName:        "cardcheck_development",
			Path:          "cardcheck_development.db",
		},
		Migrate: migrateConfigFromEnv(),
	}
}
