//go:build testing

package config

const isTesting = true

func testingConfig() Config {
	devCfg := developmentConfig()
	return Config{
		Env: EnvTesting,
		DB: DBConfig{
			Driver:        DriverPostgres,
			User:          devCfg.DB.User,
			MaybePassword: devCfg.DB.MaybePassword,
			Host:          devCfg.DB.Host,
			Port:          devCfg.DB.Port,
			DBName:        "cardcheck_test",
		},
		Migrate: MigrateConfig{
			LedgerTable: DefaultLedgerTable,
			LockTimeout: devCfg.Migrate.LockTimeout,
		},
	}
}
