package db

import (
	"context"
	"database/sql"

	"cardcheck/config"
	"cardcheck/db/migrator"
	"cardcheck/db/pgw"
	"cardcheck/db/schema"
	"cardcheck/log"
	"cardcheck/oops"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// session is one connection held for the whole command, advisory locks live on it.
type session struct {
	driver  migrator.Driver
	release func()
}

func (s *session) Close() {
	s.release()
}

func openSession(ctx context.Context, cfg config.DBConfig) (*session, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgw.NewPool(ctx, cfg.DSN())
		if err != nil {
			return nil, oops.Wrapf(err, "connect to %s", cfg.Name())
		}
		conn, err := pool.AcquireBackground()
		if err != nil {
			pool.Close()
			return nil, oops.Wrapf(err, "connect to %s", cfg.Name())
		}
		return &session{
			driver: migrator.NewPgDriver(conn, cfg.DBName),
			release: func() {
				log.Debug().Dur("db_duration", pgw.DbDuration(conn.Context())).Msg("Released connection")
				conn.Release()
				pool.Close()
			},
		}, nil
	case config.DriverMySQL, config.DriverSQLite:
		var dialect schema.Dialect = schema.SQLite{}
		if cfg.Driver == config.DriverMySQL {
			dialect = schema.MySQL{}
		}
		db, err := sql.Open(string(cfg.Driver), cfg.DSN())
		if err != nil {
			return nil, oops.Wrapf(err, "open %s", cfg.Name())
		}
		conn, err := db.Conn(ctx)
		if err != nil {
			_ = db.Close()
			return nil, oops.Wrapf(err, "connect to %s", cfg.Name())
		}
		return &session{
			driver: migrator.NewSQLDriver(ctx, conn, dialect),
			release: func() {
				if err := conn.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close connection")
				}
				if err := db.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close database")
				}
			},
		}, nil
	default:
		return nil, oops.Newf("unsupported database driver: %q", cfg.Driver)
	}
}
