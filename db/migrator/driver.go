package migrator

import (
	"cardcheck/db/schema"
)

type Execer interface {
	// Exec returns the number of affected rows.
	Exec(sql string, args ...any) (int64, error)
	Query(sql string, args ...any) (schema.Rows, error)
}

type Tx interface {
	Execer
	Commit() error
	// Rollback is a no-op after Commit.
	Rollback() error
}

// Driver is an open session on the target database, supplied by the caller. Statements run to completion on it
// regardless of the runner's context. Locks taken with TryLock are held by the session until Unlock.
type Driver interface {
	Execer
	Dialect() schema.Dialect
	Begin() (Tx, error)
	TryLock(name string) (bool, error)
	Unlock(name string) error
	// Hint explains an engine error in terms of the schema change that caused it, or returns "".
	Hint(err error) string
}

// TransactionalDDL reports whether driver can apply a record and its ledger row atomically. Drivers may override
// the dialect's answer by implementing it themselves.
func TransactionalDDL(driver Driver) bool {
	if override, ok := driver.(interface{ TransactionalDDL() bool }); ok {
		return override.TransactionalDDL()
	}
	return driver.Dialect().TransactionalDDL()
}

// LockBreaker is implemented by drivers whose locks outlive the session that took them.
type LockBreaker interface {
	// BreakLock releases the lock whoever holds it and reports whether it was held.
	BreakLock(name string) (bool, error)
}
