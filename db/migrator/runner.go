package migrator

import (
	"context"
	"fmt"
	"time"

	"cardcheck/db/schema"
	"cardcheck/log"
	"cardcheck/oops"

	"github.com/google/uuid"
)

type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

const (
	DefaultLedgerTable      = "schema_migrations"
	DefaultLockTimeout      = 10 * time.Second
	DefaultLockPollInterval = 100 * time.Millisecond
)

type Options struct {
	LedgerTable string
	// LockTimeout bounds the wait for another runner to finish before failing with ErrRunnerBusy
	LockTimeout      time.Duration
	LockPollInterval time.Duration
	Logger           log.Logger
	// OnRecord is called after each record is committed
	OnRecord func(m Migration, direction Direction)
}

// Runner applies and reverts registered migrations against one database, one record at a time.
type Runner struct {
	registry *Registry
	driver   Driver
	ledger   ledger
	opts     Options
	logger   log.Logger
}

func NewRunner(registry *Registry, driver Driver, opts Options) *Runner {
	if opts.LedgerTable == "" {
		opts.LedgerTable = DefaultLedgerTable
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.LockPollInterval <= 0 {
		opts.LockPollInterval = DefaultLockPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		registry: registry,
		driver:   driver,
		ledger:   newLedger(driver.Dialect(), opts.LedgerTable),
		opts:     opts,
		logger:   logger,
	}
}

type RecordStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
	// InFlight is set when the ledger holds the record without a timestamp: a run on an engine without
	// transactional DDL stopped midway through it.
	InFlight bool
}

// Status reports every registered record and whether the ledger has it. It takes no lock and creates nothing.
func (r *Runner) Status(ctx context.Context) ([]RecordStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Wrap(err)
	}
	entries, err := r.ledger.read(r.driver)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]LedgerEntry, len(entries))
	for _, entry := range entries {
		byVersion[entry.Version] = entry
	}

	var statuses []RecordStatus
	for _, m := range r.registry.migrations {
		entry, ok := byVersion[m.Version]
		statuses = append(statuses, RecordStatus{
			Version:   m.Version,
			Name:      m.Name,
			Applied:   ok,
			AppliedAt: entry.AppliedAt,
			InFlight:  ok && entry.InFlight(),
		})
	}
	return statuses, nil
}

// Pending returns the records ApplyPending would apply for the same target, without taking the lock.
func (r *Runner) Pending(ctx context.Context, target string) ([]Migration, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Wrap(err)
	}
	entries, err := r.ledger.read(r.driver)
	if err != nil {
		return nil, err
	}
	if err := r.checkLedger(entries); err != nil {
		return nil, err
	}
	return r.pending(len(entries), target), nil
}

// EnsureLatest fails if any registered record is not applied.
func (r *Runner) EnsureLatest(ctx context.Context) error {
	pending, err := r.Pending(ctx, "")
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return oops.Newf("Migration is not in db: %s", pending[0])
	}
	return nil
}

// ApplyPending applies, in version order, every registered record newer than the ledger frontier and not newer
// than target. An empty target means the latest version. Each record commits together with its ledger row. The
// first failure stops the run, records committed before it stay applied.
func (r *Runner) ApplyPending(ctx context.Context, target string) ([]string, error) {
	var applied []string
	err := r.withLock(ctx, func(logger log.Logger) error {
		if err := r.ledger.ensure(r.driver); err != nil {
			return err
		}
		entries, err := r.ledger.read(r.driver)
		if err != nil {
			return err
		}
		if err := r.checkLedger(entries); err != nil {
			return err
		}

		pending := r.pending(len(entries), target)
		logger.Info().Int("pending", len(pending)).Str("target", target).Msg("Applying migrations")
		for i := range pending {
			m := &pending[i]
			if err := ctx.Err(); err != nil {
				logger.Warn().Str("version", m.Version).Msg("Cancelled before applying")
				return oops.Wrap(err)
			}
			if err := r.run(logger, m, Up); err != nil {
				return err
			}
			applied = append(applied, m.Version)
		}
		return nil
	})
	return applied, err
}

// RevertTo reverts, newest first, every applied record with a version greater than target. An empty target
// reverts everything. Nothing is touched if one of those records has no revert definition.
func (r *Runner) RevertTo(ctx context.Context, target string) ([]string, error) {
	return r.revert(ctx, func(applied []Migration) []Migration {
		var selected []Migration
		for _, m := range applied {
			if m.Version > target {
				selected = append(selected, m)
			}
		}
		return selected
	})
}

// RevertLast reverts the n most recently applied records.
func (r *Runner) RevertLast(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, oops.Newf("Expected a positive number of records to revert, got %d", n)
	}
	return r.revert(ctx, func(applied []Migration) []Migration {
		if n >= len(applied) {
			return applied
		}
		return applied[len(applied)-n:]
	})
}

func (r *Runner) revert(ctx context.Context, selectRecords func(applied []Migration) []Migration) ([]string, error) {
	var reverted []string
	err := r.withLock(ctx, func(logger log.Logger) error {
		if err := r.ledger.ensure(r.driver); err != nil {
			return err
		}
		entries, err := r.ledger.read(r.driver)
		if err != nil {
			return err
		}
		if err := r.checkLedger(entries); err != nil {
			return err
		}

		applied := r.registry.migrations[:len(entries)]
		selected := selectRecords(applied)
		for i := range selected {
			if !selected[i].Reversible() {
				return newError(ErrMissingRevertDefinition, &selected[i], "", nil)
			}
		}

		logger.Info().Int("count", len(selected)).Msg("Reverting migrations")
		for i := len(selected) - 1; i >= 0; i-- {
			m := &selected[i]
			if err := ctx.Err(); err != nil {
				logger.Warn().Str("version", m.Version).Msg("Cancelled before reverting")
				return oops.Wrap(err)
			}
			if err := r.run(logger, m, Down); err != nil {
				return err
			}
			reverted = append(reverted, m.Version)
		}
		return nil
	})
	return reverted, err
}

func (r *Runner) pending(appliedCount int, target string) []Migration {
	var pending []Migration
	for _, m := range r.registry.migrations[appliedCount:] {
		if target != "" && m.Version > target {
			break
		}
		pending = append(pending, m)
	}
	return pending
}

// checkLedger verifies the ledger is a prefix of the registry with no record left in flight.
func (r *Runner) checkLedger(entries []LedgerEntry) error {
	for i, entry := range entries {
		m, known := r.registry.Lookup(entry.Version)
		if !known {
			return newError(
				ErrLedgerSchemaMismatch, &Migration{Version: entry.Version, Name: "(unknown)"},
				"applied version is not registered", nil,
			)
		}
		if entry.InFlight() {
			return newError(
				ErrLedgerSchemaMismatch, &m,
				"a previous run stopped midway through this record, check the schema by hand and fix the ledger", nil,
			)
		}
		if i >= len(r.registry.migrations) || r.registry.migrations[i].Version != entry.Version {
			gap := r.registry.migrations[i]
			return newError(ErrLedgerSchemaMismatch, &gap, fmt.Sprintf("not applied but %s is", m), nil)
		}
	}
	return nil
}

// BreakLock releases a migration lock left behind by a process that died without unlocking. It must only be used
// when no other runner is alive. Returns false if the lock wasn't held or the driver's locks can't outlive a
// session.
func (r *Runner) BreakLock(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, oops.Wrap(err)
	}
	breaker, ok := r.driver.(LockBreaker)
	if !ok {
		return false, nil
	}
	broken, err := breaker.BreakLock(r.opts.LedgerTable)
	if err != nil {
		return false, oops.Wrapf(err, "break migration lock")
	}
	if broken {
		r.logger.Warn().Str("lock", r.opts.LedgerTable).Msg("Broke stale migration lock")
	}
	return broken, nil
}

func (r *Runner) withLock(ctx context.Context, f func(logger log.Logger) error) (err error) {
	if err := ctx.Err(); err != nil {
		return oops.Wrap(err)
	}
	logger := r.logger.With("run_id", uuid.NewString())
	lockName := r.opts.LedgerTable

	deadline := time.Now().Add(r.opts.LockTimeout)
	for {
		gotLock, err := r.driver.TryLock(lockName)
		if err != nil {
			return oops.Wrapf(err, "acquire migration lock")
		}
		if gotLock {
			break
		}
		if !time.Now().Before(deadline) {
			return newError(
				ErrRunnerBusy, nil,
				fmt.Sprintf("another migration process held the lock for %v", r.opts.LockTimeout), nil,
			)
		}
		logger.Debug().Msg("Waiting for the migration lock")
		select {
		case <-ctx.Done():
			return oops.Wrap(ctx.Err())
		case <-time.After(r.opts.LockPollInterval):
		}
	}

	defer func() {
		if unlockErr := r.driver.Unlock(lockName); unlockErr != nil {
			logger.Error().Err(unlockErr).Msg("Failed to release migration lock")
			if err == nil {
				err = oops.Wrapf(unlockErr, "release migration lock")
			}
		}
	}()

	return f(logger)
}

func (r *Runner) run(logger log.Logger, m *Migration, direction Direction) error {
	t1 := time.Now()
	var err error
	if TransactionalDDL(r.driver) {
		err = r.runInTx(m, direction)
	} else {
		err = r.runWithMarker(logger, m, direction)
	}
	if err != nil {
		logger.Error().Err(err).
			Str("version", m.Version).
			Str("name", m.Name).
			Stringer("direction", direction).
			Msg("Migration failed")
		return err
	}

	logger.Info().
		Str("version", m.Version).
		Str("name", m.Name).
		Stringer("direction", direction).
		Dur("duration", time.Since(t1)).
		Msg("Migration done")
	if r.opts.OnRecord != nil {
		r.opts.OnRecord(*m, direction)
	}
	return nil
}

func (r *Runner) runInTx(m *Migration, direction Direction) error {
	tx, err := r.driver.Begin()
	if err != nil {
		return oops.Wrap(err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Str("version", m.Version).Msg("Rollback error")
		}
	}()

	if _, err := r.execChanges(tx, m, direction); err != nil {
		return err
	}

	if direction == Up {
		now := time.Now().UTC()
		err = r.ledger.insert(tx, m.Version, &now)
	} else {
		err = r.ledger.remove(tx, m.Version)
	}
	if err != nil {
		return err
	}

	return oops.Wrap(tx.Commit())
}

// runWithMarker is for engines that commit DDL implicitly. The ledger row is written with a null timestamp before
// the changes run, so a crash or failure in between shows up as ErrLedgerSchemaMismatch on the next run instead of
// the record being applied twice. If the engine rejects the first statement, the schema is untouched and the
// marker is undone.
func (r *Runner) runWithMarker(logger log.Logger, m *Migration, direction Direction) error {
	var appliedAt *time.Time
	var err error
	if direction == Up {
		err = r.ledger.insert(r.driver, m.Version, nil)
	} else {
		appliedAt, err = r.ledger.appliedAt(r.driver, m.Version)
		if err == nil {
			err = r.ledger.markInFlight(r.driver, m.Version)
		}
	}
	if err != nil {
		return err
	}

	executed, err := r.execChanges(r.driver, m, direction)
	if err != nil {
		if executed == 0 {
			var undoErr error
			if direction == Up {
				undoErr = r.ledger.remove(r.driver, m.Version)
			} else {
				undoErr = r.ledger.markApplied(r.driver, m.Version, *appliedAt)
			}
			if undoErr == nil {
				logger.Info().Str("version", m.Version).Msg("No statement ran, ledger restored")
				return err
			}
			logger.Error().Err(undoErr).Str("version", m.Version).Msg("Failed to restore the ledger")
		}
		logger.Warn().Str("version", m.Version).Msg("Record left in flight, the ledger needs manual repair")
		return err
	}

	if direction == Up {
		return r.ledger.markApplied(r.driver, m.Version, time.Now().UTC())
	}
	return r.ledger.remove(r.driver, m.Version)
}

// execChanges returns how many statements the engine accepted before the first failure.
func (r *Runner) execChanges(q Execer, m *Migration, direction Direction) (int, error) {
	changes := m.Up
	if direction == Down {
		changes = m.Down
	}

	executed := 0
	dialect := r.driver.Dialect()
	for _, change := range changes {
		statements, err := dialect.Statements(q, change)
		if err != nil {
			return executed, r.schemaChangeFailed(m, change, err)
		}
		for _, statement := range statements {
			r.logger.Debug().Str("version", m.Version).Str("sql", statement).Msg("Executing")
			if _, err := q.Exec(statement); err != nil {
				return executed, r.schemaChangeFailed(m, change, err)
			}
			executed++
		}
	}
	return executed, nil
}

func (r *Runner) schemaChangeFailed(m *Migration, change schema.Change, err error) error {
	migErr := &Error{
		Kind:    ErrSchemaChangeFailed,
		Version: m.Version,
		Name:    m.Name,
		Detail:  change.Describe(),
		Hint:    r.driver.Hint(err),
		Err:     err,
	}
	return oops.Wrap(migErr)
}
