package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"cardcheck/config"
	"cardcheck/db/migrations"
	"cardcheck/db/migrator"
	"cardcheck/log"
	"cardcheck/oops"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var DbCmd *cobra.Command

var (
	migrationsDir string
	lockTimeout   time.Duration
)

func init() {
	DbCmd = &cobra.Command{
		Use: "db",
	}
	DbCmd.PersistentFlags().StringVar(
		&migrationsDir, "dir", config.Cfg.Migrate.Dir, "read yaml migrations from this directory instead of the built-in ones",
	)
	DbCmd.PersistentFlags().DurationVar(
		&lockTimeout, "lock-timeout", config.Cfg.Migrate.LockTimeout, "how long to wait for another migration process",
	)

	migrateCmd := &cobra.Command{
		Use: "migrate",
	}

	var upTarget string
	var dryRun, progress bool
	upCmd := &cobra.Command{
		Use:  "up",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateUp(cmd.Context(), cmd.OutOrStdout(), upTarget, dryRun, progress)
		},
	}
	upCmd.Flags().StringVar(&upTarget, "to", "", "stop after this version (default: latest)")
	upCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print pending migrations without applying them")
	upCmd.Flags().BoolVar(&progress, "progress", false, "draw a progress bar on stderr")

	var downTarget string
	downCmd := &cobra.Command{
		Use:  "down",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateDown(cmd.Context(), cmd.OutOrStdout(), downTarget)
		},
	}
	downCmd.Flags().StringVar(&downTarget, "to", "", "revert every migration newer than this version, 0 reverts all")
	_ = downCmd.MarkFlagRequired("to")

	var steps int
	rollbackCmd := &cobra.Command{
		Use:  "rollback",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rollback(cmd.Context(), cmd.OutOrStdout(), steps)
		},
	}
	rollbackCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	var asJson bool
	statusCmd := &cobra.Command{
		Use:  "status",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return status(cmd.Context(), cmd.OutOrStdout(), asJson)
		},
	}
	statusCmd.Flags().BoolVar(&asJson, "json", false, "print status as json")

	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release a lock left behind by a crashed migration process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return unlock(cmd.Context(), cmd.OutOrStdout())
		},
	}

	migrateCmd.AddCommand(upCmd)
	migrateCmd.AddCommand(downCmd)
	migrateCmd.AddCommand(rollbackCmd)
	migrateCmd.AddCommand(statusCmd)
	migrateCmd.AddCommand(unlockCmd)

	var asYaml bool
	generateMigrationCmd := &cobra.Command{
		Use:     "generate-migration [name]",
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"gm"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateMigration(cmd.OutOrStdout(), args[0], asYaml, time.Now())
		},
	}
	generateMigrationCmd.Flags().BoolVar(&asYaml, "yaml", false, "generate a yaml migration in --dir")

	dumpCmd := &cobra.Command{
		Use:  "dump",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dumpStructure(cmd.Context())
		},
	}

	DbCmd.AddCommand(migrateCmd)
	DbCmd.AddCommand(generateMigrationCmd)
	DbCmd.AddCommand(dumpCmd)
}

// ErrorText is what the cli prints for a failed command: the kind, the record and the engine message, without
// stack frames.
func ErrorText(err error) string {
	if migErr, ok := migrator.AsError(err); ok {
		return migErr.Error()
	}
	return oops.Message(err)
}

func loadRegistry() (*migrator.Registry, error) {
	if migrationsDir == "" {
		return migrator.NewRegistry(migrations.All()...)
	}
	records, err := migrator.LoadDir(migrationsDir)
	if err != nil {
		return nil, err
	}
	return migrator.NewRegistry(records...)
}

func newRunner(
	ctx context.Context, onRecord func(m migrator.Migration, direction migrator.Direction),
) (*migrator.Runner, func(), error) {
	registry, err := loadRegistry()
	if err != nil {
		return nil, nil, err
	}
	session, err := openSession(ctx, config.Cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	runner := migrator.NewRunner(registry, session.driver, migrator.Options{
		LedgerTable: config.Cfg.Migrate.LedgerTable,
		LockTimeout: lockTimeout,
		Logger:      log.Default(),
		OnRecord:    onRecord,
	})
	return runner, session.Close, nil
}

func migrateUp(ctx context.Context, out io.Writer, target string, dryRun bool, progress bool) error {
	var bar *progressbar.ProgressBar
	runner, closeSession, err := newRunner(ctx, func(m migrator.Migration, _ migrator.Direction) {
		if bar != nil {
			_ = bar.Add(1)
		}
		fmt.Fprintln(out, m.Version)
	})
	if err != nil {
		return err
	}
	defer closeSession()

	if dryRun || progress {
		pending, err := runner.Pending(ctx, target)
		if err != nil {
			return err
		}
		if dryRun {
			for _, m := range pending {
				fmt.Fprintln(out, m.Version, m.Name)
			}
			return nil
		}
		bar = progressbar.NewOptions(
			len(pending),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Migrating"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer func() {
			_ = bar.Finish()
		}()
	}

	_, err = runner.ApplyPending(ctx, target)
	return err
}

func migrateDown(ctx context.Context, out io.Writer, target string) error {
	runner, closeSession, err := newRunner(ctx, printRolledBack(out))
	if err != nil {
		return err
	}
	defer closeSession()

	_, err = runner.RevertTo(ctx, target)
	return err
}

func rollback(ctx context.Context, out io.Writer, steps int) error {
	runner, closeSession, err := newRunner(ctx, printRolledBack(out))
	if err != nil {
		return err
	}
	defer closeSession()

	_, err = runner.RevertLast(ctx, steps)
	return err
}

func printRolledBack(out io.Writer) func(m migrator.Migration, direction migrator.Direction) {
	return func(m migrator.Migration, _ migrator.Direction) {
		fmt.Fprintln(out, m.Version, "rolled back")
	}
}

func unlock(ctx context.Context, out io.Writer) error {
	runner, closeSession, err := newRunner(ctx, nil)
	if err != nil {
		return err
	}
	defer closeSession()

	return breakLock(ctx, out, runner)
}

func breakLock(ctx context.Context, out io.Writer, runner *migrator.Runner) error {
	broken, err := runner.BreakLock(ctx)
	if err != nil {
		return err
	}
	if broken {
		fmt.Fprintln(out, "Released migration lock")
	} else {
		fmt.Fprintln(out, "Migration lock is not held")
	}
	return nil
}

type recordStatusJson struct {
	Name      string     `json:"name"`
	State     string     `json:"state"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

func recordState(s migrator.RecordStatus) string {
	switch {
	case s.InFlight:
		return "in_flight"
	case s.Applied:
		return "applied"
	default:
		return "pending"
	}
}

func status(ctx context.Context, out io.Writer, asJson bool) error {
	runner, closeSession, err := newRunner(ctx, nil)
	if err != nil {
		return err
	}
	defer closeSession()

	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	return writeStatus(out, statuses, asJson)
}

func writeStatus(out io.Writer, statuses []migrator.RecordStatus, asJson bool) error {
	if asJson {
		byVersion := orderedmap.New[string, recordStatusJson]()
		for _, s := range statuses {
			byVersion.Set(s.Version, recordStatusJson{
				Name:      s.Name,
				State:     recordState(s),
				AppliedAt: s.AppliedAt,
			})
		}
		data, err := json.Marshal(byVersion)
		if err != nil {
			return oops.Wrap(err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return oops.Wrap(err)
		}
		buf.WriteByte('\n')
		_, err = out.Write(buf.Bytes())
		return oops.Wrap(err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE\tAPPLIED AT")
	for _, s := range statuses {
		appliedAt := "-"
		if s.AppliedAt != nil {
			appliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Version, s.Name, recordState(s), appliedAt)
	}
	return oops.Wrap(w.Flush())
}
