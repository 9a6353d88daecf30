package db

import (
	"bytes"
	"context"
	"fmt"
	"go/token"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"cardcheck/config"
	"cardcheck/db/migrator"
	"cardcheck/oops"
)

const goMigrationTemplate = `package migrations

import (
	"cardcheck/db/migrator"
	"cardcheck/db/schema"
)

var {{.VarName}} = migrator.Migration{
	Version: "{{.Version}}",
	Name:    "{{.Name}}",
	Up:      []schema.Change{},
	// Down stays unset until the revert is written, an empty list reverts as a no-op.
}
`

const yamlMigrationTemplate = `# {{.Version}}_{{.Name}}
up: []
# down: []  leave out until the revert is written, an empty list reverts as a no-op
`

// generateMigration writes an empty migration named after now. Go migrations go to db/migrations and still
// have to be added to All(), yaml ones go to --dir.
func generateMigration(out io.Writer, name string, asYaml bool, now time.Time) error {
	if !token.IsIdentifier(name) {
		return oops.Newf("migration name is not a valid identifier: %s", name)
	}
	if !token.IsExported(name) {
		return oops.Newf("migration name is not an exported identifier: %s", name)
	}

	templateParams := migrationTemplateParams{
		Version: now.UTC().Format(migrator.VersionFormat),
		Name:    name,
		VarName: lowerFirst(name),
	}
	content, err := renderMigration(templateParams, asYaml)
	if err != nil {
		return err
	}

	dir := "db/migrations"
	ext := ".go"
	if asYaml {
		if migrationsDir != "" {
			dir = migrationsDir
		}
		ext = ".yaml"
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s%s", templateParams.Version, name, ext))
	if err := os.WriteFile(filename, content, 0666); err != nil {
		return oops.Wrap(err)
	}

	fmt.Fprintln(out, "Created", filename)
	if !asYaml {
		fmt.Fprintf(out, "Add %s to All() in db/migrations/migrations.go\n", templateParams.VarName)
	}
	return nil
}

type migrationTemplateParams struct {
	Version string
	Name    string
	VarName string
}

func renderMigration(params migrationTemplateParams, asYaml bool) ([]byte, error) {
	templateText := goMigrationTemplate
	if asYaml {
		templateText = yamlMigrationTemplate
	}
	tmpl := template.Must(template.New("migration").Parse(templateText))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return nil, oops.Wrap(err)
	}
	return buf.Bytes(), nil
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func dumpStructure(ctx context.Context) error {
	if config.Cfg.DB.Driver != config.DriverPostgres {
		return oops.Newf("db dump only supports postgres, got %s", config.Cfg.DB.Driver)
	}
	filename := "db/structure.sql"

	pgDump, err := exec.LookPath("pg_dump")
	if err != nil {
		return oops.Wrap(err)
	}
	pgDumpCmd := exec.CommandContext(
		ctx, pgDump, "--schema-only", "--no-privileges", "--no-owner", "--file", filename,
		"--host", config.Cfg.DB.Host, "--port", fmt.Sprint(config.Cfg.DB.Port),
		"--username", config.Cfg.DB.User, config.Cfg.DB.DBName,
	)
	if config.Cfg.DB.MaybePassword != nil {
		pgDumpCmd.Env = append(os.Environ(), "PGPASSWORD="+*config.Cfg.DB.MaybePassword)
	}
	pgDumpCmd.Stdout = os.Stdout
	pgDumpCmd.Stderr = os.Stderr
	if err := pgDumpCmd.Run(); err != nil {
		return oops.Wrap(err)
	}

	runner, closeSession, err := newRunner(ctx, nil)
	if err != nil {
		return err
	}
	defer closeSession()
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return oops.Wrap(err)
	}
	defer file.Close()
	if err := writeLedgerRows(file, config.Cfg.Migrate.LedgerTable, statuses); err != nil {
		return err
	}
	return oops.Wrap(file.Close())
}

// writeLedgerRows appends the applied versions so that loading the dump yields a database the runner considers
// up to date.
func writeLedgerRows(w io.Writer, ledgerTable string, statuses []migrator.RecordStatus) error {
	var applied []migrator.RecordStatus
	for _, s := range statuses {
		if s.Applied && !s.InFlight {
			applied = append(applied, s)
		}
	}
	if len(applied) == 0 {
		return nil
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf)
	fmt.Fprintf(&buf, "INSERT INTO %q (version, applied_at) VALUES\n", ledgerTable)
	for i, s := range applied {
		sep := ','
		if i == len(applied)-1 {
			sep = ';'
		}
		fmt.Fprintf(&buf, "('%s', '%s')%c\n", s.Version, s.AppliedAt.UTC().Format("2006-01-02 15:04:05.999999"), sep)
	}
	_, err := w.Write(buf.Bytes())
	return oops.Wrap(err)
}
