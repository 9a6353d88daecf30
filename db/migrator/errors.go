package migrator

import (
	"errors"
	"fmt"
	"strings"

	"cardcheck/oops"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrSchemaChangeFailed      = errors.New("SchemaChangeFailed")
	ErrMissingRevertDefinition = errors.New("MissingRevertDefinition")
	ErrDuplicateVersionToken   = errors.New("DuplicateVersionToken")
	ErrLedgerSchemaMismatch    = errors.New("LedgerSchemaMismatch")
	ErrRunnerBusy              = errors.New("RunnerBusy")
)

// Error is a runner failure attributed to a migration record. Version and Name are empty when no single record is
// responsible, e.g. for lock contention.
type Error struct {
	Kind    error
	Version string
	Name    string
	Detail  string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Version != "" {
		fmt.Fprintf(&b, ": %s %s", e.Version, e.Name)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, m *Migration, detail string, err error) error {
	migErr := &Error{
		Kind:   kind,
		Detail: detail,
		Err:    err,
	}
	if m != nil {
		migErr.Version = m.Version
		migErr.Name = m.Name
	}
	return oops.Wrap(migErr)
}

// AsError extracts the *Error from err, if there is one.
func AsError(err error) (*Error, bool) {
	var migErr *Error
	if errors.As(err, &migErr) {
		return migErr, true
	}
	return nil, false
}
