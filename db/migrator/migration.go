package migrator

import (
	"fmt"
	"go/token"
	"sort"
	"time"

	"cardcheck/db/schema"
	"cardcheck/oops"
)

// VersionFormat is the layout of version tokens. Tokens compare lexicographically in time order.
const VersionFormat = "20060102150405"

// Migration is one versioned schema delta. Down must undo Up exactly, the runner doesn't check it. A nil Down
// means the record can't be reverted, an empty one reverts as a no-op.
type Migration struct {
	Version string
	Name    string
	Up      []schema.Change
	Down    []schema.Change
}

func (m Migration) String() string {
	return m.Version + "_" + m.Name
}

func (m Migration) Reversible() bool {
	return m.Down != nil
}

func (m Migration) validate() error {
	if _, err := time.Parse(VersionFormat, m.Version); err != nil || len(m.Version) != len(VersionFormat) {
		return oops.Newf("migration %s: version must look like %s", m, VersionFormat)
	}
	if !token.IsIdentifier(m.Name) {
		return oops.Newf("migration %s: name is not a valid identifier", m)
	}
	if len(m.Up) == 0 {
		return oops.Newf("migration %s: no changes to apply", m)
	}
	for i, change := range m.Up {
		if err := schema.Validate(change); err != nil {
			return oops.Wrapf(err, "migration %s: up change %d", m, i)
		}
	}
	for i, change := range m.Down {
		if err := schema.Validate(change); err != nil {
			return oops.Wrapf(err, "migration %s: down change %d", m, i)
		}
	}
	return nil
}

// Registry is the ordered, validated set of known migrations.
type Registry struct {
	migrations []Migration
	byVersion  map[string]int
}

// NewRegistry validates and orders the given migrations. Two records sharing a version token fail with
// ErrDuplicateVersionToken.
func NewRegistry(migrations ...Migration) (*Registry, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	seen := make(map[string]Migration)
	for i := range sorted {
		m := &sorted[i]
		if err := m.validate(); err != nil {
			return nil, err
		}
		if existing, ok := seen[m.Version]; ok {
			return nil, newError(
				ErrDuplicateVersionToken, m, fmt.Sprintf("version is already taken by %s", existing.Name), nil,
			)
		}
		seen[m.Version] = *m
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	byVersion := make(map[string]int, len(sorted))
	for i, m := range sorted {
		byVersion[m.Version] = i
	}

	return &Registry{
		migrations: sorted,
		byVersion:  byVersion,
	}, nil
}

func MustNewRegistry(migrations ...Migration) *Registry {
	registry, err := NewRegistry(migrations...)
	if err != nil {
		panic(err)
	}
	return registry
}

func (r *Registry) All() []Migration {
	all := make([]Migration, len(r.migrations))
	copy(all, r.migrations)
	return all
}

func (r *Registry) Len() int {
	return len(r.migrations)
}

func (r *Registry) Latest() string {
	if len(r.migrations) == 0 {
		return ""
	}
	return r.migrations[len(r.migrations)-1].Version
}

func (r *Registry) Lookup(version string) (Migration, bool) {
	i, ok := r.byVersion[version]
	if !ok {
		return Migration{}, false
	}
	return r.migrations[i], true
}
