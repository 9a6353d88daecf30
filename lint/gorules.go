// Run `golangci-lint cache clean` after modifying this file.

package gorules

import (
	"github.com/quasilyte/go-ruleguard/dsl"
)

func restrictedReferences(m dsl.Matcher) {
	m.Match(`pgw.Tx`, `pgw.Conn`).
		Where(
			!m.File().PkgPath.Matches(`cardcheck/db$`) &&
				!m.File().PkgPath.Matches(`cardcheck/db/pgw`) &&
				!m.File().PkgPath.Matches(`cardcheck/db/migrator`)).
		Report(`references to pgw connections are only allowed in db, use migrator.Driver instead`)
	m.Match(`sql.Open($*_)`).
		Where(!m.File().PkgPath.Matches(`cardcheck/db$`) && !m.File().Name.Matches(`_test\.go$`)).
		Report(`database connections are opened by the db command, drivers take a *sql.Conn`)
}

func printInLibraries(m dsl.Matcher) {
	m.Match(`fmt.Print($*_)`, `fmt.Println($*_)`, `fmt.Printf($*_)`).
		Where(
			m.File().PkgPath.Matches(`cardcheck/db/(migrator|schema|migrations)`) ||
				m.File().PkgPath.Matches(`cardcheck/(config|oops)`)).
		Report(`libraries must not print to stdout, return the value or log it`)
}

func runnerErrorKinds(m dsl.Matcher) {
	m.Match(`&migrator.Error{$*_}`).
		Where(!m.File().PkgPath.Matches(`cardcheck/db/migrator`)).
		Report(`migrator errors are created by the runner, match them with errors.Is on the Err* kinds`)
}
