// apps/go-server/assets/embed.go
//
// Embedded static data for the server:
//   - countries.json: default country pool (static dataset keyed by ISO code).
//   - sql/*.sql:      schema migrations, applied in lexical order.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed countries.json sql/*.sql
var FS embed.FS

// CountriesJSON returns the raw embedded country dataset.
func CountriesJSON() ([]byte, error) {
	return FS.ReadFile("countries.json")
}

// Migrations returns the embedded migration files rooted at sql/.
func Migrations() (fs.FS, error) {
	return fs.Sub(FS, "sql")
}
