// Package migrations embeds the database schema.
package migrations

import (
	"embed"
	"io/fs"
	"sort"

	"github.com/noah-isme/contravention-api/pkg/database"
)

//go:embed *.sql
var files embed.FS

// Scripts returns the embedded schema files ordered by name.
func Scripts() ([]database.Script, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	scripts := make([]database.Script, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, database.Script{Name: name, SQL: string(body)})
	}
	return scripts, nil
}
