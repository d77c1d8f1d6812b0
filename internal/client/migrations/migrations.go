// Package migrations embeds the goose migrations for the local queue
// database (SQLite) and the recordings database (Postgres).
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed local/*.sql
var local embed.FS

//go:embed records/*.sql
var records embed.FS

// Local returns the SQLite migrations rooted at the directory that holds them.
func Local() fs.FS {
	sub, err := fs.Sub(local, "local")
	if err != nil {
		panic(err)
	}
	return sub
}

// Records returns the Postgres migrations for the recordings table.
func Records() fs.FS {
	sub, err := fs.Sub(records, "records")
	if err != nil {
		panic(err)
	}
	return sub
}
