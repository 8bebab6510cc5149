// Package migrations embeds the schema for each supported store.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directory names inside FS.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
