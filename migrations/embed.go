// Package migrations embeds the SQL migrations for the shared credential table.
package migrations

import "embed"

// FS holds every *.sql migration.
//
//go:embed *.sql
var FS embed.FS
