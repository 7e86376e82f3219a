// Package migrations embeds the SQL schema migration files.
package migrations

import "embed"

// FS holds the embedded SQL migration files, consumed by the iofs
// migration source at startup.
//
//go:embed *.sql
var FS embed.FS
