// Package migrations ships the goose migrations for the record tables.
package migrations

import "embed"

// Files embeds every migration so the server can bootstrap the schema without the
// migrator binary.
//
//go:embed *.sql
var Files embed.FS
