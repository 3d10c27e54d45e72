// Package migrations embeds the tracker's SQL migration files.
//
// Pass FS to database.DB.Migrate; the files sit at the root of the
// embedded filesystem.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
