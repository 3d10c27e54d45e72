// Package database provides SQLite connectivity for the tracker's entity
// and device registry.
//
// This package manages:
//   - The connection (WAL mode, busy timeout, foreign keys on)
//   - Schema migrations read from an fs.FS (normally package migrations)
//   - Transaction helpers
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql. New columns must be NULLABLE or have a DEFAULT.
package database
