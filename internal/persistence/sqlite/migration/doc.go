// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from an fs.FS, which lets the
// storage package embed its schema in the binary. Applied versions are
// tracked in the schema_migrations table; each migration runs in its own
// transaction.
//
//	manager := NewMigrationManager(NewFileScanner(fsys), NewSQLiteExecutor(db), "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
