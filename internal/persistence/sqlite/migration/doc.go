// Package migration applies versioned SQL files to a SQLite database.
//
// Files follow the naming convention {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from an fs.FS, usually an embedded
// directory. Applied versions are tracked in the schema_migrations table and
// every file runs inside its own transaction.
//
//	manager := migration.NewManager(migration.NewFileScanner(files), migration.NewSQLiteExecutor(db), "migrations", logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
