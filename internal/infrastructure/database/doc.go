// Package database provides SQLite connectivity for partcompat.
//
// This package manages:
//   - Database connection with WAL mode for concurrent reads
//   - Immediate-mode transactions so read-then-write sequences are atomic
//     across every process sharing the database file
//   - Embedded schema migrations
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/partcompat.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
