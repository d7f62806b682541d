package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// isPostgres reports whether database is a PostgreSQL connection url,
// anything else is treated as an SQLite file path
func isPostgres(database string) bool {
	return strings.HasPrefix(database, "postgres://") || strings.HasPrefix(database, "postgresql://")
}

func connection(database string) (*sql.DB, sqlbuilder.Flavor, error) {
	if isPostgres(database) {
		db, err := sql.Open("postgres", database)
		if err != nil {
			return nil, sqlbuilder.PostgreSQL, err
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(time.Hour)

		return db, sqlbuilder.PostgreSQL, nil
	}

	// Enable foreign keys and WAL mode
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", database))
	if err != nil {
		return nil, sqlbuilder.SQLite, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1)            // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)            // Keep one connection in the pool
	db.SetConnMaxLifetime(time.Hour) // Recreate connections after an hour
	db.SetConnMaxIdleTime(time.Hour) // Close idle connections after an hour

	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
	`); err != nil {
		db.Close()
		return nil, sqlbuilder.SQLite, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return db, sqlbuilder.SQLite, nil
}
