package store

import (
	"database/sql"
)

// NewTestDB creates a DB for testing on top of an existing connection,
// typically an in-memory database.
// This is only intended for use in tests.
func NewTestDB(sqlDB *sql.DB) (*DB, error) {
	return newDB(sqlDB)
}
