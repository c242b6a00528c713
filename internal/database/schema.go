package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type dialect struct {
	largeText string
	timestamp string
}

var dialects = map[string]dialect{
	"mysql":  {largeText: "LONGTEXT", timestamp: "DATETIME(6)"},
	"pgx":    {largeText: "TEXT", timestamp: "TIMESTAMPTZ"},
	"sqlite": {largeText: "TEXT", timestamp: "DATETIME"},
}

// Schema returns the DDL statements for the given database/sql driver name.
func Schema(driverName string) ([]string, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("no schema for driver %q", driverName)
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS courses (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	topic VARCHAR(255) NOT NULL,
	content %[1]s NOT NULL,
	created_at %[2]s NOT NULL,
	updated_at %[2]s NOT NULL
)`, d.largeText, d.timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS content_records (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	course_id VARCHAR(36) NOT NULL,
	content_type VARCHAR(32) NOT NULL,
	status VARCHAR(16) NOT NULL,
	content %[1]s NOT NULL,
	error_message %[1]s NOT NULL,
	attempt INTEGER NOT NULL,
	created_at %[2]s NOT NULL,
	updated_at %[2]s NOT NULL,
	CONSTRAINT uq_content_records_course_type UNIQUE (course_id, content_type)
)`, d.largeText, d.timestamp),
	}, nil
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements, err := Schema(db.DriverName())
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db.ExecContext(migrate) > %w", err)
		}
	}
	return nil
}
