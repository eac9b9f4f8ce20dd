package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// schemaVersionTable is created before any migration runs so the current
// version can be read on every dialect.
const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
)`

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1. The SQL is
// kept to the subset shared by SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS snoozes (
	source     TEXT   NOT NULL,
	id         TEXT   NOT NULL,
	wake_at    BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (source, id)
)`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_snoozes_wake_at ON snoozes(wake_at)`,
	},
	{
		// Millisecond timestamps to nanoseconds.
		version: 3,
		sql: `
UPDATE snoozes SET wake_at = wake_at * 1000000, created_at = created_at * 1000000`,
	},
}
