package store

// migration represents a single schema migration. Postgres falls back to
// the SQLite statement when it has no dialect-specific one.
type migration struct {
	Version  int
	Name     string
	SQLite   string
	Postgres string
}

func (m migration) sql(driver string) string {
	if driver == DriverPostgres && m.Postgres != "" {
		return m.Postgres
	}
	return m.SQLite
}

// migrations is the ordered list of all schema migrations. Timestamps are
// stored as RFC 3339 text in both dialects.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create reservations",
		SQLite: `
			CREATE TABLE reservations (
				id             INTEGER PRIMARY KEY,
				user_id        TEXT NOT NULL,
				check_in_date  TEXT NOT NULL,
				check_out_date TEXT NOT NULL,
				room_type      TEXT NOT NULL,
				num_guests     INTEGER NOT NULL,
				total_price    INTEGER NOT NULL,
				created_at     TEXT NOT NULL,
				updated_at     TEXT
			);

			CREATE INDEX idx_reservations_user ON reservations (user_id);
		`,
	},
	{
		Version: 2,
		Name:    "create sessions",
		SQLite: `
			CREATE TABLE sessions (
				user_id      TEXT PRIMARY KEY,
				flow         TEXT NOT NULL DEFAULT '',
				context      TEXT NOT NULL DEFAULT '{}',
				history      TEXT NOT NULL DEFAULT '[]',
				last_updated TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_updated ON sessions (last_updated);
		`,
		Postgres: `
			CREATE TABLE sessions (
				user_id      TEXT PRIMARY KEY,
				flow         TEXT NOT NULL DEFAULT '',
				context      JSONB NOT NULL DEFAULT '{}',
				history      JSONB NOT NULL DEFAULT '[]',
				last_updated TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_updated ON sessions (last_updated);
		`,
	},
}
