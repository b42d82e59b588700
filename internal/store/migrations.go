package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per processing run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			speed_limit REAL NOT NULL,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			frames INTEGER NOT NULL DEFAULT 0,
			vehicles INTEGER NOT NULL DEFAULT 0,
			overspeed INTEGER NOT NULL DEFAULT 0
		)`,

		// Speed events table - one row per vehicle, logged on first valid speed
		`CREATE TABLE IF NOT EXISTS speed_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			track_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			speed_kmh REAL NOT NULL,
			speed_limit REAL NOT NULL,
			is_overspeed INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_speed_events_session_id ON speed_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_speed_events_recorded_at ON speed_events(recorded_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
