package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Bookings table - one row per verification flow
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			reference TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL CHECK(status IN ('pending', 'documents', 'liveness', 'complete')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Artifacts table - rectified capture outputs per booking
		`CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
			kind TEXT NOT NULL CHECK(kind IN ('document', 'face')),
			label TEXT NOT NULL,
			session_id TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			data BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_artifacts_booking_id ON artifacts(booking_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
