package store

// runMigrations executes all database migrations.
func (s *SQLite) runMigrations() error {
	migrations := []string{
		// Samples table - one normalized feature vector per row
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			language TEXT NOT NULL,
			side TEXT NOT NULL CHECK(side IN ('left', 'right')),
			label TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_samples_partition ON samples(language, side, label)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
