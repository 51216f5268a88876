package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Analyses table - one row per processed video
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			video_path TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'partial', 'failed')),
			main_action TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			duration REAL NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			fps REAL NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Segments table - the coalesced timeline of an analysis
		`CREATE TABLE IF NOT EXISTS segments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			start_time REAL NOT NULL,
			end_time REAL NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			probabilities TEXT NOT NULL DEFAULT '{}',
			metrics TEXT NOT NULL DEFAULT '{}',
			form_quality TEXT
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_segments_analysis_seq ON segments(analysis_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
