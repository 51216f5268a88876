package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Status is the lifecycle state of an analysis.
type Status string

const (
	// StatusRunning means the video is still being processed.
	StatusRunning Status = "running"
	// StatusCompleted means the whole video was processed.
	StatusCompleted Status = "completed"
	// StatusPartial means processing was cancelled; the timeline covers a prefix.
	StatusPartial Status = "partial"
	// StatusFailed means no timeline could be produced.
	StatusFailed Status = "failed"
)

// Analysis is one processed video.
type Analysis struct {
	ID         string    `json:"id"`
	VideoPath  string    `json:"video_path"`
	Status     Status    `json:"status"`
	MainAction string    `json:"main_action"`
	Confidence float64   `json:"confidence"`
	Duration   float64   `json:"duration"`
	Frames     int       `json:"frames"`
	FPS        float64   `json:"fps"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AnalysisRepository provides CRUD operations for analyses.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository for this store.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

const analysisColumns = `id, video_path, status, main_action, confidence, duration, frames, fps, error, created_at, updated_at`

// Create inserts a new analysis into the database.
func (r *AnalysisRepository) Create(a *Analysis) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO analyses (`+analysisColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.VideoPath, string(a.Status), a.MainAction, a.Confidence, a.Duration,
		a.Frames, a.FPS, a.Error, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	a := &Analysis{}
	var status string
	err := row.Scan(&a.ID, &a.VideoPath, &status, &a.MainAction, &a.Confidence, &a.Duration,
		&a.Frames, &a.FPS, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return a, nil
}

// GetByID retrieves an analysis by its ID.
func (r *AnalysisRepository) GetByID(id string) (*Analysis, error) {
	a, err := scanAnalysis(r.db.QueryRow(
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List retrieves all analyses, newest first.
func (r *AnalysisRepository) List() ([]*Analysis, error) {
	rows, err := r.db.Query(`SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return analyses, nil
}

// Update writes the mutable fields of an existing analysis.
func (r *AnalysisRepository) Update(a *Analysis) error {
	a.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE analyses SET status = ?, main_action = ?, confidence = ?, duration = ?,
		 frames = ?, fps = ?, error = ?, updated_at = ?
		 WHERE id = ?`,
		string(a.Status), a.MainAction, a.Confidence, a.Duration,
		a.Frames, a.FPS, a.Error, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an analysis and its segments.
func (r *AnalysisRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
