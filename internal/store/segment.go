package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/metrics"
	"github.com/ayusman/courtside/internal/timeline"
)

// SegmentRepository stores the coalesced timeline of each analysis.
type SegmentRepository struct {
	db *sql.DB
}

// Segments returns the segment repository for this store.
func (s *Store) Segments() *SegmentRepository {
	return &SegmentRepository{db: s.db}
}

// Replace stores segs as the timeline of an analysis, discarding any previous
// one, in a single transaction.
func (r *SegmentRepository) Replace(analysisID string, segs []timeline.Segment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM analyses WHERE id = ?`, analysisID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM segments WHERE analysis_id = ?`, analysisID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO segments (analysis_id, seq, start_time, end_time, label, confidence, probabilities, metrics, form_quality)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, seg := range segs {
		probs, err := json.Marshal(seg.Probabilities)
		if err != nil {
			return fmt.Errorf("encode probabilities of segment %d: %w", i, err)
		}
		m, err := json.Marshal(seg.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics of segment %d: %w", i, err)
		}
		var form sql.NullString
		if seg.FormQuality != nil {
			data, err := json.Marshal(seg.FormQuality)
			if err != nil {
				return fmt.Errorf("encode form quality of segment %d: %w", i, err)
			}
			form = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := stmt.Exec(analysisID, i, seg.StartTime, seg.EndTime, string(seg.Label),
			seg.Confidence, string(probs), string(m), form); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByAnalysisID returns the timeline of an analysis in order. An analysis
// without segments yields an empty slice.
func (r *SegmentRepository) GetByAnalysisID(analysisID string) ([]timeline.Segment, error) {
	rows, err := r.db.Query(
		`SELECT start_time, end_time, label, confidence, probabilities, metrics, form_quality
		 FROM segments WHERE analysis_id = ? ORDER BY seq`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segs := []timeline.Segment{}
	for rows.Next() {
		var (
			seg          timeline.Segment
			label        string
			probs, mdata string
			form         sql.NullString
		)
		if err := rows.Scan(&seg.StartTime, &seg.EndTime, &label, &seg.Confidence, &probs, &mdata, &form); err != nil {
			return nil, err
		}
		seg.Label = action.Label(label)

		if err := json.Unmarshal([]byte(probs), &seg.Probabilities); err != nil {
			return nil, fmt.Errorf("decode probabilities: %w", err)
		}
		if err := json.Unmarshal([]byte(mdata), &seg.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		if form.Valid {
			seg.FormQuality = &metrics.Assessment{}
			if err := json.Unmarshal([]byte(form.String), seg.FormQuality); err != nil {
				return nil, fmt.Errorf("decode form quality: %w", err)
			}
		}
		segs = append(segs, seg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return segs, nil
}
