package store

import (
	"database/sql"
	"errors"
	"time"
)

// Artifact is a persisted capture output: a rectified document side or a
// face crop, tied to the booking it verifies.
type Artifact struct {
	ID         int64
	BookingID  string
	Kind       string // "document" or "face"
	Label      string // side ("front"/"back") or liveness action
	SessionID  string
	Confidence float64
	Data       []byte
	CreatedAt  time.Time
}

// ArtifactRepository provides persistence for capture artifacts.
type ArtifactRepository struct {
	db *sql.DB
}

// Artifacts returns the artifact repository for this store.
func (s *Store) Artifacts() *ArtifactRepository {
	return &ArtifactRepository{db: s.db}
}

// Create inserts an artifact and fills in its assigned ID.
func (r *ArtifactRepository) Create(a *Artifact) error {
	a.CreatedAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO artifacts (booking_id, kind, label, session_id, confidence, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.BookingID, a.Kind, a.Label, a.SessionID, a.Confidence, a.Data, a.CreatedAt,
	)
	if err != nil {
		return err
	}

	a.ID, err = result.LastInsertId()
	return err
}

// GetByID retrieves an artifact, including its image data.
func (r *ArtifactRepository) GetByID(id int64) (*Artifact, error) {
	a := &Artifact{}

	err := r.db.QueryRow(
		`SELECT id, booking_id, kind, label, session_id, confidence, data, created_at
		 FROM artifacts WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.BookingID, &a.Kind, &a.Label, &a.SessionID, &a.Confidence, &a.Data, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

// ListByBooking retrieves a booking's artifacts in capture order, image
// data included.
func (r *ArtifactRepository) ListByBooking(bookingID string) ([]*Artifact, error) {
	rows, err := r.db.Query(
		`SELECT id, booking_id, kind, label, session_id, confidence, data, created_at
		 FROM artifacts WHERE booking_id = ? ORDER BY id ASC`,
		bookingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a := &Artifact{}
		if err := rows.Scan(&a.ID, &a.BookingID, &a.Kind, &a.Label, &a.SessionID, &a.Confidence, &a.Data, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// DeleteByLabel removes a booking's artifacts for one label, so a recapture
// replaces the previous take instead of piling up next to it.
func (r *ArtifactRepository) DeleteByLabel(bookingID, kind, label string) error {
	_, err := r.db.Exec(
		`DELETE FROM artifacts WHERE booking_id = ? AND kind = ? AND label = ?`,
		bookingID, kind, label,
	)
	return err
}

// DeleteByBooking removes every artifact of one kind captured for a
// booking. Used to clear a superseded liveness round before persisting the
// accepted one.
func (r *ArtifactRepository) DeleteByBooking(bookingID string, kind string) error {
	_, err := r.db.Exec(
		`DELETE FROM artifacts WHERE booking_id = ? AND kind = ?`,
		bookingID, kind,
	)
	return err
}
