package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// BookingStatus tracks how far a booking has progressed through
// verification.
type BookingStatus string

const (
	// StatusPending means no artifact has been captured yet.
	StatusPending BookingStatus = "pending"
	// StatusDocuments means document capture is underway or done.
	StatusDocuments BookingStatus = "documents"
	// StatusLiveness means the liveness sequence is underway.
	StatusLiveness BookingStatus = "liveness"
	// StatusComplete means all required artifacts have been accepted.
	StatusComplete BookingStatus = "complete"
)

// Booking represents one verification flow.
type Booking struct {
	ID        string
	Reference string
	Status    BookingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingRepository provides CRUD operations for bookings.
type BookingRepository struct {
	db *sql.DB
}

// Bookings returns the booking repository for this store.
func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{db: s.db}
}

// Create inserts a new booking.
func (r *BookingRepository) Create(b *Booking) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = StatusPending
	}

	_, err := r.db.Exec(
		`INSERT INTO bookings (id, reference, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Reference, string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepository) GetByID(id string) (*Booking, error) {
	return r.scanOne(
		`SELECT id, reference, status, created_at, updated_at
		 FROM bookings WHERE id = ?`,
		id,
	)
}

// GetByReference retrieves a booking by its external reference.
func (r *BookingRepository) GetByReference(reference string) (*Booking, error) {
	return r.scanOne(
		`SELECT id, reference, status, created_at, updated_at
		 FROM bookings WHERE reference = ?`,
		reference,
	)
}

func (r *BookingRepository) scanOne(query string, arg any) (*Booking, error) {
	b := &Booking{}
	var status string

	err := r.db.QueryRow(query, arg).
		Scan(&b.ID, &b.Reference, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	b.Status = BookingStatus(status)
	return b, nil
}

// List retrieves all bookings, most recent first.
func (r *BookingRepository) List() ([]*Booking, error) {
	rows, err := r.db.Query(
		`SELECT id, reference, status, created_at, updated_at
		 FROM bookings ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b := &Booking{}
		var status string

		if err := rows.Scan(&b.ID, &b.Reference, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}

		b.Status = BookingStatus(status)
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

// UpdateStatus advances a booking's status.
func (r *BookingRepository) UpdateStatus(id string, status BookingStatus) error {
	result, err := r.db.Exec(
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a booking and, via cascade, its artifacts.
func (r *BookingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
