package sqlite

import (
	"context"

	"github.com/example/room-booking/internal/persistence"
)

// NoteRepository implements persistence.BookingNoteRepository using SQLite
type NoteRepository struct {
	pool *ConnectionPool
}

// NewNoteRepository creates a new SQLite booking note repository
func NewNoteRepository(pool *ConnectionPool) *NoteRepository {
	return &NoteRepository{pool: pool}
}

// CreateNote appends a note to a booking
func (r *NoteRepository) CreateNote(ctx context.Context, note persistence.BookingNote) error {
	if note.ID == "" || note.BookingID == "" || note.AuthorID == "" || note.Body == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO booking_notes (id, booking_id, author_id, body, is_internal, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID, note.BookingID, note.AuthorID, note.Body, boolInt(note.IsInternal), formatTime(note.CreatedAt),
	)
	return MapError(err)
}

// ListNotes returns a booking's notes oldest first
func (r *NoteRepository) ListNotes(ctx context.Context, bookingID string, includeInternal bool) ([]persistence.BookingNote, error) {
	query := `SELECT id, booking_id, author_id, body, is_internal, created_at FROM booking_notes WHERE booking_id = ?`
	if !includeInternal {
		query += " AND is_internal = 0"
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var notes []persistence.BookingNote
	for rows.Next() {
		var (
			note      persistence.BookingNote
			internal  int
			createdAt string
		)
		if err := rows.Scan(&note.ID, &note.BookingID, &note.AuthorID, &note.Body, &internal, &createdAt); err != nil {
			return nil, MapError(err)
		}
		note.IsInternal = internal == 1
		if note.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, MapError(rows.Err())
}
