package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/workflow"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
// Guarded writes read the competing bookings and write the row inside one
// BEGIN IMMEDIATE transaction, so concurrent writers for the same slot are
// serialised by the database write lock.
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingColumns = `id, room_id, user_id, purpose, booking_type, start_date, end_date, start_time, end_time,
	selected_dates, expected_attendees, special_requirements, approval_status, approved_by, approved_at,
	rejection_reason, created_at, updated_at`

// CreateBooking inserts booking after guard accepted the competing bookings
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking, guard persistence.BookingGuard) error {
	if booking.ID == "" || booking.RoomID == "" || booking.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	selected, err := encodeDates(booking.SelectedDates)
	if err != nil {
		return err
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := runGuard(ctx, tx, booking, guard); err != nil {
			return err
		}

		query := `INSERT INTO bookings (` + bookingColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, query,
			booking.ID,
			booking.RoomID,
			booking.UserID,
			booking.Purpose,
			string(booking.Type),
			scheduler.FormatDate(booking.StartDate),
			scheduler.FormatDate(booking.EndDate),
			booking.StartTime.String(),
			booking.EndTime.String(),
			selected,
			booking.ExpectedAttendees,
			booking.SpecialRequirements,
			string(booking.Status),
			nullString(booking.ApprovedBy),
			nullTime(booking.ApprovedAt),
			booking.RejectionReason,
			formatTime(booking.CreatedAt),
			formatTime(booking.UpdatedAt),
		)
		return MapError(err)
	})
}

// UpdateBooking rewrites booking after guard accepted the competing bookings.
// A nil guard skips the read, which suits status-only changes.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking, guard persistence.BookingGuard) error {
	if booking.ID == "" {
		return persistence.ErrNotFound
	}

	selected, err := encodeDates(booking.SelectedDates)
	if err != nil {
		return err
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := runGuard(ctx, tx, booking, guard); err != nil {
			return err
		}

		query := `
			UPDATE bookings
			SET room_id = ?, purpose = ?, booking_type = ?, start_date = ?, end_date = ?, start_time = ?, end_time = ?,
				selected_dates = ?, expected_attendees = ?, special_requirements = ?, approval_status = ?,
				approved_by = ?, approved_at = ?, rejection_reason = ?, updated_at = ?
			WHERE id = ?`
		result, err := tx.ExecContext(ctx, query,
			booking.RoomID,
			booking.Purpose,
			string(booking.Type),
			scheduler.FormatDate(booking.StartDate),
			scheduler.FormatDate(booking.EndDate),
			booking.StartTime.String(),
			booking.EndTime.String(),
			selected,
			booking.ExpectedAttendees,
			booking.SpecialRequirements,
			string(booking.Status),
			nullString(booking.ApprovedBy),
			nullTime(booking.ApprovedAt),
			booking.RejectionReason,
			formatTime(booking.UpdatedAt),
			booking.ID,
		)
		if err != nil {
			return MapError(err)
		}
		return requireAffected(result)
	})
}

func runGuard(ctx context.Context, tx *sql.Tx, booking persistence.Booking, guard persistence.BookingGuard) error {
	if guard == nil {
		return nil
	}
	start, end := booking.StartDate, booking.EndDate
	existing, err := listBookings(ctx, tx, persistence.BookingFilter{
		RoomID:   booking.RoomID,
		Statuses: []workflow.Status{workflow.StatusPending, workflow.StatusApproved},
		From:     &start,
		To:       &end,
	})
	if err != nil {
		return err
	}

	competing := existing[:0]
	for _, b := range existing {
		if b.ID != booking.ID {
			competing = append(competing, b)
		}
	}
	return guard(competing)
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return scanBooking(r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
}

// ListBookings returns bookings matching filter ordered by start
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, r.pool.DB(), filter)
}

func listBookings(ctx context.Context, q queryer, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}

	var owner []string
	if filter.OwnerID != "" {
		owner = append(owner, "user_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(filter.RoomIDs) > 0 {
		owner = append(owner, "room_id IN ("+placeholders(len(filter.RoomIDs))+")")
		for _, id := range filter.RoomIDs {
			args = append(args, id)
		}
	}
	if len(owner) > 0 {
		clauses = append(clauses, "("+strings.Join(owner, " OR ")+")")
	}

	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "approval_status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.From != nil {
		clauses = append(clauses, "end_date >= ?")
		args = append(args, scheduler.FormatDate(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_date <= ?")
		args = append(args, scheduler.FormatDate(*filter.To))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_date ASC, start_time ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, MapError(rows.Err())
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		b                                      persistence.Booking
		bookingType, status                    string
		startDate, endDate, startTime, endTime string
		selected, approvedBy, approvedAt       sql.NullString
		createdAt, updatedAt                   string
	)
	err := row.Scan(
		&b.ID,
		&b.RoomID,
		&b.UserID,
		&b.Purpose,
		&bookingType,
		&startDate,
		&endDate,
		&startTime,
		&endTime,
		&selected,
		&b.ExpectedAttendees,
		&b.SpecialRequirements,
		&status,
		&approvedBy,
		&approvedAt,
		&b.RejectionReason,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Booking{}, MapError(err)
	}

	b.Type = scheduler.BookingType(bookingType)
	b.Status = workflow.Status(status)
	b.ApprovedBy = stringPtr(approvedBy)
	if b.StartDate, err = scheduler.ParseDate(startDate); err != nil {
		return persistence.Booking{}, err
	}
	if b.EndDate, err = scheduler.ParseDate(endDate); err != nil {
		return persistence.Booking{}, err
	}
	if b.StartTime, err = scheduler.ParseTimeOfDay(startTime); err != nil {
		return persistence.Booking{}, err
	}
	if b.EndTime, err = scheduler.ParseTimeOfDay(endTime); err != nil {
		return persistence.Booking{}, err
	}
	if b.SelectedDates, err = decodeDates(selected); err != nil {
		return persistence.Booking{}, err
	}
	if b.ApprovedAt, err = parseTimePtr(approvedAt); err != nil {
		return persistence.Booking{}, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return b, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
