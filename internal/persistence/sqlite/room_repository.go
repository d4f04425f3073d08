package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

const roomColumns = `id, name, category, capacity, location, floor, description, amenities,
	min_booking_hours, max_booking_hours, advance_booking_days, is_active, created_at, updated_at`

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity < scheduler.MinRoomCapacity {
		return persistence.ErrConstraintViolation
	}

	amenities, err := encodeStrings(room.Amenities)
	if err != nil {
		return err
	}

	query := `INSERT INTO rooms (` + roomColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.pool.DB().ExecContext(ctx, query,
		room.ID,
		room.Name,
		string(room.Category),
		room.Capacity,
		room.Location,
		room.Floor,
		room.Description,
		amenities,
		room.MinBookingHours,
		room.MaxBookingHours,
		room.AdvanceBookingDays,
		boolInt(room.IsActive),
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	return MapError(err)
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrNotFound
	}
	if room.Capacity < scheduler.MinRoomCapacity {
		return persistence.ErrConstraintViolation
	}

	amenities, err := encodeStrings(room.Amenities)
	if err != nil {
		return err
	}

	query := `
		UPDATE rooms
		SET name = ?, category = ?, capacity = ?, location = ?, floor = ?, description = ?, amenities = ?,
			min_booking_hours = ?, max_booking_hours = ?, advance_booking_days = ?, is_active = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.pool.DB().ExecContext(ctx, query,
		room.Name,
		string(room.Category),
		room.Capacity,
		room.Location,
		room.Floor,
		room.Description,
		amenities,
		room.MinBookingHours,
		room.MaxBookingHours,
		room.AdvanceBookingDays,
		boolInt(room.IsActive),
		formatTime(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return getRoom(ctx, r.pool.DB(), id)
}

func getRoom(ctx context.Context, q queryer, id string) (persistence.Room, error) {
	return scanRoom(q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

// ListRooms returns rooms matching filter ordered by name then ID
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.MinCapacity > 0 {
		clauses = append(clauses, "capacity >= ?")
		args = append(args, filter.MinCapacity)
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active = 1")
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name COLLATE NOCASE ASC, id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, MapError(rows.Err())
}

// DeleteRoom removes a room by ID; its bookings cascade
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return MapError(err)
	}
	return requireAffected(result)
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		category, amenities  string
		active               int
		createdAt, updatedAt string
	)
	err := row.Scan(
		&room.ID,
		&room.Name,
		&category,
		&room.Capacity,
		&room.Location,
		&room.Floor,
		&room.Description,
		&amenities,
		&room.MinBookingHours,
		&room.MaxBookingHours,
		&room.AdvanceBookingDays,
		&active,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Room{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Room{}, MapError(err)
	}

	room.Category = scheduler.Category(category)
	room.IsActive = active == 1
	if room.Amenities, err = decodeStrings(amenities); err != nil {
		return persistence.Room{}, err
	}
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
