package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/security"
)

// AuditRepository implements persistence.AuditRepository using SQLite
type AuditRepository struct {
	pool *ConnectionPool
}

// NewAuditRepository creates a new SQLite audit log repository
func NewAuditRepository(pool *ConnectionPool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// AppendAudit stores an audit entry
func (r *AuditRepository) AppendAudit(ctx context.Context, entry security.AuditEntry) error {
	if entry.ID == "" || !entry.Action.Valid() {
		return persistence.ErrConstraintViolation
	}
	data, err := encodeData(entry.Data)
	if err != nil {
		return err
	}
	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, description, object_type, object_id, ip, user_agent, additional_data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullString(entry.ActorID),
		string(entry.Action),
		entry.Description,
		entry.ObjectType,
		entry.ObjectID,
		entry.IP,
		entry.UserAgent,
		data,
		formatTime(entry.Timestamp),
	)
	return MapError(err)
}

// ListAudit returns entries matching filter, newest first
func (r *AuditRepository) ListAudit(ctx context.Context, filter persistence.AuditFilter) ([]security.AuditEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.ObjectType != "" {
		clauses = append(clauses, "object_type = ?")
		args = append(args, filter.ObjectType)
	}
	if filter.ObjectID != "" {
		clauses = append(clauses, "object_id = ?")
		args = append(args, filter.ObjectID)
	}

	query := `SELECT id, actor_id, action, description, object_type, object_id, ip, user_agent, additional_data, timestamp FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var entries []security.AuditEntry
	for rows.Next() {
		var (
			entry           security.AuditEntry
			actor           sql.NullString
			action          string
			data, timestamp string
		)
		if err := rows.Scan(&entry.ID, &actor, &action, &entry.Description, &entry.ObjectType, &entry.ObjectID,
			&entry.IP, &entry.UserAgent, &data, &timestamp); err != nil {
			return nil, MapError(err)
		}
		entry.ActorID = stringPtr(actor)
		entry.Action = security.Action(action)
		if entry.Data, err = decodeData(data); err != nil {
			return nil, err
		}
		if entry.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, MapError(rows.Err())
}
