package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid || value.String == "" {
		return nil
	}
	s := value.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// selected dates keep their order and duplicates; nil is stored as NULL
func encodeDates(dates []time.Time) (sql.NullString, error) {
	if len(dates) == 0 {
		return sql.NullString{}, nil
	}
	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = scheduler.FormatDate(d)
	}
	raw, err := json.Marshal(formatted)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeDates(raw sql.NullString) ([]time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var formatted []string
	if err := json.Unmarshal([]byte(raw.String), &formatted); err != nil {
		return nil, fmt.Errorf("decode selected dates: %w", err)
	}
	if len(formatted) == 0 {
		return nil, nil
	}
	dates := make([]time.Time, len(formatted))
	for i, value := range formatted {
		d, err := scheduler.ParseDate(value)
		if err != nil {
			return nil, err
		}
		dates[i] = d
	}
	return dates, nil
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode audit data: %w", err)
	}
	return string(raw), nil
}

func decodeData(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode audit data: %w", err)
	}
	return data, nil
}
