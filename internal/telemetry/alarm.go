package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/draycott-io/fleet-core/internal/infrastructure/database"
)

// AlarmStore persists alarm reports raised on the alarm topic.
type AlarmStore interface {
	// Append inserts one alarm. Sets alarm.ID on success.
	Append(ctx context.Context, alarm *Alarm) error

	// Recent returns up to limit alarms for a device, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]Alarm, error)
}

// SQLiteAlarmStore implements AlarmStore using SQLite.
type SQLiteAlarmStore struct {
	db *database.DB
}

// NewSQLiteAlarmStore creates a new SQLite-backed alarm store.
func NewSQLiteAlarmStore(db *database.DB) *SQLiteAlarmStore {
	return &SQLiteAlarmStore{db: db}
}

// Append inserts one alarm.
func (s *SQLiteAlarmStore) Append(ctx context.Context, alarm *Alarm) error {
	if alarm.Severity == "" {
		alarm.Severity = "warning"
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO device_alarms (
			device_id, alarm_type, severity, message, payload, reported_at, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alarm.DeviceID,
		alarm.AlarmType,
		alarm.Severity,
		alarm.Message,
		alarm.Payload,
		alarm.ReportedAt.UTC().Format(time.RFC3339Nano),
		alarm.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting alarm: %w", err)
	}

	alarm.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}

	return nil
}

// Recent returns up to limit alarms for a device, newest first.
func (s *SQLiteAlarmStore) Recent(ctx context.Context, deviceID string, limit int) ([]Alarm, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, alarm_type, severity, message, reported_at, received_at
		FROM device_alarms
		WHERE device_id = ?
		ORDER BY reported_at DESC, id DESC
		LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying alarms: %w", err)
	}
	defer rows.Close()

	var alarms []Alarm
	for rows.Next() {
		var a Alarm
		var reportedAt, receivedAt string
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.AlarmType, &a.Severity, &a.Message, &reportedAt, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning alarm row: %w", err)
		}
		a.ReportedAt, _ = time.Parse(time.RFC3339Nano, reportedAt)   //nolint:errcheck // Format is controlled
		a.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt)   //nolint:errcheck // Format is controlled
		alarms = append(alarms, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alarms: %w", err)
	}

	return alarms, nil
}
