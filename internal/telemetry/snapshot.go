package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/draycott-io/fleet-core/internal/infrastructure/database"
)

// SnapshotStore maintains the latest accepted report per device.
//
// The snapshot is a convenience projection for dashboard reads; it is
// updated best-effort after the history append, and a failed upsert
// does not reject the message.
type SnapshotStore interface {
	// Upsert replaces the device's snapshot with the given record.
	// Last arrival wins: no timestamp comparison is performed, matching
	// the at-least-once, unordered delivery of the broker.
	Upsert(ctx context.Context, record *Record) error

	// Get returns the device's current snapshot.
	// Returns ErrNoData if the device has never reported.
	Get(ctx context.Context, deviceID string) (*Record, error)
}

// SQLiteSnapshotStore implements SnapshotStore using SQLite.
type SQLiteSnapshotStore struct {
	db *database.DB
}

// NewSQLiteSnapshotStore creates a new SQLite-backed snapshot store.
func NewSQLiteSnapshotStore(db *database.DB) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{db: db}
}

// Upsert replaces the device's snapshot with the given record.
func (s *SQLiteSnapshotStore) Upsert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO device_latest_data (
			device_id, reported_at, received_at,
			latitude, longitude, altitude, speed, direction, gps_valid, satellites,
			rpm, fuel_level, fuel_consumption, engine_temp, mileage,
			battery_voltage, signal_strength, data_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			reported_at = excluded.reported_at,
			received_at = excluded.received_at,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude,
			speed = excluded.speed,
			direction = excluded.direction,
			gps_valid = excluded.gps_valid,
			satellites = excluded.satellites,
			rpm = excluded.rpm,
			fuel_level = excluded.fuel_level,
			fuel_consumption = excluded.fuel_consumption,
			engine_temp = excluded.engine_temp,
			mileage = excluded.mileage,
			battery_voltage = excluded.battery_voltage,
			signal_strength = excluded.signal_strength,
			data_status = excluded.data_status`

	_, err := s.db.ExecContext(ctx, query,
		record.DeviceID,
		record.ReportedAt.UTC().Format(time.RFC3339Nano),
		record.ReceivedAt.UTC().Format(time.RFC3339Nano),
		record.Latitude,
		record.Longitude,
		record.Altitude,
		record.Speed,
		record.Direction,
		nullableBool(record.GPSValid),
		record.Satellites,
		record.RPM,
		record.FuelLevel,
		record.FuelConsumption,
		record.EngineTemp,
		record.Mileage,
		record.BatteryVoltage,
		record.SignalStrength,
		int(record.DataStatus),
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}

	return nil
}

// Get returns the device's current snapshot.
func (s *SQLiteSnapshotStore) Get(ctx context.Context, deviceID string) (*Record, error) {
	// The snapshot table has no row id; select 0 to satisfy the shared
	// record scanner.
	query := `SELECT 0, device_id, reported_at, received_at,
		latitude, longitude, altitude, speed, direction, gps_valid, satellites,
		rpm, fuel_level, fuel_consumption, engine_temp, mileage,
		battery_voltage, signal_strength, data_status
		FROM device_latest_data
		WHERE device_id = ?`

	row := s.db.QueryRowContext(ctx, query, deviceID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return record, nil
}
