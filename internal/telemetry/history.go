package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/draycott-io/fleet-core/internal/infrastructure/database"
)

// HistoryStore persists the append-only telemetry history.
// History is the source of truth: a failed append rejects the message.
type HistoryStore interface {
	// Append inserts one record. Sets record.ID on success.
	Append(ctx context.Context, record *Record) error

	// Latest returns the most recent record for a device by reported time.
	// Returns ErrNoData if the device has no history.
	Latest(ctx context.Context, deviceID string) (*Record, error)

	// History returns up to limit records for a device, newest first.
	History(ctx context.Context, deviceID string, limit int) ([]Record, error)

	// Prune deletes history rows received before the cutoff.
	// Returns the number of rows removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// recordColumns is the column list shared by history queries.
const recordColumns = `id, device_id, reported_at, received_at,
	latitude, longitude, altitude, speed, direction, gps_valid, satellites,
	rpm, fuel_level, fuel_consumption, engine_temp, mileage,
	battery_voltage, signal_strength, data_status`

// SQLiteHistoryStore implements HistoryStore using SQLite.
type SQLiteHistoryStore struct {
	db *database.DB
}

// NewSQLiteHistoryStore creates a new SQLite-backed history store.
func NewSQLiteHistoryStore(db *database.DB) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{db: db}
}

// Append inserts one record into the history table.
func (s *SQLiteHistoryStore) Append(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO telemetry_history (
			device_id, reported_at, received_at,
			latitude, longitude, altitude, speed, direction, gps_valid, satellites,
			rpm, fuel_level, fuel_consumption, engine_temp, mileage,
			battery_voltage, signal_strength, data_status, raw_payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
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
		record.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryWrite, err)
	}

	record.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: reading insert id: %w", ErrHistoryWrite, err)
	}

	return nil
}

// Latest returns the most recent record for a device by reported time.
func (s *SQLiteHistoryStore) Latest(ctx context.Context, deviceID string) (*Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM telemetry_history
		WHERE device_id = ?
		ORDER BY reported_at DESC, id DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, deviceID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("querying latest record: %w", err)
	}
	return record, nil
}

// History returns up to limit records for a device, newest first.
func (s *SQLiteHistoryStore) History(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + recordColumns + `
		FROM telemetry_history
		WHERE device_id = ?
		ORDER BY reported_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	return records, nil
}

// Prune deletes history rows received before the cutoff.
func (s *SQLiteHistoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM telemetry_history WHERE received_at < ?",
		before.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return removed, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row or rows result into a Record.
// The raw_payload column is deliberately excluded from reads; it exists
// for audit and is only ever written.
func scanRecord(scanner rowScanner) (*Record, error) {
	var r Record
	var reportedAt, receivedAt string
	var lat, lng, alt, speed, direction sql.NullFloat64
	var gpsValid sql.NullInt64
	var satellites sql.NullInt64
	var rpm, fuelLevel, fuelConsumption, engineTemp, mileage sql.NullFloat64
	var batteryVoltage sql.NullFloat64
	var signalStrength sql.NullInt64
	var dataStatus int

	err := scanner.Scan(
		&r.ID,
		&r.DeviceID,
		&reportedAt,
		&receivedAt,
		&lat, &lng, &alt, &speed, &direction, &gpsValid, &satellites,
		&rpm, &fuelLevel, &fuelConsumption, &engineTemp, &mileage,
		&batteryVoltage, &signalStrength, &dataStatus,
	)
	if err != nil {
		return nil, err
	}

	var parseErr error
	r.ReportedAt, parseErr = time.Parse(time.RFC3339Nano, reportedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing reported_at: %w", parseErr)
	}
	r.ReceivedAt, parseErr = time.Parse(time.RFC3339Nano, receivedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing received_at: %w", parseErr)
	}

	r.Latitude = floatPtr(lat)
	r.Longitude = floatPtr(lng)
	r.Altitude = floatPtr(alt)
	r.Speed = floatPtr(speed)
	r.Direction = floatPtr(direction)
	r.GPSValid = boolPtr(gpsValid)
	r.Satellites = intPtr(satellites)
	r.RPM = floatPtr(rpm)
	r.FuelLevel = floatPtr(fuelLevel)
	r.FuelConsumption = floatPtr(fuelConsumption)
	r.EngineTemp = floatPtr(engineTemp)
	r.Mileage = floatPtr(mileage)
	r.BatteryVoltage = floatPtr(batteryVoltage)
	r.SignalStrength = intPtr(signalStrength)
	r.DataStatus = DataStatus(dataStatus)

	return &r, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func boolPtr(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}

// nullableBool converts an optional bool to a nullable 0/1 for SQLite.
func nullableBool(v *bool) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	var i int64
	if *v {
		i = 1
	}
	return sql.NullInt64{Int64: i, Valid: true}
}
