package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/draycott-io/fleet-core/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByDeviceID retrieves a device by its external identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByDeviceID(ctx context.Context, deviceID string) (*Identity, error)

	// List retrieves all registered devices.
	List(ctx context.Context) ([]Identity, error)

	// ListByOnlineStatus retrieves all devices in the given presence state.
	ListByOnlineStatus(ctx context.Context, status OnlineStatus) ([]Identity, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the device ID is already registered.
	Create(ctx context.Context, identity *Identity) error

	// UpdateOnline marks a device online and appends an online log entry.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateOnline(ctx context.Context, deviceID, ip string, at time.Time) error

	// UpdateOffline marks a device offline and appends an offline log entry.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateOffline(ctx context.Context, deviceID string, at time.Time) error

	// TouchHeartbeat refreshes the last-online timestamp without logging
	// a presence transition.
	TouchHeartbeat(ctx context.Context, deviceID string, at time.Time) error

	// OnlineLog returns the most recent presence transitions for a device,
	// newest first.
	OnlineLog(ctx context.Context, deviceID string, limit int) ([]OnlineLogEntry, error)

	// Exists reports whether a device ID is registered.
	Exists(ctx context.Context, deviceID string) (bool, error)
}

// identityColumns is the column list shared by all identity queries.
const identityColumns = `id, device_id, name, secret, type, model, status,
	online_status, last_online_at, last_offline_at, last_ip, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByDeviceID retrieves a device by its external identifier.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM devices WHERE device_id = ?`

	row := r.db.QueryRowContext(ctx, query, deviceID)
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by device_id: %w", err)
	}
	return identity, nil
}

// List retrieves all registered devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM devices ORDER BY device_id`
	return r.queryIdentities(ctx, query)
}

// ListByOnlineStatus retrieves all devices in the given presence state.
func (r *SQLiteRepository) ListByOnlineStatus(ctx context.Context, status OnlineStatus) ([]Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM devices WHERE online_status = ? ORDER BY device_id`
	return r.queryIdentities(ctx, query, int(status))
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, identity *Identity) error {
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	query := `
		INSERT INTO devices (
			device_id, name, secret, type, model, status, online_status,
			last_online_at, last_offline_at, last_ip, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		identity.DeviceID,
		identity.Name,
		identity.Secret,
		identity.Type,
		identity.Model,
		int(identity.Status),
		int(identity.OnlineStatus),
		nullableTime(identity.LastOnlineAt),
		nullableTime(identity.LastOfflineAt),
		identity.LastIP,
		identity.CreatedAt.Format(time.RFC3339),
		identity.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	identity.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}

	return nil
}

// UpdateOnline marks a device online and appends an online log entry.
// Both writes happen in one transaction so the log never disagrees with
// the device row.
func (r *SQLiteRepository) UpdateOnline(ctx context.Context, deviceID, ip string, at time.Time) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE devices
			SET online_status = ?, last_online_at = ?, last_ip = ?, updated_at = ?
			WHERE device_id = ?`,
			int(Online),
			at.UTC().Format(time.RFC3339),
			ip,
			time.Now().UTC().Format(time.RFC3339),
			deviceID,
		)
		if err != nil {
			return fmt.Errorf("updating device online: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO device_online_log (device_id, event, ip, occurred_at)
			VALUES (?, 'online', ?, ?)`,
			deviceID, ip, at.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting online log: %w", err)
		}

		return nil
	})
}

// UpdateOffline marks a device offline and appends an offline log entry.
func (r *SQLiteRepository) UpdateOffline(ctx context.Context, deviceID string, at time.Time) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE devices
			SET online_status = ?, last_offline_at = ?, updated_at = ?
			WHERE device_id = ?`,
			int(Offline),
			at.UTC().Format(time.RFC3339),
			time.Now().UTC().Format(time.RFC3339),
			deviceID,
		)
		if err != nil {
			return fmt.Errorf("updating device offline: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO device_online_log (device_id, event, ip, occurred_at)
			VALUES (?, 'offline', '', ?)`,
			deviceID, at.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting offline log: %w", err)
		}

		return nil
	})
}

// TouchHeartbeat refreshes the last-online timestamp.
// Heartbeats are frequent, so this avoids the transaction and log insert
// that a full presence transition requires.
func (r *SQLiteRepository) TouchHeartbeat(ctx context.Context, deviceID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET last_online_at = ?, updated_at = ?
		WHERE device_id = ?`,
		at.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		deviceID,
	)
	if err != nil {
		return fmt.Errorf("touching heartbeat: %w", err)
	}
	return requireRow(result)
}

// OnlineLog returns the most recent presence transitions, newest first.
func (r *SQLiteRepository) OnlineLog(ctx context.Context, deviceID string, limit int) ([]OnlineLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, event, ip, occurred_at
		FROM device_online_log
		WHERE device_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying online log: %w", err)
	}
	defer rows.Close()

	var entries []OnlineLogEntry
	for rows.Next() {
		var e OnlineLogEntry
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Event, &e.IP, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning online log row: %w", err)
		}
		e.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt) //nolint:errcheck // Format is controlled
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating online log: %w", err)
	}
	return entries, nil
}

// Exists reports whether a device ID is registered.
func (r *SQLiteRepository) Exists(ctx context.Context, deviceID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE device_id = ?", deviceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking device exists: %w", err)
	}
	return count > 0, nil
}

// queryIdentities executes a query and returns a slice of identities.
func (r *SQLiteRepository) queryIdentities(ctx context.Context, query string, args ...any) ([]Identity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		identities = append(identities, *identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return identities, nil
}

// requireRow converts a zero-rows-affected result into ErrDeviceNotFound.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanIdentity scans a row or rows result into an Identity.
func scanIdentity(scanner rowScanner) (*Identity, error) {
	var d Identity
	var status, onlineStatus int
	var lastOnlineAt, lastOfflineAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.DeviceID,
		&d.Name,
		&d.Secret,
		&d.Type,
		&d.Model,
		&status,
		&onlineStatus,
		&lastOnlineAt,
		&lastOfflineAt,
		&d.LastIP,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	d.OnlineStatus = OnlineStatus(onlineStatus)

	if lastOnlineAt.Valid {
		t, err := time.Parse(time.RFC3339, lastOnlineAt.String)
		if err == nil {
			d.LastOnlineAt = &t
		}
	}
	if lastOfflineAt.Valid {
		t, err := time.Parse(time.RFC3339, lastOfflineAt.String)
		if err == nil {
			d.LastOfflineAt = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
