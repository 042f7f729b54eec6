// Package device manages the fleet's device registry.
//
// It owns device identity (registration, generated device IDs and
// secrets), the authentication gate for telemetry ingestion, and the
// ONLINE/OFFLINE presence state machine with its transition log.
//
// # Architecture
//
// The Repository interface abstracts persistence; SQLiteRepository is
// the production implementation. The Registry wraps a Repository with
// an in-memory cache keyed by device ID, because every ingested message
// needs a registry lookup and SQLite has a single write connection.
//
// # Authentication
//
// Devices authenticate per payload with a shared secret issued at
// registration. Authenticate checks registration, secret, and lifecycle
// status in that order and returns a distinct sentinel error for each
// failure so callers can log rejection reasons precisely.
//
// # Presence
//
// SetOnline and SetOffline update the device row and append to the
// device_online_log table in one transaction. Heartbeats refresh the
// liveness timestamp without logging, since they arrive continuously.
package device
