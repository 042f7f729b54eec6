// Package telemetry implements the report processing core of Fleet Core.
//
// # Write Path
//
// An authenticated report flows through Validate, Normalize, and then a
// dual write: an append-only insert into telemetry_history (mandatory,
// the source of truth) and an upsert into device_latest_data
// (best-effort). Accepted records also refresh the in-process snapshot
// cache, mirror into InfluxDB, and broadcast to websocket subscribers -
// all best-effort.
//
// # Read Path
//
// Latest is cache-aside: the snapshot cache first, then the snapshot
// table, with results written back. Cache entries expire after a
// configurable TTL (default 24h) so devices that stop reporting age
// out. History reads go straight to the history table.
//
// # Validation
//
// Measurement fields are pointers throughout: absent is distinct from
// zero. Only present values are range-checked, and a single violation
// rejects the whole report.
package telemetry
