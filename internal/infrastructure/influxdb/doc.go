// Package influxdb mirrors telemetry into a time-series bucket.
//
// SQLite remains the source of truth; this client feeds analytics
// dashboards with batched, non-blocking writes. Mirror failures are
// reported through an async error callback and never fail ingest.
package influxdb
