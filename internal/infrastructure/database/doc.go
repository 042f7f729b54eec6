// Package database provides the SQLite persistence layer for Fleet Core.
//
// It wraps database/sql with lifecycle management (WAL mode, busy
// timeout, single-writer pool sizing), a health check, a shared
// transaction helper, and an embedded-filesystem migration runner.
//
// The device registry, telemetry history, and latest-snapshot stores
// all share one DB instance. SQLite's single-writer model suits the
// ingest pipeline: every write funnels through the worker pool, so
// contention stays low even under sustained telemetry load.
//
// Migrations are .sql files embedded by the migrations package and
// applied in filename order, each in its own transaction, tracked in
// the schema_migrations table.
package database
