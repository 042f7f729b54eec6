// Package ingest routes device-originated MQTT messages into the
// domain services.
//
// The pipeline subscribes to the device message tree, parses each topic
// into a device ID and category, and dispatches through a bounded queue
// drained by a fixed worker pool:
//
//	device/{deviceId}/data       -> authenticate, validate, dual-write
//	device/{deviceId}/location   -> authenticate, validate, dual-write
//	device/{deviceId}/alarm      -> authenticate, record alarm
//	device/{deviceId}/status     -> presence transition (online/offline)
//	device/{deviceId}/heartbeat  -> liveness refresh, no presence log
//
// Enqueue never blocks the MQTT handler: a full queue drops the message
// and increments a counter. Each message is processed under its own
// timeout so one slow write cannot stall the pool.
package ingest
