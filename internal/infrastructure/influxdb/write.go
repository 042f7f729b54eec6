package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry mirrors an accepted telemetry record to InfluxDB.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Fields should contain only the measurements the device actually
// reported (speed, rpm, fuel_level, engine_temp, ...) so absent values
// don't pollute the series.
//
// Parameters:
//   - deviceID: The reporting device's external identifier
//   - fields: Measurement name to value (float64 or int64)
//   - reportedAt: Device-reported timestamp for the point
//
// Example:
//
//	client.WriteTelemetry("DEV...", map[string]interface{}{
//	    "speed": 62.5, "rpm": 2100.0, "fuel_level": 71.0,
//	}, reportedAt)
func (c *Client) WriteTelemetry(deviceID string, fields map[string]interface{}, reportedAt time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		reportedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePresenceEvent records an ONLINE/OFFLINE transition.
//
// Parameters:
//   - deviceID: Device identifier
//   - event: "online" or "offline"
func (c *Client) WritePresenceEvent(deviceID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"presence",
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAlarm records an alarm report for alerting dashboards.
//
// Parameters:
//   - deviceID: Device identifier
//   - alarmType: Alarm category reported by the device
//   - severity: Alarm severity (info, warning, critical)
func (c *Client) WriteAlarm(deviceID string, alarmType string, severity string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"alarms",
		map[string]string{
			"device_id":  deviceID,
			"alarm_type": alarmType,
			"severity":   severity,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
