package telemetry

import "time"

// Report is a telemetry payload as published by a device.
//
// All measurement fields are pointers: devices report only the sections
// and values they have, and absent must stay distinguishable from zero
// (0.0 latitude is a real coordinate, 0 RPM is a real reading).
type Report struct {
	// Secret is the device credential for payload authentication.
	// Stripped before persistence.
	Secret string `json:"secret,omitempty"`

	// Timestamp is the device-reported time in milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`

	GPS    *GPSReading    `json:"gps,omitempty"`
	OBD    *OBDReading    `json:"obd,omitempty"`
	Status *StatusReading `json:"status,omitempty"`
}

// GPSReading is the positioning section of a report. Field names follow
// the device wire format (camelCase, abbreviated lat/lng), which differs
// from the snake_case used on stored records.
type GPSReading struct {
	Latitude   *float64 `json:"lat,omitempty"`
	Longitude  *float64 `json:"lng,omitempty"`
	Altitude   *float64 `json:"altitude,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Direction  *float64 `json:"direction,omitempty"`
	Valid      *bool    `json:"valid,omitempty"`
	Satellites *int     `json:"satellites,omitempty"`
}

// OBDReading is the engine diagnostics section of a report.
type OBDReading struct {
	RPM             *float64 `json:"rpm,omitempty"`
	FuelLevel       *float64 `json:"fuelLevel,omitempty"`
	FuelConsumption *float64 `json:"fuelConsumption,omitempty"`
	EngineTemp      *float64 `json:"engineTemp,omitempty"`
	Mileage         *float64 `json:"mileage,omitempty"`
}

// StatusReading is the device health section of a report.
type StatusReading struct {
	BatteryVoltage *float64 `json:"batteryVoltage,omitempty"`
	SignalStrength *int     `json:"signalStrength,omitempty"`
}

// DataStatus classifies a stored record's quality.
//
// Every record that passes validation is stored as DataNormal; the
// other values are reserved for quality reclassification by downstream
// analysis without deleting history rows.
type DataStatus int

// Record quality classifications.
const (
	// DataNormal is a record accepted by range validation.
	DataNormal DataStatus = iota

	// DataAnomalous is a record flagged as suspect after acceptance.
	DataAnomalous

	// DataInvalid is a record retroactively marked unusable.
	DataInvalid
)

// String returns the human-readable classification name.
func (d DataStatus) String() string {
	switch d {
	case DataNormal:
		return "normal"
	case DataAnomalous:
		return "anomalous"
	case DataInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Record is a validated, normalised telemetry report ready for
// persistence. The nested report sections are flattened; pointer fields
// remain nil where the device did not report a value.
type Record struct {
	// ID is the history row ID, set after Append.
	ID int64 `json:"id,omitempty"`

	// DeviceID is the reporting device's external identifier.
	DeviceID string `json:"device_id"`

	// ReportedAt is the device-reported timestamp.
	ReportedAt time.Time `json:"reported_at"`

	// ReceivedAt is when the server accepted the report.
	ReceivedAt time.Time `json:"received_at"`

	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Altitude   *float64 `json:"altitude,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Direction  *float64 `json:"direction,omitempty"`
	GPSValid   *bool    `json:"gps_valid,omitempty"`
	Satellites *int     `json:"satellites,omitempty"`

	RPM             *float64 `json:"rpm,omitempty"`
	FuelLevel       *float64 `json:"fuel_level,omitempty"`
	FuelConsumption *float64 `json:"fuel_consumption,omitempty"`
	EngineTemp      *float64 `json:"engine_temp,omitempty"`
	Mileage         *float64 `json:"mileage,omitempty"`

	BatteryVoltage *float64 `json:"battery_voltage,omitempty"`
	SignalStrength *int     `json:"signal_strength,omitempty"`

	// DataStatus is the record's quality classification; DataNormal for
	// anything freshly accepted.
	DataStatus DataStatus `json:"data_status"`

	// RawPayload preserves the original JSON for audit (secret redacted
	// upstream by the decoder). Not returned in API responses.
	RawPayload string `json:"-"`
}

// Alarm is an alarm report raised by a device.
type Alarm struct {
	ID         int64     `json:"id,omitempty"`
	DeviceID   string    `json:"device_id"`
	AlarmType  string    `json:"alarm_type"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message,omitempty"`
	Payload    string    `json:"-"`
	ReportedAt time.Time `json:"reported_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// DeepCopy returns a full copy of the record.
// Used by the cache to prevent external mutation of cached entries.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}

	out := *r

	out.Latitude = copyFloat(r.Latitude)
	out.Longitude = copyFloat(r.Longitude)
	out.Altitude = copyFloat(r.Altitude)
	out.Speed = copyFloat(r.Speed)
	out.Direction = copyFloat(r.Direction)
	out.GPSValid = copyBool(r.GPSValid)
	out.Satellites = copyInt(r.Satellites)
	out.RPM = copyFloat(r.RPM)
	out.FuelLevel = copyFloat(r.FuelLevel)
	out.FuelConsumption = copyFloat(r.FuelConsumption)
	out.EngineTemp = copyFloat(r.EngineTemp)
	out.Mileage = copyFloat(r.Mileage)
	out.BatteryVoltage = copyFloat(r.BatteryVoltage)
	out.SignalStrength = copyInt(r.SignalStrength)

	return &out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
