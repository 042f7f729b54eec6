package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Validation bounds for reported measurements.
//
// Reports carrying a present-but-out-of-range value are rejected whole;
// partial acceptance would leave history rows that disagree with what
// the device sent.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	MinSpeed = 0.0
	MaxSpeed = 300.0 // km/h

	MinRPM = 0.0
	MaxRPM = 10000.0

	MinFuelLevel = 0.0
	MaxFuelLevel = 100.0 // percent
)

// Decode parses a raw payload into a Report.
//
// Returns ErrMalformedPayload if the payload is not valid JSON.
func Decode(payload []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return &report, nil
}

// AlarmReport is an alarm payload as published on the alarm topic.
type AlarmReport struct {
	Secret    string `json:"secret,omitempty"`
	AlarmType string `json:"alarm_type"`
	Severity  string `json:"severity,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// DecodeAlarm parses a raw payload into an AlarmReport.
//
// Returns ErrMalformedPayload for invalid JSON and ErrInvalidReport
// when the alarm type is missing or the timestamp is not positive.
func DecodeAlarm(payload []byte) (*AlarmReport, error) {
	var report AlarmReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if report.AlarmType == "" {
		return nil, fmt.Errorf("%w: alarm_type is required", ErrInvalidReport)
	}
	if report.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: timestamp must be positive, got %d", ErrInvalidReport, report.Timestamp)
	}
	return &report, nil
}

// Validate checks a report's measurements against the accepted ranges.
//
// Only present values are checked; a report with no GPS section is
// valid. The timestamp is mandatory and must be positive.
//
// Returns ErrInvalidReport (wrapped with field detail) on the first
// violation found.
func Validate(report *Report) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", ErrInvalidReport)
	}

	if report.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive, got %d", ErrInvalidReport, report.Timestamp)
	}

	if gps := report.GPS; gps != nil {
		if gps.Latitude != nil && (*gps.Latitude < MinLatitude || *gps.Latitude > MaxLatitude) {
			return fmt.Errorf("%w: latitude %v out of range [%v, %v]",
				ErrInvalidReport, *gps.Latitude, MinLatitude, MaxLatitude)
		}
		if gps.Longitude != nil && (*gps.Longitude < MinLongitude || *gps.Longitude > MaxLongitude) {
			return fmt.Errorf("%w: longitude %v out of range [%v, %v]",
				ErrInvalidReport, *gps.Longitude, MinLongitude, MaxLongitude)
		}
		if gps.Speed != nil && (*gps.Speed < MinSpeed || *gps.Speed > MaxSpeed) {
			return fmt.Errorf("%w: speed %v out of range [%v, %v]",
				ErrInvalidReport, *gps.Speed, MinSpeed, MaxSpeed)
		}
	}

	if obd := report.OBD; obd != nil {
		if obd.RPM != nil && (*obd.RPM < MinRPM || *obd.RPM > MaxRPM) {
			return fmt.Errorf("%w: rpm %v out of range [%v, %v]",
				ErrInvalidReport, *obd.RPM, MinRPM, MaxRPM)
		}
		if obd.FuelLevel != nil && (*obd.FuelLevel < MinFuelLevel || *obd.FuelLevel > MaxFuelLevel) {
			return fmt.Errorf("%w: fuel_level %v out of range [%v, %v]",
				ErrInvalidReport, *obd.FuelLevel, MinFuelLevel, MaxFuelLevel)
		}
	}

	return nil
}

// Normalize flattens a validated report into a Record.
//
// The device-reported millisecond timestamp becomes ReportedAt;
// receivedAt is stamped by the caller at ingest time. The secret is not
// carried over.
func Normalize(deviceID string, report *Report, receivedAt time.Time, rawPayload []byte) *Record {
	record := &Record{
		DeviceID:   deviceID,
		ReportedAt: time.UnixMilli(report.Timestamp).UTC(),
		ReceivedAt: receivedAt.UTC(),
		DataStatus: DataNormal,
		RawPayload: string(rawPayload),
	}

	if gps := report.GPS; gps != nil {
		record.Latitude = gps.Latitude
		record.Longitude = gps.Longitude
		record.Altitude = gps.Altitude
		record.Speed = gps.Speed
		record.Direction = gps.Direction
		record.Satellites = gps.Satellites

		// A GPS fix with no validity flag is treated as unconfirmed, not
		// unknown: the flag defaults to false rather than staying unset.
		if gps.Valid != nil {
			record.GPSValid = gps.Valid
		} else {
			invalid := false
			record.GPSValid = &invalid
		}
	}

	if obd := report.OBD; obd != nil {
		record.RPM = obd.RPM
		record.FuelLevel = obd.FuelLevel
		record.FuelConsumption = obd.FuelConsumption
		record.EngineTemp = obd.EngineTemp
		record.Mileage = obd.Mileage
	}

	if status := report.Status; status != nil {
		record.BatteryVoltage = status.BatteryVoltage
		record.SignalStrength = status.SignalStrength
	}

	return record
}
