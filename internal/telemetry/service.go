package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Analytics mirrors accepted telemetry to a time-series store.
// Implemented by the influxdb client; nil disables mirroring.
type Analytics interface {
	WriteTelemetry(deviceID string, fields map[string]interface{}, reportedAt time.Time)
	WriteAlarm(deviceID string, alarmType string, severity string)
}

// Broadcaster pushes accepted telemetry to live subscribers.
// Implemented by the websocket hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastTelemetry(record *Record)
	BroadcastAlarm(alarm *Alarm)
}

// Service orchestrates the telemetry write and read paths.
//
// The write path runs decode, validate, normalise, then the dual write:
// the history append is mandatory and rejects the message on failure,
// while the snapshot upsert, cache update, analytics mirror, and live
// broadcast are best-effort and only logged when they fail.
type Service struct {
	history  HistoryStore
	snapshot SnapshotStore
	alarms   AlarmStore
	cache    *Cache

	analytics   Analytics
	broadcaster Broadcaster
	logger      Logger
}

// NewService creates a telemetry service.
// analytics and broadcaster may be nil to disable those sinks.
func NewService(history HistoryStore, snapshot SnapshotStore, alarms AlarmStore, cache *Cache) *Service {
	return &Service{
		history:  history,
		snapshot: snapshot,
		alarms:   alarms,
		cache:    cache,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetAnalytics sets the time-series mirror sink.
func (s *Service) SetAnalytics(analytics Analytics) {
	s.analytics = analytics
}

// SetBroadcaster sets the live broadcast sink.
func (s *Service) SetBroadcaster(broadcaster Broadcaster) {
	s.broadcaster = broadcaster
}

// Ingest processes one authenticated telemetry report.
//
// The caller has already authenticated the device; this method owns
// validation and persistence:
//  1. Validate measurement ranges (reject whole report on violation)
//  2. Normalise into a Record
//  3. Append to history - mandatory, failure rejects the message
//  4. Upsert the snapshot - best-effort
//  5. Refresh the cache - best-effort
//  6. Mirror to analytics and broadcast - best-effort
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: The authenticated device's external identifier
//   - report: The decoded report
//
// Returns:
//   - *Record: The persisted record on success
//   - error: ErrInvalidReport or ErrHistoryWrite
func (s *Service) Ingest(ctx context.Context, deviceID string, report *Report) (*Record, error) {
	if err := Validate(report); err != nil {
		return nil, err
	}

	// Re-marshal for the audit column with the secret stripped.
	report.Secret = ""
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encoding report: %w", ErrInvalidReport, err)
	}

	record := Normalize(deviceID, report, time.Now(), raw)

	if err := s.history.Append(ctx, record); err != nil {
		return nil, err
	}

	// Snapshot upsert is best-effort: history already holds the truth.
	if err := s.snapshot.Upsert(ctx, record); err != nil {
		s.logger.Warn("snapshot upsert failed",
			"device_id", deviceID,
			"error", err,
		)
	}

	s.cache.Put(record)

	if s.analytics != nil {
		s.analytics.WriteTelemetry(deviceID, analyticsFields(record), record.ReportedAt)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTelemetry(record)
	}

	s.logger.Debug("telemetry ingested", "device_id", deviceID, "record_id", record.ID)
	return record, nil
}

// IngestRaw decodes a payload and ingests it.
// Convenience wrapper used by handlers that receive raw bytes.
func (s *Service) IngestRaw(ctx context.Context, deviceID string, payload []byte) (*Record, error) {
	report, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, deviceID, report)
}

// Latest returns the most recent snapshot for a device.
//
// Read path: cache first; on miss, the snapshot store, with the result
// written back to the cache. Returns ErrNoData if the device has never
// reported.
func (s *Service) Latest(ctx context.Context, deviceID string) (*Record, error) {
	if cached := s.cache.Get(deviceID); cached != nil {
		return cached, nil
	}

	record, err := s.snapshot.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	s.cache.Put(record)
	return record, nil
}

// History returns up to limit records for a device, newest first.
func (s *Service) History(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	return s.history.History(ctx, deviceID, limit)
}

// RecordAlarm persists one authenticated alarm report.
//
// Like telemetry, the relational insert is mandatory; analytics and
// broadcast are best-effort.
func (s *Service) RecordAlarm(ctx context.Context, deviceID string, report *AlarmReport) (*Alarm, error) {
	report.Secret = ""
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encoding alarm: %w", ErrInvalidReport, err)
	}

	alarm := &Alarm{
		DeviceID:   deviceID,
		AlarmType:  report.AlarmType,
		Severity:   report.Severity,
		Message:    report.Message,
		Payload:    string(raw),
		ReportedAt: time.UnixMilli(report.Timestamp).UTC(),
		ReceivedAt: time.Now().UTC(),
	}

	if err := s.alarms.Append(ctx, alarm); err != nil {
		return nil, err
	}

	if s.analytics != nil {
		s.analytics.WriteAlarm(deviceID, alarm.AlarmType, alarm.Severity)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAlarm(alarm)
	}

	s.logger.Info("alarm recorded",
		"device_id", deviceID,
		"alarm_type", alarm.AlarmType,
		"severity", alarm.Severity,
	)
	return alarm, nil
}

// RecentAlarms returns up to limit alarms for a device, newest first.
func (s *Service) RecentAlarms(ctx context.Context, deviceID string, limit int) ([]Alarm, error) {
	return s.alarms.Recent(ctx, deviceID, limit)
}

// Prune deletes history received before the cutoff and reports the
// number of rows removed.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	return s.history.Prune(ctx, before)
}

// analyticsFields builds the field map for the time-series mirror,
// including only the values the device actually reported.
func analyticsFields(record *Record) map[string]interface{} {
	fields := make(map[string]interface{})

	put := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}

	put("latitude", record.Latitude)
	put("longitude", record.Longitude)
	put("altitude", record.Altitude)
	put("speed", record.Speed)
	put("direction", record.Direction)
	put("rpm", record.RPM)
	put("fuel_level", record.FuelLevel)
	put("fuel_consumption", record.FuelConsumption)
	put("engine_temp", record.EngineTemp)
	put("mileage", record.Mileage)
	put("battery_voltage", record.BatteryVoltage)

	if record.Satellites != nil {
		fields["satellites"] = int64(*record.Satellites)
	}
	if record.SignalStrength != nil {
		fields["signal_strength"] = int64(*record.SignalStrength)
	}

	return fields
}
