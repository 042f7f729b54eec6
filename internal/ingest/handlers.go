package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/draycott-io/fleet-core/internal/device"
	"github.com/draycott-io/fleet-core/internal/infrastructure/mqtt"
	"github.com/draycott-io/fleet-core/internal/telemetry"
)

// Logger defines the logging interface used by the pipeline.
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

// PresenceRecorder mirrors presence transitions to a time-series store.
// Implemented by the influxdb client; nil disables mirroring.
type PresenceRecorder interface {
	WritePresenceEvent(deviceID string, event string)
}

// StatusMessage is the payload published on the status topic when a
// device announces a presence transition.
type StatusMessage struct {
	Secret string `json:"secret,omitempty"`
	Status string `json:"status"`
	IP     string `json:"ip,omitempty"`
}

// Status message values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Handlers dispatches parsed device messages to the domain services.
//
// Telemetry-bearing categories (data, location, alarm) pass through the
// authentication gate before any processing: the payload's secret is
// checked against the registry and unknown, mismatched, or retired
// devices are rejected. Status and heartbeat messages carry no
// measurements and only require the device to exist.
type Handlers struct {
	registry  *device.Registry
	telemetry *telemetry.Service
	presence  PresenceRecorder
	logger    Logger
}

// NewHandlers creates the message dispatch handlers.
// presence may be nil to disable time-series mirroring.
func NewHandlers(registry *device.Registry, svc *telemetry.Service) *Handlers {
	return &Handlers{
		registry:  registry,
		telemetry: svc,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the handlers.
func (h *Handlers) SetLogger(logger Logger) {
	h.logger = logger
}

// SetPresenceRecorder sets the presence mirror sink.
func (h *Handlers) SetPresenceRecorder(presence PresenceRecorder) {
	h.presence = presence
}

// Handle processes one parsed device message.
func (h *Handlers) Handle(ctx context.Context, msg Message) error {
	switch msg.Category {
	case mqtt.CategoryData, mqtt.CategoryLocation:
		return h.handleTelemetry(ctx, msg)
	case mqtt.CategoryAlarm:
		return h.handleAlarm(ctx, msg)
	case mqtt.CategoryStatus:
		return h.handleStatus(ctx, msg)
	case mqtt.CategoryHeartbeat:
		return h.handleHeartbeat(ctx, msg)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCategory, msg.Category)
	}
}

// handleTelemetry authenticates and ingests a data or location report.
func (h *Handlers) handleTelemetry(ctx context.Context, msg Message) error {
	report, err := telemetry.Decode(msg.Payload)
	if err != nil {
		h.logger.Warn("malformed telemetry payload",
			"device_id", msg.DeviceID,
			"topic", msg.Topic,
			"error", err,
		)
		return err
	}

	if _, err := h.registry.Authenticate(ctx, msg.DeviceID, report.Secret); err != nil {
		h.logAuthFailure(msg, err)
		return err
	}

	if _, err := h.telemetry.Ingest(ctx, msg.DeviceID, report); err != nil {
		if errors.Is(err, telemetry.ErrInvalidReport) {
			h.logger.Warn("telemetry rejected",
				"device_id", msg.DeviceID,
				"error", err,
			)
		} else {
			h.logger.Error("telemetry persistence failed",
				"device_id", msg.DeviceID,
				"error", err,
			)
		}
		return err
	}

	return nil
}

// handleAlarm authenticates and records an alarm report.
func (h *Handlers) handleAlarm(ctx context.Context, msg Message) error {
	report, err := telemetry.DecodeAlarm(msg.Payload)
	if err != nil {
		h.logger.Warn("malformed alarm payload",
			"device_id", msg.DeviceID,
			"error", err,
		)
		return err
	}

	if _, err := h.registry.Authenticate(ctx, msg.DeviceID, report.Secret); err != nil {
		h.logAuthFailure(msg, err)
		return err
	}

	if _, err := h.telemetry.RecordAlarm(ctx, msg.DeviceID, report); err != nil {
		h.logger.Error("alarm persistence failed",
			"device_id", msg.DeviceID,
			"alarm_type", report.AlarmType,
			"error", err,
		)
		return err
	}

	return nil
}

// handleStatus applies a presence transition.
//
// Status messages carry no measurements, so the gate is existence
// rather than full credential verification. Graceful disconnects and
// the broker's last-will both arrive here.
func (h *Handlers) handleStatus(ctx context.Context, msg Message) error {
	var status StatusMessage
	if err := json.Unmarshal(msg.Payload, &status); err != nil {
		h.logger.Warn("malformed status payload",
			"device_id", msg.DeviceID,
			"error", err,
		)
		return fmt.Errorf("%w: %w", telemetry.ErrMalformedPayload, err)
	}

	known, err := h.registry.DeviceExists(ctx, msg.DeviceID)
	if err != nil {
		return fmt.Errorf("checking device: %w", err)
	}
	if !known {
		h.logger.Warn("status from unknown device", "device_id", msg.DeviceID)
		return device.ErrUnknownDevice
	}

	switch status.Status {
	case StatusOnline:
		if err := h.registry.SetOnline(ctx, msg.DeviceID, status.IP); err != nil {
			return err
		}
	case StatusOffline:
		if err := h.registry.SetOffline(ctx, msg.DeviceID); err != nil {
			return err
		}
	default:
		h.logger.Warn("unrecognised status value",
			"device_id", msg.DeviceID,
			"status", status.Status,
		)
		return fmt.Errorf("%w: status %q", telemetry.ErrInvalidReport, status.Status)
	}

	if h.presence != nil {
		h.presence.WritePresenceEvent(msg.DeviceID, status.Status)
	}

	h.logger.Info("presence transition",
		"device_id", msg.DeviceID,
		"status", status.Status,
	)
	return nil
}

// handleHeartbeat refreshes liveness without touching the presence log.
func (h *Handlers) handleHeartbeat(ctx context.Context, msg Message) error {
	if err := h.registry.Heartbeat(ctx, msg.DeviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			h.logger.Warn("heartbeat from unknown device", "device_id", msg.DeviceID)
		}
		return err
	}
	return nil
}

// logAuthFailure logs a rejected message at a level matching its cause.
func (h *Handlers) logAuthFailure(msg Message, err error) {
	switch {
	case errors.Is(err, device.ErrUnknownDevice):
		h.logger.Warn("message from unknown device",
			"device_id", msg.DeviceID,
			"topic", msg.Topic,
		)
	case errors.Is(err, device.ErrSecretMismatch):
		h.logger.Warn("device secret mismatch",
			"device_id", msg.DeviceID,
			"topic", msg.Topic,
		)
	case errors.Is(err, device.ErrDeviceRetired):
		h.logger.Info("message from retired device",
			"device_id", msg.DeviceID,
			"topic", msg.Topic,
		)
	default:
		h.logger.Error("authentication check failed",
			"device_id", msg.DeviceID,
			"error", err,
		)
	}
}
