package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/draycott-io/fleet-core/internal/device"
	"github.com/draycott-io/fleet-core/internal/infrastructure/mqtt"
	"github.com/draycott-io/fleet-core/internal/telemetry"
)

// defaultHistoryLimit bounds history queries without an explicit limit.
const defaultHistoryLimit = 100

// maxHistoryLimit caps the number of rows a single query may return.
const maxHistoryLimit = 1000

// handleListDevices returns all registered devices.
// An optional ?online=true|false query filters by presence.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var (
		devices []device.Identity
		err     error
	)

	switch r.URL.Query().Get("online") {
	case "":
		devices, err = s.registry.ListDevices(r.Context())
	case "true":
		devices, err = s.registry.ListByOnlineStatus(r.Context(), device.Online)
	case "false":
		devices, err = s.registry.ListByOnlineStatus(r.Context(), device.Offline)
	default:
		writeBadRequest(w, "online must be true or false")
		return
	}
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device's identity and presence.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	identity, err := s.registry.GetDevice(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("fetching device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to fetch device")
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

// handleGetLatest returns the most recent telemetry snapshot for a device.
func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	record, err := s.telemetry.Latest(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoData) {
			writeNotFound(w, "no telemetry for device")
			return
		}
		s.logger.Error("fetching latest telemetry", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to fetch telemetry")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handleGetHistory returns recent telemetry records, newest first.
// The ?limit= query bounds the row count (default 100, max 1000).
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	limit, ok := parseLimit(w, r, defaultHistoryLimit)
	if !ok {
		return
	}

	records, err := s.telemetry.History(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("fetching history", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to fetch history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"records":   records,
		"count":     len(records),
	})
}

// handleGetAlarms returns recent alarms for a device, newest first.
func (s *Server) handleGetAlarms(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	limit, ok := parseLimit(w, r, 50)
	if !ok {
		return
	}

	alarms, err := s.telemetry.RecentAlarms(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("fetching alarms", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to fetch alarms")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"alarms":    alarms,
		"count":     len(alarms),
	})
}

// handleGetPresence returns recent presence transitions, newest first.
func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	limit, ok := parseLimit(w, r, 50)
	if !ok {
		return
	}

	log, err := s.registry.PresenceLog(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("fetching presence log", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to fetch presence log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"events":    log,
		"count":     len(log),
	})
}

// handleSendCommand publishes a downlink command to a device.
//
// The request body is forwarded verbatim as the command payload on
// command/{deviceId}/{commandType}. An empty body publishes an empty
// JSON object so devices always receive valid JSON.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	if s.mqtt == nil {
		writeUnavailable(w, "command publishing is not configured")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	commandType := chi.URLParam(r, "commandType")

	known, err := s.registry.DeviceExists(r.Context(), deviceID)
	if err != nil {
		s.logger.Error("checking device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to check device")
		return
	}
	if !known {
		writeNotFound(w, "device not found")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	topic := mqtt.Topics{}.DeviceCommand(deviceID, commandType)
	if err := s.mqtt.Publish(topic, payload, 1, false); err != nil {
		s.logger.Error("publishing command",
			"device_id", deviceID,
			"command", commandType,
			"error", err,
		)
		writeUnavailable(w, "failed to publish command")
		return
	}

	s.logger.Info("command published",
		"device_id", deviceID,
		"command", commandType,
		"operator", r.Context().Value(ctxKeyOperator),
	)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": deviceID,
		"command":   commandType,
		"topic":     topic,
	})
}

// parseLimit reads the ?limit= query, writing a 400 on invalid input.
// The boolean result reports whether the caller should continue.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeBadRequest(w, "limit must be a positive integer")
		return 0, false
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, true
}
