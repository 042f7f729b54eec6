package device

import "time"

// Status represents a device's lifecycle state.
//
// Values are stored as integers in the registry so they can be compared
// and indexed cheaply. A device only participates in telemetry ingestion
// while in an active status; Disabled and Scrapped devices are retired
// and their reports are rejected at the authentication gate.
type Status int

// Device lifecycle statuses.
const (
	// StatusNotActivated is a registered device that has never connected.
	StatusNotActivated Status = iota

	// StatusNormal is a device in regular operation.
	StatusNormal

	// StatusMaintenance is a device temporarily under maintenance.
	// Telemetry is still accepted.
	StatusMaintenance

	// StatusDisabled is a device administratively taken out of service.
	StatusDisabled

	// StatusScrapped is a device permanently decommissioned.
	StatusScrapped
)

// String returns the human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusNotActivated:
		return "not_activated"
	case StatusNormal:
		return "normal"
	case StatusMaintenance:
		return "maintenance"
	case StatusDisabled:
		return "disabled"
	case StatusScrapped:
		return "scrapped"
	default:
		return "unknown"
	}
}

// Retired reports whether the device is out of service.
// Retired devices fail authentication regardless of credentials.
func (s Status) Retired() bool {
	return s == StatusDisabled || s == StatusScrapped
}

// OnlineStatus represents a device's presence state.
type OnlineStatus int

// Presence states.
const (
	// Offline means the device is not currently connected.
	Offline OnlineStatus = iota

	// Online means the device has an active broker session.
	Online
)

// String returns the human-readable presence name.
func (o OnlineStatus) String() string {
	if o == Online {
		return "online"
	}
	return "offline"
}

// Identity is a registered device in the fleet.
//
// DeviceID is the stable external identifier embedded in MQTT topics;
// ID is the internal database key. Secret is the shared credential a
// device presents in authenticated telemetry payloads.
type Identity struct {
	// ID is the internal database row ID.
	ID int64 `json:"id"`

	// DeviceID is the unique external identifier (e.g., "DEV20260301120000ABC123").
	DeviceID string `json:"device_id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Secret is the shared credential for payload authentication.
	// Never exposed in API responses.
	Secret string `json:"-"`

	// Type categorises the device (e.g., "tracker", "obd_dongle").
	Type string `json:"type"`

	// Model is the hardware model designation.
	Model string `json:"model"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// OnlineStatus is the current presence state.
	OnlineStatus OnlineStatus `json:"online_status"`

	// LastOnlineAt is when the device last transitioned to Online.
	LastOnlineAt *time.Time `json:"last_online_at,omitempty"`

	// LastOfflineAt is when the device last transitioned to Offline.
	LastOfflineAt *time.Time `json:"last_offline_at,omitempty"`

	// LastIP is the source address reported at the last online transition.
	LastIP string `json:"last_ip,omitempty"`

	// CreatedAt is when the device was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the registry row was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a full copy of the identity.
// Used by the registry cache to prevent external mutation of cached entries.
func (d *Identity) DeepCopy() *Identity {
	if d == nil {
		return nil
	}

	out := *d

	if d.LastOnlineAt != nil {
		t := *d.LastOnlineAt
		out.LastOnlineAt = &t
	}
	if d.LastOfflineAt != nil {
		t := *d.LastOfflineAt
		out.LastOfflineAt = &t
	}

	return &out
}

// OnlineLogEntry is one row of the presence transition log.
type OnlineLogEntry struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	Event      string    `json:"event"`
	IP         string    `json:"ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
