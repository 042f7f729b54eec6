package mqtt

import "fmt"

// Topic prefixes for the Fleet Core MQTT namespace.
//
// Device-originated traffic uses the scheme: device/{device_id}/{category}
// where category is one of data, status, location, alarm, heartbeat.
// Server-originated traffic uses command/{device_id}/{command_type} for
// unicast and broadcast/{message_type} for fleet-wide messages.
const (
	// TopicPrefixDevice is the base for all device-originated topics.
	TopicPrefixDevice = "device"

	// TopicPrefixCommand is the base for server-to-device commands.
	TopicPrefixCommand = "command"

	// TopicPrefixBroadcast is the base for fleet-wide broadcast messages.
	TopicPrefixBroadcast = "broadcast"

	// TopicPrefixServer is the base for server lifecycle topics.
	TopicPrefixServer = "fleet/server"
)

// Telemetry categories carried on device topics.
const (
	CategoryData      = "data"
	CategoryStatus    = "status"
	CategoryLocation  = "location"
	CategoryAlarm     = "alarm"
	CategoryHeartbeat = "heartbeat"
)

// Topics provides builders for Fleet Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	dataTopic := topics.DeviceData("DEV20260301120000ABC123")
//	// Returns: "device/DEV20260301120000ABC123/data"
type Topics struct{}

// =============================================================================
// Device Topics (device -> server)
// =============================================================================

// DeviceData returns the topic a device publishes full telemetry reports on.
//
// Example: device/DEV20260301120000ABC123/data
func (Topics) DeviceData(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, CategoryData)
}

// DeviceStatus returns the topic for device status messages.
//
// Example: device/DEV20260301120000ABC123/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, CategoryStatus)
}

// DeviceLocation returns the topic for standalone location reports.
//
// Example: device/DEV20260301120000ABC123/location
func (Topics) DeviceLocation(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, CategoryLocation)
}

// DeviceAlarm returns the topic for alarm reports.
//
// Example: device/DEV20260301120000ABC123/alarm
func (Topics) DeviceAlarm(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, CategoryAlarm)
}

// DeviceHeartbeat returns the topic for liveness heartbeats.
//
// Example: device/DEV20260301120000ABC123/heartbeat
func (Topics) DeviceHeartbeat(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, CategoryHeartbeat)
}

// =============================================================================
// Server Topics (server -> devices)
// =============================================================================

// DeviceCommand returns the topic for a unicast command to one device.
//
// Example: command/DEV20260301120000ABC123/reboot
func (Topics) DeviceCommand(deviceID, commandType string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCommand, deviceID, commandType)
}

// Broadcast returns the topic for a fleet-wide broadcast message.
//
// Example: broadcast/firmware_notice
func (Topics) Broadcast(messageType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixBroadcast, messageType)
}

// ServerStatus returns the server lifecycle status topic.
// The LWT and graceful shutdown messages are published here, retained.
//
// Example: fleet/server/status
func (Topics) ServerStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixServer)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceData returns a pattern matching telemetry reports from any device.
//
// Pattern: device/+/data
func (Topics) AllDeviceData() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevice, CategoryData)
}

// AllDeviceStatus returns a pattern matching status messages from any device.
//
// Pattern: device/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevice, CategoryStatus)
}

// AllDeviceLocations returns a pattern matching location reports from any device.
//
// Pattern: device/+/location
func (Topics) AllDeviceLocations() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevice, CategoryLocation)
}

// AllDeviceAlarms returns a pattern matching alarm reports from any device.
//
// Pattern: device/+/alarm
func (Topics) AllDeviceAlarms() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevice, CategoryAlarm)
}

// AllDeviceHeartbeats returns a pattern matching heartbeats from any device.
//
// Pattern: device/+/heartbeat
func (Topics) AllDeviceHeartbeats() string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixDevice, CategoryHeartbeat)
}

// AllDeviceTopics returns a pattern matching every device-originated message.
// Use with caution - this receives ALL device traffic.
//
// Pattern: device/#
func (Topics) AllDeviceTopics() string {
	return TopicPrefixDevice + "/#"
}
