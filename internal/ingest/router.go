package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/draycott-io/fleet-core/internal/infrastructure/mqtt"
)

// deviceTopicParts is the exact part count of a device message topic:
// device/{deviceId}/{category}.
const deviceTopicParts = 3

// Message is one device-originated MQTT message tagged for dispatch.
type Message struct {
	Topic      string
	DeviceID   string
	Category   string
	Payload    []byte
	EnqueuedAt time.Time
}

// ParseTopic splits a device message topic into its device ID and
// category.
//
// The grammar is device/{deviceId}/{category} where category is one of
// data, status, location, alarm, or heartbeat. Anything else is
// rejected: wrong prefix or part count returns ErrInvalidTopic, a
// well-formed topic with an unrecognised category returns
// ErrUnknownCategory.
func ParseTopic(topic string) (deviceID, category string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != deviceTopicParts {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	if parts[0] != mqtt.TopicPrefixDevice {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	deviceID, category = parts[1], parts[2]
	if deviceID == "" {
		return "", "", fmt.Errorf("%w: empty device id in %s", ErrInvalidTopic, topic)
	}

	switch category {
	case mqtt.CategoryData, mqtt.CategoryStatus, mqtt.CategoryLocation,
		mqtt.CategoryAlarm, mqtt.CategoryHeartbeat:
		return deviceID, category, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
}
