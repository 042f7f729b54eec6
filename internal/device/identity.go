package device

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Device ID format constants.
const (
	// deviceIDPrefix prefixes every generated device ID.
	deviceIDPrefix = "DEV"

	// deviceIDTimeLayout is the timestamp portion of a device ID.
	deviceIDTimeLayout = "20060102150405"

	// deviceIDRandomLen is the number of random characters appended.
	deviceIDRandomLen = 6

	// deviceIDAlphabet is the character set for the random suffix.
	deviceIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateDeviceID creates a new unique device identifier.
//
// Format: DEV + yyyyMMddHHmmss + 6 random characters from [A-Z0-9].
// Example: DEV20260301120000K4T9QX
//
// The timestamp prefix keeps IDs roughly sortable by registration time;
// the random suffix guards against collisions within the same second.
func GenerateDeviceID() string {
	var b strings.Builder
	b.WriteString(deviceIDPrefix)
	b.WriteString(time.Now().UTC().Format(deviceIDTimeLayout))

	buf := make([]byte, deviceIDRandomLen)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf) //nolint:errcheck
	for _, c := range buf {
		b.WriteByte(deviceIDAlphabet[int(c)%len(deviceIDAlphabet)])
	}

	return b.String()
}

// GenerateSecret creates a new device credential.
//
// The secret is a UUID with hyphens stripped (32 hex characters),
// issued once at registration and presented by the device in
// authenticated telemetry payloads.
func GenerateSecret() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
