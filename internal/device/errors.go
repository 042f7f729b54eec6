package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnknownDevice) {
//	    // handle unregistered device
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrUnknownDevice is returned by Authenticate when the device ID is not registered.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrSecretMismatch is returned by Authenticate when the presented secret is wrong.
	ErrSecretMismatch = errors.New("device: secret mismatch")

	// ErrDeviceRetired is returned by Authenticate when the device is disabled or scrapped.
	ErrDeviceRetired = errors.New("device: retired")
)
