package device

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// Authenticate verifies a device's credentials for telemetry ingestion.
//
// Checks run in a fixed order and the first failure wins:
//  1. The device ID must be registered (ErrUnknownDevice)
//  2. The device must not be retired (ErrDeviceRetired)
//  3. The presented secret must match (ErrSecretMismatch)
//
// Retirement is checked before the secret so a decommissioned device is
// reported as retired no matter what credential it presents.
//
// Secret comparison is constant-time. The lookup goes through the cache,
// so authentication adds no database round-trip on the ingest hot path.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: The claimed device identifier from the topic
//   - secret: The credential presented in the payload
//
// Returns:
//   - *Identity: The authenticated device on success
//   - error: One of the sentinel errors above, or a repository error
func (r *Registry) Authenticate(ctx context.Context, deviceID, secret string) (*Identity, error) {
	identity, err := r.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		return nil, err
	}

	if identity.Status.Retired() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrDeviceRetired, deviceID, identity.Status)
	}

	if subtle.ConstantTimeCompare([]byte(identity.Secret), []byte(secret)) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrSecretMismatch, deviceID)
	}

	return identity, nil
}
