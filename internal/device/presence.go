package device

import (
	"context"
	"time"
)

// SetOnline transitions a device to the Online state.
//
// The device row and the presence log are updated in one transaction,
// then the cache entry is replaced. Repeated online transitions are
// recorded as-is; the broker may redeliver status messages and the log
// is meant to reflect what was observed.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: The device's external identifier
//   - ip: Source address reported by the device (may be empty)
//
// Returns:
//   - error: ErrDeviceNotFound if the device is not registered
func (r *Registry) SetOnline(ctx context.Context, deviceID, ip string) error {
	now := time.Now().UTC()
	if err := r.repo.UpdateOnline(ctx, deviceID, ip, now); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[deviceID]; ok {
		updated := cached.DeepCopy()
		updated.OnlineStatus = Online
		updated.LastOnlineAt = &now
		updated.LastIP = ip
		r.cache[deviceID] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Info("device online", "device_id", deviceID, "ip", ip)
	return nil
}

// SetOffline transitions a device to the Offline state.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: The device's external identifier
//
// Returns:
//   - error: ErrDeviceNotFound if the device is not registered
func (r *Registry) SetOffline(ctx context.Context, deviceID string) error {
	now := time.Now().UTC()
	if err := r.repo.UpdateOffline(ctx, deviceID, now); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[deviceID]; ok {
		updated := cached.DeepCopy()
		updated.OnlineStatus = Offline
		updated.LastOfflineAt = &now
		r.cache[deviceID] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Info("device offline", "device_id", deviceID)
	return nil
}

// Heartbeat refreshes a device's liveness timestamp.
//
// Unlike SetOnline this does not write a presence log entry; heartbeats
// arrive continuously and would flood the log.
func (r *Registry) Heartbeat(ctx context.Context, deviceID string) error {
	now := time.Now().UTC()
	if err := r.repo.TouchHeartbeat(ctx, deviceID, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[deviceID]; ok {
		updated := cached.DeepCopy()
		updated.LastOnlineAt = &now
		r.cache[deviceID] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device heartbeat", "device_id", deviceID)
	return nil
}

// PresenceLog returns the most recent presence transitions for a device,
// newest first.
func (r *Registry) PresenceLog(ctx context.Context, deviceID string, limit int) ([]OnlineLogEntry, error) {
	return r.repo.OnlineLog(ctx, deviceID, limit)
}
