package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache keyed by device ID
// for fast lookups on the ingest hot path: every telemetry report needs
// the device's secret and status, and hitting SQLite per message would
// serialise the worker pool on the single write connection.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the mutating operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Identity // Cached identities by DeviceID
	cacheMu sync.RWMutex         // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Identity),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	identities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Identity, len(identities))
	for i := range identities {
		d := identities[i]
		r.cache[d.DeviceID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(identities))
	return nil
}

// GetDevice retrieves a device by its external identifier.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned identity is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, deviceID string) (*Identity, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[deviceID]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	identity, err := r.repo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[deviceID] = identity.DeepCopy()
	r.cacheMu.Unlock()

	return identity, nil
}

// ListDevices retrieves all registered devices.
// The returned identities are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Identity, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		identities := make([]Identity, 0, len(r.cache))
		for _, d := range r.cache {
			// Deep copy to prevent external mutation of cache
			identities = append(identities, *d.DeepCopy())
		}
		return identities, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// ListByOnlineStatus retrieves all devices in the given presence state.
// The returned identities are deep copies; callers can safely modify them.
func (r *Registry) ListByOnlineStatus(ctx context.Context, status OnlineStatus) ([]Identity, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Filter from cache if populated
	if len(r.cache) > 0 {
		var identities []Identity
		for _, d := range r.cache {
			if d.OnlineStatus == status {
				identities = append(identities, *d.DeepCopy())
			}
		}
		return identities, nil
	}

	return r.repo.ListByOnlineStatus(ctx, status)
}

// RegisterDevice registers a new device in the fleet.
// It generates the device ID and secret if not provided and persists
// the identity. The generated credentials are returned on the identity.
func (r *Registry) RegisterDevice(ctx context.Context, identity *Identity) error {
	// Generate credentials if not provided
	if identity.DeviceID == "" {
		identity.DeviceID = GenerateDeviceID()
	}
	if identity.Secret == "" {
		identity.Secret = GenerateSecret()
	}

	if identity.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}

	// Persist
	if err := r.repo.Create(ctx, identity); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[identity.DeviceID] = identity.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device registered", "device_id", identity.DeviceID, "name", identity.Name)
	return nil
}

// DeviceExists reports whether a device ID is registered.
// Checks the cache first, then the repository.
func (r *Registry) DeviceExists(ctx context.Context, deviceID string) (bool, error) {
	r.cacheMu.RLock()
	_, ok := r.cache[deviceID]
	r.cacheMu.RUnlock()

	if ok {
		return true, nil
	}

	return r.repo.Exists(ctx, deviceID)
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats holds registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	Online       int
	Offline      int
	ByStatus     map[Status]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByStatus:     make(map[Status]int),
	}

	for _, d := range r.cache {
		if d.OnlineStatus == Online {
			stats.Online++
		} else {
			stats.Offline++
		}
		stats.ByStatus[d.Status]++
	}

	return stats
}
