package ingest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/draycott-io/fleet-core/internal/device"
	"github.com/draycott-io/fleet-core/internal/telemetry"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeRepository is an in-memory device.Repository for handler tests.
type fakeRepository struct {
	mu         sync.Mutex
	devices    map[string]*device.Identity
	log        []device.OnlineLogEntry
	heartbeats int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{devices: make(map[string]*device.Identity)}
}

func (r *fakeRepository) GetByDeviceID(_ context.Context, deviceID string) (*device.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.devices[deviceID]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return identity.DeepCopy(), nil
}

func (r *fakeRepository) List(context.Context) ([]device.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]device.Identity, 0, len(r.devices))
	for _, identity := range r.devices {
		out = append(out, *identity.DeepCopy())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DeviceID < out[b].DeviceID })
	return out, nil
}

func (r *fakeRepository) ListByOnlineStatus(_ context.Context, status device.OnlineStatus) ([]device.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []device.Identity
	for _, identity := range r.devices {
		if identity.OnlineStatus == status {
			out = append(out, *identity.DeepCopy())
		}
	}
	return out, nil
}

func (r *fakeRepository) Create(_ context.Context, identity *device.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[identity.DeviceID]; ok {
		return device.ErrDeviceExists
	}
	r.devices[identity.DeviceID] = identity.DeepCopy()
	return nil
}

func (r *fakeRepository) UpdateOnline(_ context.Context, deviceID, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.devices[deviceID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	identity.OnlineStatus = device.Online
	identity.LastOnlineAt = &at
	identity.LastIP = ip
	r.log = append(r.log, device.OnlineLogEntry{DeviceID: deviceID, Event: "online", IP: ip, OccurredAt: at})
	return nil
}

func (r *fakeRepository) UpdateOffline(_ context.Context, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.devices[deviceID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	identity.OnlineStatus = device.Offline
	identity.LastOfflineAt = &at
	r.log = append(r.log, device.OnlineLogEntry{DeviceID: deviceID, Event: "offline", OccurredAt: at})
	return nil
}

func (r *fakeRepository) TouchHeartbeat(_ context.Context, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.devices[deviceID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	identity.LastOnlineAt = &at
	r.heartbeats++
	return nil
}

func (r *fakeRepository) OnlineLog(_ context.Context, deviceID string, limit int) ([]device.OnlineLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []device.OnlineLogEntry
	for n := len(r.log) - 1; n >= 0; n-- {
		if r.log[n].DeviceID == deviceID {
			out = append(out, r.log[n])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepository) Exists(_ context.Context, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[deviceID]
	return ok, nil
}

// fakeHistoryStore records appends in memory.
type fakeHistoryStore struct {
	mu      sync.Mutex
	records []*telemetry.Record
}

func (s *fakeHistoryStore) Append(_ context.Context, record *telemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = int64(len(s.records) + 1)
	s.records = append(s.records, record)
	return nil
}

func (s *fakeHistoryStore) Latest(context.Context, string) (*telemetry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil, telemetry.ErrNoData
	}
	return s.records[len(s.records)-1], nil
}

func (s *fakeHistoryStore) History(context.Context, string, int) ([]telemetry.Record, error) {
	return nil, nil
}

func (s *fakeHistoryStore) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeHistoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeSnapshotStore records upserts in memory.
type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]*telemetry.Record
}

func (s *fakeSnapshotStore) Upsert(_ context.Context, record *telemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshots == nil {
		s.snapshots = make(map[string]*telemetry.Record)
	}
	s.snapshots[record.DeviceID] = record
	return nil
}

func (s *fakeSnapshotStore) Get(_ context.Context, deviceID string) (*telemetry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.snapshots[deviceID]
	if !ok {
		return nil, telemetry.ErrNoData
	}
	return record, nil
}

// fakeAlarmStore records appends in memory.
type fakeAlarmStore struct {
	mu     sync.Mutex
	alarms []*telemetry.Alarm
}

func (s *fakeAlarmStore) Append(_ context.Context, alarm *telemetry.Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alarm.ID = int64(len(s.alarms) + 1)
	s.alarms = append(s.alarms, alarm)
	return nil
}

func (s *fakeAlarmStore) Recent(context.Context, string, int) ([]telemetry.Alarm, error) {
	return nil, nil
}

func (s *fakeAlarmStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

// fakePresence records presence mirror events.
type fakePresence struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePresence) WritePresenceEvent(deviceID, event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, deviceID+":"+event)
}

// handlerFixture wires real registry and telemetry service onto fakes.
type handlerFixture struct {
	handlers *Handlers
	repo     *fakeRepository
	registry *device.Registry
	history  *fakeHistoryStore
	snapshot *fakeSnapshotStore
	alarms   *fakeAlarmStore
	presence *fakePresence
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	fx := &handlerFixture{
		repo:     newFakeRepository(),
		history:  &fakeHistoryStore{},
		snapshot: &fakeSnapshotStore{},
		alarms:   &fakeAlarmStore{},
		presence: &fakePresence{},
	}

	fx.registry = device.NewRegistry(fx.repo)

	cache := telemetry.NewCache(time.Hour)
	t.Cleanup(cache.Close)

	svc := telemetry.NewService(fx.history, fx.snapshot, fx.alarms, cache)

	fx.handlers = NewHandlers(fx.registry, svc)
	fx.handlers.SetPresenceRecorder(fx.presence)
	return fx
}

// seedDevice registers an active device with the shared test secret.
func (fx *handlerFixture) seedDevice(t *testing.T, deviceID string) {
	t.Helper()

	err := fx.repo.Create(context.Background(), &device.Identity{
		DeviceID: deviceID,
		Name:     "test vehicle",
		Secret:   testSecret,
		Status:   device.StatusNormal,
	})
	if err != nil {
		t.Fatalf("seeding device: %v", err)
	}
}

func deviceMessage(deviceID, category string, payload string) Message {
	return Message{
		Topic:      "device/" + deviceID + "/" + category,
		DeviceID:   deviceID,
		Category:   category,
		Payload:    []byte(payload),
		EnqueuedAt: time.Now(),
	}
}
