package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type mockHistoryStore struct {
	records   []*Record
	appendErr error
}

func (m *mockHistoryStore) Append(_ context.Context, record *Record) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockHistoryStore) Latest(context.Context, string) (*Record, error) {
	if len(m.records) == 0 {
		return nil, ErrNoData
	}
	return m.records[len(m.records)-1], nil
}

func (m *mockHistoryStore) History(_ context.Context, deviceID string, limit int) ([]Record, error) {
	var out []Record
	for n := len(m.records) - 1; n >= 0; n-- {
		if m.records[n].DeviceID == deviceID {
			out = append(out, *m.records[n])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockHistoryStore) Prune(_ context.Context, before time.Time) (int64, error) {
	var kept []*Record
	var removed int64
	for _, record := range m.records {
		if record.ReceivedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	m.records = kept
	return removed, nil
}

type mockSnapshotStore struct {
	snapshots map[string]*Record
	upsertErr error
	getCalls  int
}

func (m *mockSnapshotStore) Upsert(_ context.Context, record *Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.snapshots == nil {
		m.snapshots = make(map[string]*Record)
	}
	m.snapshots[record.DeviceID] = record
	return nil
}

func (m *mockSnapshotStore) Get(_ context.Context, deviceID string) (*Record, error) {
	m.getCalls++
	record, ok := m.snapshots[deviceID]
	if !ok {
		return nil, ErrNoData
	}
	return record, nil
}

type mockAlarmStore struct {
	alarms    []*Alarm
	appendErr error
}

func (m *mockAlarmStore) Append(_ context.Context, alarm *Alarm) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	alarm.ID = int64(len(m.alarms) + 1)
	m.alarms = append(m.alarms, alarm)
	return nil
}

func (m *mockAlarmStore) Recent(_ context.Context, deviceID string, limit int) ([]Alarm, error) {
	var out []Alarm
	for n := len(m.alarms) - 1; n >= 0; n-- {
		if m.alarms[n].DeviceID == deviceID {
			out = append(out, *m.alarms[n])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockAnalytics struct {
	telemetryWrites int
	alarmWrites     int
	lastFields      map[string]interface{}
}

func (m *mockAnalytics) WriteTelemetry(_ string, fields map[string]interface{}, _ time.Time) {
	m.telemetryWrites++
	m.lastFields = fields
}

func (m *mockAnalytics) WriteAlarm(string, string, string) {
	m.alarmWrites++
}

type mockBroadcaster struct {
	telemetry []*Record
	alarms    []*Alarm
}

func (m *mockBroadcaster) BroadcastTelemetry(record *Record) { m.telemetry = append(m.telemetry, record) }
func (m *mockBroadcaster) BroadcastAlarm(alarm *Alarm)       { m.alarms = append(m.alarms, alarm) }

type serviceFixture struct {
	service     *Service
	history     *mockHistoryStore
	snapshot    *mockSnapshotStore
	alarms      *mockAlarmStore
	cache       *Cache
	analytics   *mockAnalytics
	broadcaster *mockBroadcaster
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	fx := &serviceFixture{
		history:     &mockHistoryStore{},
		snapshot:    &mockSnapshotStore{},
		alarms:      &mockAlarmStore{},
		cache:       NewCache(time.Hour),
		analytics:   &mockAnalytics{},
		broadcaster: &mockBroadcaster{},
	}
	t.Cleanup(fx.cache.Close)

	fx.service = NewService(fx.history, fx.snapshot, fx.alarms, fx.cache)
	fx.service.SetAnalytics(fx.analytics)
	fx.service.SetBroadcaster(fx.broadcaster)
	return fx
}

func TestService_Ingest(t *testing.T) {
	fx := newServiceFixture(t)

	record, err := fx.service.Ingest(context.Background(), "DEV001", validReport())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(fx.history.records) != 1 {
		t.Fatalf("history has %d records, want 1", len(fx.history.records))
	}
	if fx.snapshot.snapshots["DEV001"] == nil {
		t.Error("snapshot was not upserted")
	}
	if cached := fx.cache.Get("DEV001"); cached == nil {
		t.Error("cache was not populated")
	}
	if fx.analytics.telemetryWrites != 1 {
		t.Errorf("analytics writes = %d, want 1", fx.analytics.telemetryWrites)
	}
	if len(fx.broadcaster.telemetry) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(fx.broadcaster.telemetry))
	}
	if record.Latitude == nil || *record.Latitude != 51.5072 {
		t.Errorf("record latitude = %v, want 51.5072", record.Latitude)
	}
}

func TestService_Ingest_StripsSecret(t *testing.T) {
	fx := newServiceFixture(t)

	report := validReport()
	if report.Secret == "" {
		t.Fatal("fixture report must carry a secret")
	}

	record, err := fx.service.Ingest(context.Background(), "DEV001", report)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if strings.Contains(record.RawPayload, "secret") {
		t.Errorf("raw payload still carries the secret: %s", record.RawPayload)
	}
}

func TestService_Ingest_InvalidReport(t *testing.T) {
	fx := newServiceFixture(t)

	report := validReport()
	report.GPS.Latitude = f(91)

	_, err := fx.service.Ingest(context.Background(), "DEV001", report)
	if !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("Ingest() error = %v, want ErrInvalidReport", err)
	}
	if len(fx.history.records) != 0 {
		t.Error("invalid report must not reach history")
	}
	if fx.analytics.telemetryWrites != 0 {
		t.Error("invalid report must not reach analytics")
	}
}

func TestService_Ingest_HistoryFailureRejects(t *testing.T) {
	fx := newServiceFixture(t)
	fx.history.appendErr = ErrHistoryWrite

	_, err := fx.service.Ingest(context.Background(), "DEV001", validReport())
	if !errors.Is(err, ErrHistoryWrite) {
		t.Fatalf("Ingest() error = %v, want ErrHistoryWrite", err)
	}
	if fx.snapshot.snapshots["DEV001"] != nil {
		t.Error("snapshot must not be written when history fails")
	}
	if fx.cache.Get("DEV001") != nil {
		t.Error("cache must not be written when history fails")
	}
	if len(fx.broadcaster.telemetry) != 0 {
		t.Error("nothing should broadcast when history fails")
	}
}

func TestService_Ingest_SnapshotFailureTolerated(t *testing.T) {
	fx := newServiceFixture(t)
	fx.snapshot.upsertErr = errors.New("disk full")

	_, err := fx.service.Ingest(context.Background(), "DEV001", validReport())
	if err != nil {
		t.Fatalf("Ingest() error = %v, want nil (snapshot is best-effort)", err)
	}
	if len(fx.history.records) != 1 {
		t.Error("history append should have succeeded")
	}
	if fx.cache.Get("DEV001") == nil {
		t.Error("cache should still be populated")
	}
}

func TestService_IngestRaw(t *testing.T) {
	fx := newServiceFixture(t)

	payload := []byte(`{"secret":"s","timestamp":1740800000000,"gps":{"lat":10,"lng":20}}`)
	record, err := fx.service.IngestRaw(context.Background(), "DEV001", payload)
	if err != nil {
		t.Fatalf("IngestRaw() error = %v", err)
	}
	if record.Latitude == nil || *record.Latitude != 10 {
		t.Errorf("latitude = %v, want 10", record.Latitude)
	}

	if _, err := fx.service.IngestRaw(context.Background(), "DEV001", []byte(`nope`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("malformed error = %v, want ErrMalformedPayload", err)
	}
}

func TestService_Latest_CacheAside(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	fx.snapshot.snapshots = map[string]*Record{
		"DEV001": testRecord("DEV001"),
	}

	// First read misses the cache and hits the store.
	if _, err := fx.service.Latest(ctx, "DEV001"); err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if fx.snapshot.getCalls != 1 {
		t.Fatalf("store reads = %d, want 1", fx.snapshot.getCalls)
	}

	// Second read is served from the cache.
	if _, err := fx.service.Latest(ctx, "DEV001"); err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if fx.snapshot.getCalls != 1 {
		t.Errorf("store reads = %d after cached read, want 1", fx.snapshot.getCalls)
	}
}

func TestService_Latest_NoData(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.Latest(context.Background(), "DEV404")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Latest() error = %v, want ErrNoData", err)
	}
}

func TestService_RecordAlarm(t *testing.T) {
	fx := newServiceFixture(t)

	report := &AlarmReport{
		Secret:    "s",
		AlarmType: "overspeed",
		Severity:  "critical",
		Message:   "way too fast",
		Timestamp: time.Now().UnixMilli(),
	}

	alarm, err := fx.service.RecordAlarm(context.Background(), "DEV001", report)
	if err != nil {
		t.Fatalf("RecordAlarm() error = %v", err)
	}
	if alarm.ID == 0 {
		t.Error("alarm should have been persisted")
	}
	if strings.Contains(alarm.Payload, `"secret"`) {
		t.Errorf("alarm payload still carries the secret: %s", alarm.Payload)
	}
	if fx.analytics.alarmWrites != 1 {
		t.Errorf("analytics alarm writes = %d, want 1", fx.analytics.alarmWrites)
	}
	if len(fx.broadcaster.alarms) != 1 {
		t.Errorf("alarm broadcasts = %d, want 1", len(fx.broadcaster.alarms))
	}
}

func TestService_RecordAlarm_StoreFailure(t *testing.T) {
	fx := newServiceFixture(t)
	fx.alarms.appendErr = errors.New("locked")

	_, err := fx.service.RecordAlarm(context.Background(), "DEV001", &AlarmReport{
		AlarmType: "overspeed",
		Timestamp: time.Now().UnixMilli(),
	})
	if err == nil {
		t.Fatal("RecordAlarm() should fail when the store fails")
	}
	if fx.analytics.alarmWrites != 0 {
		t.Error("nothing should reach analytics when the store fails")
	}
}

func TestService_NilSinks(t *testing.T) {
	fx := newServiceFixture(t)
	fx.service.SetAnalytics(nil)
	fx.service.SetBroadcaster(nil)

	if _, err := fx.service.Ingest(context.Background(), "DEV001", validReport()); err != nil {
		t.Fatalf("Ingest() with nil sinks error = %v", err)
	}
}

func TestService_AnalyticsFields(t *testing.T) {
	fx := newServiceFixture(t)

	report := &Report{
		Timestamp: time.Now().UnixMilli(),
		GPS:       &GPSReading{Latitude: f(1), Longitude: f(2), Satellites: i(7)},
	}
	if _, err := fx.service.Ingest(context.Background(), "DEV001", report); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	fields := fx.analytics.lastFields
	if fields["latitude"] != 1.0 || fields["longitude"] != 2.0 {
		t.Errorf("coordinate fields = %v", fields)
	}
	if fields["satellites"] != int64(7) {
		t.Errorf("satellites = %v (%T), want int64(7)", fields["satellites"], fields["satellites"])
	}
	if _, ok := fields["rpm"]; ok {
		t.Error("absent rpm should not appear in analytics fields")
	}
}
