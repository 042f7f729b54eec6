package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/draycott-io/fleet-core/internal/infrastructure/database"
	_ "github.com/draycott-io/fleet-core/migrations" // register embedded migrations
)

// newTestRepo opens a migrated database in a temp directory and returns
// a repository backed by it.
func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return NewSQLiteRepository(db)
}

func testIdentity(deviceID string) *Identity {
	return &Identity{
		DeviceID: deviceID,
		Name:     "test vehicle",
		Secret:   "0123456789abcdef0123456789abcdef",
		Type:     "tracker",
		Model:    "T-100",
		Status:   StatusNormal,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	identity := testIdentity("DEV001")
	if err := repo.Create(ctx, identity); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if identity.ID == 0 {
		t.Error("Create() should set the row ID")
	}

	got, err := repo.GetByDeviceID(ctx, "DEV001")
	if err != nil {
		t.Fatalf("GetByDeviceID() error = %v", err)
	}
	if got.DeviceID != "DEV001" {
		t.Errorf("DeviceID = %q, want DEV001", got.DeviceID)
	}
	if got.Secret != identity.Secret {
		t.Errorf("Secret = %q, want %q", got.Secret, identity.Secret)
	}
	if got.Status != StatusNormal {
		t.Errorf("Status = %v, want StatusNormal", got.Status)
	}
	if got.OnlineStatus != Offline {
		t.Errorf("OnlineStatus = %v, want Offline", got.OnlineStatus)
	}
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByDeviceID(context.Background(), "DEV404")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testIdentity("DEV001")); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	err := repo.Create(ctx, testIdentity("DEV001"))
	if !errors.Is(err, ErrDeviceExists) {
		t.Errorf("duplicate Create() error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"DEV002", "DEV001", "DEV003"} {
		if err := repo.Create(ctx, testIdentity(id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	identities, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(identities) != 3 {
		t.Fatalf("List() returned %d devices, want 3", len(identities))
	}
	// Ordered by device_id
	if identities[0].DeviceID != "DEV001" {
		t.Errorf("first device = %q, want DEV001", identities[0].DeviceID)
	}
}

func TestSQLiteRepository_PresenceTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testIdentity("DEV001")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Online
	onlineAt := time.Now().UTC()
	if err := repo.UpdateOnline(ctx, "DEV001", "203.0.113.9", onlineAt); err != nil {
		t.Fatalf("UpdateOnline() error = %v", err)
	}

	got, err := repo.GetByDeviceID(ctx, "DEV001")
	if err != nil {
		t.Fatalf("GetByDeviceID() error = %v", err)
	}
	if got.OnlineStatus != Online {
		t.Errorf("OnlineStatus = %v, want Online", got.OnlineStatus)
	}
	if got.LastIP != "203.0.113.9" {
		t.Errorf("LastIP = %q, want 203.0.113.9", got.LastIP)
	}
	if got.LastOnlineAt == nil {
		t.Error("LastOnlineAt should be set")
	}

	// Offline
	if err := repo.UpdateOffline(ctx, "DEV001", time.Now().UTC()); err != nil {
		t.Fatalf("UpdateOffline() error = %v", err)
	}

	got, err = repo.GetByDeviceID(ctx, "DEV001")
	if err != nil {
		t.Fatalf("GetByDeviceID() error = %v", err)
	}
	if got.OnlineStatus != Offline {
		t.Errorf("OnlineStatus = %v, want Offline", got.OnlineStatus)
	}
	if got.LastOfflineAt == nil {
		t.Error("LastOfflineAt should be set")
	}

	// Both transitions logged, newest first
	log, err := repo.OnlineLog(ctx, "DEV001", 10)
	if err != nil {
		t.Fatalf("OnlineLog() error = %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("OnlineLog() returned %d entries, want 2", len(log))
	}
	if log[0].Event != "offline" {
		t.Errorf("newest event = %q, want offline", log[0].Event)
	}
	if log[1].Event != "online" {
		t.Errorf("oldest event = %q, want online", log[1].Event)
	}
	if log[1].IP != "203.0.113.9" {
		t.Errorf("online log IP = %q, want 203.0.113.9", log[1].IP)
	}
}

func TestSQLiteRepository_PresenceUnknownDevice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpdateOnline(ctx, "DEV404", "", time.Now()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateOnline() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.UpdateOffline(ctx, "DEV404", time.Now()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateOffline() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.TouchHeartbeat(ctx, "DEV404", time.Now()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("TouchHeartbeat() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_TouchHeartbeat(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testIdentity("DEV001")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Now().UTC()
	if err := repo.TouchHeartbeat(ctx, "DEV001", at); err != nil {
		t.Fatalf("TouchHeartbeat() error = %v", err)
	}

	got, err := repo.GetByDeviceID(ctx, "DEV001")
	if err != nil {
		t.Fatalf("GetByDeviceID() error = %v", err)
	}
	if got.LastOnlineAt == nil {
		t.Fatal("LastOnlineAt should be set after heartbeat")
	}

	// Heartbeats must not write presence log entries
	log, err := repo.OnlineLog(ctx, "DEV001", 10)
	if err != nil {
		t.Fatalf("OnlineLog() error = %v", err)
	}
	if len(log) != 0 {
		t.Errorf("OnlineLog() returned %d entries after heartbeat, want 0", len(log))
	}
}

func TestSQLiteRepository_ListByOnlineStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"DEV001", "DEV002"} {
		if err := repo.Create(ctx, testIdentity(id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if err := repo.UpdateOnline(ctx, "DEV001", "", time.Now()); err != nil {
		t.Fatalf("UpdateOnline() error = %v", err)
	}

	online, err := repo.ListByOnlineStatus(ctx, Online)
	if err != nil {
		t.Fatalf("ListByOnlineStatus(Online) error = %v", err)
	}
	if len(online) != 1 || online[0].DeviceID != "DEV001" {
		t.Errorf("online devices = %v, want [DEV001]", online)
	}

	offline, err := repo.ListByOnlineStatus(ctx, Offline)
	if err != nil {
		t.Fatalf("ListByOnlineStatus(Offline) error = %v", err)
	}
	if len(offline) != 1 || offline[0].DeviceID != "DEV002" {
		t.Errorf("offline devices = %v, want [DEV002]", offline)
	}
}

func TestSQLiteRepository_Exists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testIdentity("DEV001")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exists, err := repo.Exists(ctx, "DEV001")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists(DEV001) = false, want true")
	}

	exists, err = repo.Exists(ctx, "DEV404")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists(DEV404) = true, want false")
	}
}
