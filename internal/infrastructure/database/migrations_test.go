package database

import (
	"context"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOK      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260301_120000_initial_schema.up.sql",
			wantVersion: "20260301_120000",
			wantIsUp:    true,
			wantOK:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260301_120000_initial_schema.down.sql",
			wantVersion: "20260301_120000",
			wantIsUp:    false,
			wantOK:      true,
		},
		{
			name:     "not sql",
			filename: "20260301_120000_initial_schema.up.txt",
			wantOK:   false,
		},
		{
			name:     "missing direction",
			filename: "20260301_120000_initial_schema.sql",
			wantOK:   false,
		},
		{
			name:     "too few parts",
			filename: "20260301.up.sql",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantIsUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_120000_initial_schema.up.sql", "initial_schema"},
		{"20260301_120000_add_alarms.down.sql", "add_alarms"},
		{"broken.sql", "broken"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestMigrate_NoEmbeddedFS(t *testing.T) {
	db := openTestDB(t)

	// MigrationsFS unset: Migrate must succeed as a no-op.
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no embedded FS error = %v", err)
	}
}
