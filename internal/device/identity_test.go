package device

import (
	"regexp"
	"testing"
)

var deviceIDPattern = regexp.MustCompile(`^DEV\d{14}[A-Z0-9]{6}$`)

func TestGenerateDeviceID_Format(t *testing.T) {
	id := GenerateDeviceID()
	if !deviceIDPattern.MatchString(id) {
		t.Errorf("GenerateDeviceID() = %q, want DEV + 14-digit timestamp + 6 chars [A-Z0-9]", id)
	}
}

func TestGenerateDeviceID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateDeviceID()
		if seen[id] {
			t.Fatalf("duplicate device ID generated: %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateSecret(t *testing.T) {
	secret := GenerateSecret()
	if len(secret) != 32 {
		t.Errorf("secret length = %d, want 32", len(secret))
	}
	if regexp.MustCompile(`-`).MatchString(secret) {
		t.Errorf("secret %q should not contain hyphens", secret)
	}
	if secret == GenerateSecret() {
		t.Error("consecutive secrets should differ")
	}
}

func TestStatus_Retired(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusNotActivated, false},
		{StatusNormal, false},
		{StatusMaintenance, false},
		{StatusDisabled, true},
		{StatusScrapped, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Retired(); got != tt.want {
				t.Errorf("%v.Retired() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestIdentity_DeepCopy(t *testing.T) {
	original := testIdentity("DEV001")
	now := original.CreatedAt
	original.LastOnlineAt = &now

	clone := original.DeepCopy()
	clone.Name = "changed"
	*clone.LastOnlineAt = clone.LastOnlineAt.Add(1)

	if original.Name == "changed" {
		t.Error("DeepCopy should not share the Name field")
	}
	if original.LastOnlineAt.Equal(*clone.LastOnlineAt) {
		t.Error("DeepCopy should not share time pointers")
	}
}

func TestIdentity_DeepCopy_Nil(t *testing.T) {
	var identity *Identity
	if identity.DeepCopy() != nil {
		t.Error("DeepCopy of nil should return nil")
	}
}
