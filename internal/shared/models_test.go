package shared

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestScanAction(t *testing.T) {
	now := time.Now()

	t.Run("No Log Means Exit", func(t *testing.T) {
		action, err := ScanAction(nil)
		if err != nil {
			t.Fatalf("ScanAction failed: %v", err)
		}
		if action != ActionExit {
			t.Errorf("Expected %q, got %q", ActionExit, action)
		}
	})

	t.Run("Log Without Exit Means Exit", func(t *testing.T) {
		action, err := ScanAction(&EntryExitLog{})
		if err != nil {
			t.Fatalf("ScanAction failed: %v", err)
		}
		if action != ActionExit {
			t.Errorf("Expected %q, got %q", ActionExit, action)
		}
	})

	t.Run("Exit Logged Means Entry", func(t *testing.T) {
		action, err := ScanAction(&EntryExitLog{ExitTime: &now})
		if err != nil {
			t.Fatalf("ScanAction failed: %v", err)
		}
		if action != ActionEntry {
			t.Errorf("Expected %q, got %q", ActionEntry, action)
		}
	})

	t.Run("Both Logged Fails", func(t *testing.T) {
		_, err := ScanAction(&EntryExitLog{ExitTime: &now, EntryTime: &now})
		if err == nil {
			t.Error("Expected error for fully processed log, got nil")
		}
	})
}

func TestOutpassScanAction(t *testing.T) {
	now := time.Now()

	o := Outpass{}
	if action, _ := o.ScanAction(); action != ActionExit {
		t.Errorf("Fresh outpass should expect exit, got %q", action)
	}

	o.ExitTime = &now
	if action, _ := o.ScanAction(); action != ActionEntry {
		t.Errorf("Exited outpass should expect entry, got %q", action)
	}

	o.ActualReturnTime = &now
	if _, err := o.ScanAction(); err == nil {
		t.Error("Completed outpass should fail the scan, got nil error")
	}
}

func TestDelayMinutes(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		actual   time.Time
		expected int
	}{
		{"On Time", base, 0},
		{"Thirty Minutes Late", base.Add(30 * time.Minute), 30},
		{"Partial Minute Floors", base.Add(30*time.Minute + 59*time.Second), 30},
		{"Early Is Negative", base.Add(-10 * time.Minute), -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DelayMinutes(base, tc.actual); got != tc.expected {
				t.Errorf("DelayMinutes = %d, want %d", got, tc.expected)
			}
		})
	}
}

func TestOutpassLiveDelay(t *testing.T) {
	now := time.Now()

	t.Run("No Expected Return", func(t *testing.T) {
		o := Outpass{}
		if late, _ := o.LiveDelay(now); late {
			t.Error("Outpass without expected return cannot be delayed")
		}
	})

	t.Run("Within Window", func(t *testing.T) {
		future := now.Add(time.Hour)
		o := Outpass{ExpectedReturnTime: &future}
		if late, _ := o.LiveDelay(now); late {
			t.Error("Outpass inside its window should not be delayed")
		}
	})

	t.Run("Past Window", func(t *testing.T) {
		past := now.Add(-45 * time.Minute)
		o := Outpass{ExpectedReturnTime: &past}
		late, minutes := o.LiveDelay(now)
		if !late {
			t.Fatal("Outpass past its window should be delayed")
		}
		if minutes != 45 {
			t.Errorf("Expected 45 minutes of delay, got %d", minutes)
		}
	})
}

func TestNormalizeDate(t *testing.T) {
	in := time.Date(2024, 6, 1, 23, 45, 12, 999, time.UTC)
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := NormalizeDate(in); !got.Equal(want) {
		t.Errorf("NormalizeDate = %v, want %v", got, want)
	}

	// Two timestamps on the same calendar day share one key.
	morning := time.Date(2024, 6, 1, 0, 0, 1, 0, time.UTC)
	if !NormalizeDate(in).Equal(NormalizeDate(morning)) {
		t.Error("Timestamps on the same day should normalize to the same key")
	}
}

func TestPermissionLetterIsTerminal(t *testing.T) {
	cases := []struct {
		name     string
		pl       PermissionLetter
		terminal bool
	}{
		{"Pending", PermissionLetter{Status: PLPending}, false},
		{"Approved", PermissionLetter{Status: PLApproved}, false},
		{"Rejected", PermissionLetter{Status: PLRejected}, true},
		{"Expired Unused", PermissionLetter{Status: PLExpired, IsFullyUsed: false}, false},
		{"Expired Used", PermissionLetter{Status: PLExpired, IsFullyUsed: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pl.IsTerminal(); got != tc.terminal {
				t.Errorf("IsTerminal = %v, want %v", got, tc.terminal)
			}
		})
	}
}

func TestAccountHasLiveResetToken(t *testing.T) {
	now := time.Now()
	token := "TEMP12345678"
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name    string
		account Account
		want    bool
	}{
		{"No Token", Account{ID: primitive.NewObjectID()}, false},
		{"Live Token", Account{ResetToken: &token, ResetTokenExpiry: &future}, true},
		{"Expired Token", Account{ResetToken: &token, ResetTokenExpiry: &past}, false},
		{"Token Without Expiry", Account{ResetToken: &token}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.account.HasLiveResetToken(now); got != tc.want {
				t.Errorf("HasLiveResetToken = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleStudent, RoleParent, RoleWarden} {
		if !IsValidRole(role) {
			t.Errorf("Role %q should be valid", role)
		}
	}
	if IsValidRole("faculty") {
		t.Error("Unknown role should not be valid")
	}
}
