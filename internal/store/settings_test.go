package store

import (
	"context"
	"testing"

	"github.com/erazemk/armeria/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := GetSetting(ctx, database, SettingStation)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty setting, got %q", v)
	}

	if err := SetSetting(ctx, database, SettingStation, "COMANDO STAZIONE CARABINIERI DI PISA"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := SetSetting(ctx, database, SettingStation, "COMANDO STAZIONE CARABINIERI DI LUCCA"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}

	v, _ = GetSetting(ctx, database, SettingStation)
	if v != "COMANDO STAZIONE CARABINIERI DI LUCCA" {
		t.Errorf("unexpected setting %q", v)
	}
}

func TestReportStation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	station, err := ReportStation(ctx, database, "COMANDO STAZIONE")
	if err != nil {
		t.Fatalf("ReportStation: %v", err)
	}
	if station != "COMANDO STAZIONE" {
		t.Errorf("expected fallback, got %q", station)
	}

	if err := SetSetting(ctx, database, SettingStation, "STAZIONE DI PISA"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	station, _ = ReportStation(ctx, database, "COMANDO STAZIONE")
	if station != "STAZIONE DI PISA" {
		t.Errorf("expected stored station, got %q", station)
	}
}
