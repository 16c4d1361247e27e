package store

import (
	"context"
	"testing"

	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
)

func TestGetSummary(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	a := createTestHolder(t, database, "Rossi", "Mario")
	b := createTestHolder(t, database, "Verdi", "Anna")
	createTestWeapon(t, database, a.ID, "SU1")
	w := createTestWeapon(t, database, a.ID, "SU2")
	TransferWeapon(ctx, database, TransferRequest{WeaponID: w.ID, ToHolderID: b.ID, Kind: model.MovementGift})
	gone := createTestWeapon(t, database, b.ID, "SU3")
	DeleteWeapon(ctx, database, gone.ID, "", "", nil)

	s, err := GetSummary(ctx, database)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.Holders != 2 || s.Weapons != 2 || s.Municipalities != 5 {
		t.Errorf("unexpected totals %+v", s)
	}
	// Three acquisitions, one gift, one removal.
	if s.Movements != 5 {
		t.Errorf("expected 5 movements, got %d", s.Movements)
	}
	if s.ByCategory[model.CategorySport] != 2 {
		t.Errorf("expected 2 sport weapons, got %v", s.ByCategory)
	}
}
