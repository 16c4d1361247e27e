package store

import (
	"context"
	"slices"
	"testing"

	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestImportRegistry(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	batch := &ImportBatch{
		Municipalities: []model.Municipality{
			{Name: "Pisa", Province: "PI", CadastralCode: "G702"},
			{Name: "Lucca", Province: "LU", CadastralCode: "E715"},
		},
		Provinces: []model.Province{{Code: "PI"}, {Code: "LU"}},
		Holders: []model.Holder{
			{ID: 10, LastName: "rossi", FirstName: "mario", Residence: model.Address{Municipality: "Pisa"}},
			{ID: 20, LastName: "verdi", FirstName: "anna", Residence: model.Address{Municipality: "Lucca"}},
			{ID: 30, FirstName: "senza cognome"},
		},
		Weapons: []model.Weapon{
			{ID: 100, HolderID: 20, Brand: "beretta", Serial: "A1"},
			{ID: 101, HolderID: 20, Brand: "beretta", Serial: "a1"},
			{ID: 102, HolderID: 99, Serial: "B2"},
		},
		Movements: []model.Movement{
			{ID: 1, WeaponID: 100, FromHolderID: ptr(10), ToHolderID: ptr(20), Kind: model.MovementSale, Date: "2023-05-01",
				Weapon: model.WeaponSnapshot{Serial: "A1"}},
			{ID: 2, WeaponID: 555, FromHolderID: ptr(10), Kind: model.MovementRemoval, Date: "2022-01-01",
				Weapon: model.WeaponSnapshot{Brand: "GLOCK", Serial: "OLD1"}},
			{ID: 3, WeaponID: 100, FromHolderID: ptr(20), ToHolderID: ptr(77), Kind: "PRESTITO", Date: "2023-06-01"},
			{ID: 4, WeaponID: 100, Kind: model.MovementSale, Date: "01/06/2023"},
			{ID: 5, WeaponID: 666, Kind: model.MovementRemoval, Date: "2022-01-01"},
		},
	}

	res, err := ImportRegistry(ctx, database, batch)
	if err != nil {
		t.Fatalf("ImportRegistry: %v", err)
	}
	if res.Municipalities != 2 || res.Holders != 2 || res.Weapons != 1 {
		t.Errorf("unexpected counts %+v", res)
	}
	if res.RemovedWeapons != 1 || res.Movements != 3 {
		t.Errorf("unexpected movement counts %+v", res)
	}
	// Holder 30, weapons 101 and 102, movements 4 and 5.
	if len(res.Skipped) != 5 {
		t.Errorf("expected 5 skipped records, got %d: %v", len(res.Skipped), res.Skipped)
	}

	verdi, _ := FindHoldersByName(ctx, database, "VERDI ANNA")
	if len(verdi) != 1 || verdi[0].Residence.Province != "LU" {
		t.Fatalf("expected imported holder with cascaded province, got %+v", verdi)
	}
	weapons, _ := GetHolderWeapons(ctx, database, verdi[0].ID)
	if len(weapons) != 1 || weapons[0].Serial != "A1" {
		t.Fatalf("expected weapon A1 for VERDI, got %+v", weapons)
	}

	history, _ := GetWeaponHistory(ctx, database, weapons[0].ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(history))
	}
	if history[0].Kind != model.MovementOther || history[0].ToHolderID != nil {
		t.Errorf("expected unknown kind as ALTRO with dropped recipient, got %s %v", history[0].Kind, history[0].ToHolderID)
	}

	removed, _ := ListMovements(ctx, database, MovementFilter{Kind: model.MovementRemoval})
	if len(removed) != 1 || removed[0].Weapon.Serial != "OLD1" {
		t.Fatalf("expected removal of OLD1, got %+v", removed)
	}
	if w, _ := GetWeapon(ctx, database, removed[0].WeaponID); w != nil {
		t.Error("expected recreated weapon to stay removed")
	}
}

func TestImportRegistryRollsBack(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// A movement referencing a user that does not exist violates a foreign key.
	_, err := ImportRegistry(ctx, database, &ImportBatch{
		Holders: []model.Holder{{ID: 1, LastName: "Rossi", FirstName: "Mario"}},
		Weapons: []model.Weapon{{ID: 1, HolderID: 1, Serial: "RB1"}},
		Movements: []model.Movement{
			{ID: 1, WeaponID: 1, ToHolderID: ptr(1), Kind: model.MovementAcquisition, Date: "2024-01-01", RecordedBy: ptr(42)},
		},
	})
	if err == nil {
		t.Fatal("expected import to fail")
	}

	holders, _ := ListHolders(ctx, database, HolderFilter{})
	if len(holders) != 0 {
		t.Errorf("expected rollback, found %d holders", len(holders))
	}
}

func TestImportRegistryRemovesDisposedWeapons(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	res, err := ImportRegistry(ctx, database, &ImportBatch{
		Holders: []model.Holder{{ID: 1, LastName: "Rossi", FirstName: "Mario"}},
		Weapons: []model.Weapon{
			{ID: 1, HolderID: 1, Serial: "DISPOSED"},
			{ID: 2, HolderID: 1, Serial: "REACQUIRED"},
			{ID: 3, HolderID: 1, Serial: "KEPT"},
		},
		Movements: []model.Movement{
			{ID: 1, WeaponID: 1, ToHolderID: ptr(1), Kind: model.MovementAcquisition, Date: "2020-01-01"},
			{ID: 2, WeaponID: 1, FromHolderID: ptr(1), Kind: model.MovementRemoval, Date: "2021-03-01"},
			{ID: 3, WeaponID: 2, FromHolderID: ptr(1), Kind: model.MovementRemoval, Date: "2019-01-01"},
			{ID: 4, WeaponID: 2, ToHolderID: ptr(1), Kind: model.MovementAcquisition, Date: "2022-01-01"},
			{ID: 5, WeaponID: 3, ToHolderID: ptr(1), Kind: model.MovementAcquisition, Date: "2020-01-01"},
		},
	})
	if err != nil {
		t.Fatalf("ImportRegistry: %v", err)
	}
	if res.Weapons != 3 || res.RemovedWeapons != 1 {
		t.Errorf("unexpected counts %+v", res)
	}

	holders, _ := FindHoldersByName(ctx, database, "ROSSI MARIO")
	if len(holders) != 1 {
		t.Fatalf("expected imported holder, got %+v", holders)
	}
	weapons, err := GetHolderWeapons(ctx, database, holders[0].ID)
	if err != nil {
		t.Fatalf("GetHolderWeapons: %v", err)
	}
	var serials []string
	for _, w := range weapons {
		serials = append(serials, w.Serial)
	}
	if len(serials) != 2 || slices.Contains(serials, "DISPOSED") {
		t.Errorf("expected only REACQUIRED and KEPT to stay active, got %v", serials)
	}

	// The disposed weapon keeps its history.
	removed, _ := ListMovements(ctx, database, MovementFilter{Kind: model.MovementRemoval})
	if len(removed) != 2 {
		t.Errorf("expected both removal movements kept, got %d", len(removed))
	}
}
