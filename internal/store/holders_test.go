package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
)

func TestCreateAndGetHolder(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	h := createTestHolder(t, database, "rossi", "mario")
	if h.LastName != "ROSSI" || h.FirstName != "MARIO" {
		t.Errorf("expected uppercase names, got %q %q", h.LastName, h.FirstName)
	}
	if h.BirthProvince != "PI" || h.Residence.Province != "PI" {
		t.Errorf("expected provinces cascaded from municipality, got %q %q", h.BirthProvince, h.Residence.Province)
	}
	if !h.Storage.SameAsResidence || h.Storage.Street != "ROMA" {
		t.Errorf("expected storage to default to residence, got %+v", h.Storage)
	}

	got, err := GetHolder(ctx, database, h.ID)
	if err != nil {
		t.Fatalf("GetHolder: %v", err)
	}
	if got == nil || got.FullName() != "ROSSI MARIO" {
		t.Fatalf("unexpected holder %+v", got)
	}

	missing, err := GetHolder(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing holder, got %v, %v", missing, err)
	}
}

func TestCreateHolderValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateHolder(ctx, database, &model.Holder{FirstName: "Mario"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing last name, got %v", err)
	}

	_, err = CreateHolder(ctx, database, &model.Holder{FirstName: "Mario", LastName: "Rossi", Sex: "X"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad sex, got %v", err)
	}
}

func TestProvinceCascade(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	h := createTestHolder(t, database, "Bianchi", "Luca")

	// A known municipality overrides a stale sigla.
	h.Residence.Municipality = "forli"
	h.Residence.Province = "PI"
	if err := UpdateHolder(ctx, database, h); err != nil {
		t.Fatalf("UpdateHolder: %v", err)
	}
	got, _ := GetHolder(ctx, database, h.ID)
	if got.Residence.Province != "FC" {
		t.Errorf("expected FC, got %q", got.Residence.Province)
	}

	// Unknown municipality keeps what was typed.
	got.Residence.Municipality = "Atlantide"
	got.Residence.Province = "XX"
	UpdateHolder(ctx, database, got)
	got, _ = GetHolder(ctx, database, h.ID)
	if got.Residence.Province != "XX" {
		t.Errorf("expected XX kept, got %q", got.Residence.Province)
	}

	// Clearing the municipality clears the sigla.
	got.Residence.Municipality = ""
	UpdateHolder(ctx, database, got)
	got, _ = GetHolder(ctx, database, h.ID)
	if got.Residence.Province != "" {
		t.Errorf("expected empty province, got %q", got.Residence.Province)
	}
}

func TestUpdateHolderSyncsStorage(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	h := createTestHolder(t, database, "Verdi", "Anna")
	w := createTestWeapon(t, database, h.ID, "AB123")
	if !w.Storage.SameAsResidence || w.Storage.Municipality != "PISA" {
		t.Fatalf("expected weapon to inherit holder storage, got %+v", w.Storage)
	}

	h.Residence.Municipality = "Lucca"
	h.Residence.Street = "Fillungo"
	if err := UpdateHolder(ctx, database, h); err != nil {
		t.Fatalf("UpdateHolder: %v", err)
	}

	got, _ := GetHolder(ctx, database, h.ID)
	if got.Storage.Municipality != "LUCCA" || got.Storage.Province != "LU" || got.Storage.Street != "FILLUNGO" {
		t.Errorf("expected holder storage to follow residence, got %+v", got.Storage)
	}

	gw, _ := GetWeapon(ctx, database, w.ID)
	if gw.Storage.Municipality != "LUCCA" || gw.Storage.Street != "FILLUNGO" {
		t.Errorf("expected weapon storage to follow residence, got %+v", gw.Storage)
	}

	// Decoupled storage no longer follows.
	got.Storage.Decouple(model.StorageKindOther, model.Address{Municipality: "Roma", Street: "Appia"})
	UpdateHolder(ctx, database, got)
	got.Residence.Municipality = "Pisa"
	UpdateHolder(ctx, database, got)
	got, _ = GetHolder(ctx, database, h.ID)
	if got.Storage.Municipality != "ROMA" || got.Storage.Province != "RM" {
		t.Errorf("expected decoupled storage to stay in Roma, got %+v", got.Storage)
	}
}

func TestListHoldersFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	a := createTestHolder(t, database, "Rossi", "Mario")
	createTestHolder(t, database, "Rossini", "Gioacchino")
	createTestHolder(t, database, "Bianchi", "Anna")
	createTestWeapon(t, database, a.ID, "X1")

	all, err := ListHolders(ctx, database, HolderFilter{})
	if err != nil {
		t.Fatalf("ListHolders: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 holders, got %d", len(all))
	}
	if all[0].LastName != "BIANCHI" {
		t.Errorf("expected ordering by last name, first is %q", all[0].LastName)
	}

	byLast, _ := ListHolders(ctx, database, HolderFilter{LastName: "ross"})
	if len(byLast) != 2 {
		t.Errorf("expected 2 holders matching 'ross', got %d", len(byLast))
	}
	if byLast[0].WeaponCount != 1 {
		t.Errorf("expected weapon count 1 for ROSSI, got %d", byLast[0].WeaponCount)
	}

	byFirst, _ := ListHolders(ctx, database, HolderFilter{FirstName: "anna", Municipality: "pis"})
	if len(byFirst) != 1 {
		t.Errorf("expected 1 holder, got %d", len(byFirst))
	}

	wildcard, _ := ListHolders(ctx, database, HolderFilter{LastName: "%"})
	if len(wildcard) != 0 {
		t.Errorf("expected LIKE wildcards to be escaped, got %d matches", len(wildcard))
	}
}

func TestFindHoldersByName(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	createTestHolder(t, database, "De Luca", "Francesca")

	found, err := FindHoldersByName(ctx, database, " de  luca francesca ")
	if err != nil {
		t.Fatalf("FindHoldersByName: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected 1 match, got %d", len(found))
	}
}

func TestDeleteHolderWithWeaponsRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	h := createTestHolder(t, database, "Neri", "Paolo")
	w := createTestWeapon(t, database, h.ID, "DEL1")

	err := DeleteHolder(ctx, database, h.ID)
	if !errors.Is(err, ErrHolderHasWeapons) {
		t.Fatalf("expected ErrHolderHasWeapons, got %v", err)
	}

	if _, err := DeleteWeapon(ctx, database, w.ID, "", "", nil); err != nil {
		t.Fatalf("DeleteWeapon: %v", err)
	}
	if err := DeleteHolder(ctx, database, h.ID); err != nil {
		t.Fatalf("DeleteHolder after removing weapons: %v", err)
	}
	got, _ := GetHolder(ctx, database, h.ID)
	if got != nil {
		t.Error("expected deleted holder to be hidden")
	}

	if err := DeleteHolder(ctx, database, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
