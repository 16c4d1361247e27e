package store

import (
	"context"
	"testing"

	"github.com/erazemk/armeria/internal/codicefiscale"
	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
)

func TestMunicipalityLookup(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	m, err := GetMunicipality(ctx, database, "  forli ")
	if err != nil {
		t.Fatalf("GetMunicipality: %v", err)
	}
	if m == nil || m.Name != "FORLÌ" || m.Province != "FC" {
		t.Fatalf("expected FORLÌ (FC), got %+v", m)
	}

	prov, _ := ProvinceForMunicipality(ctx, database, "Forlì")
	if prov != "FC" {
		t.Errorf("expected FC, got %q", prov)
	}

	unknown, err := GetMunicipality(ctx, database, "Atlantide")
	if err != nil || unknown != nil {
		t.Errorf("expected nil, nil for unknown municipality, got %v, %v", unknown, err)
	}

	code, _ := CadastralCode(ctx, database, "san giuliano terme")
	if code != "A562" {
		t.Errorf("expected A562, got %q", code)
	}
}

func TestListMunicipalities(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	got, err := ListMunicipalities(ctx, database, "p", 0)
	if err != nil {
		t.Fatalf("ListMunicipalities: %v", err)
	}
	if len(got) != 1 || got[0].Name != "PISA" {
		t.Errorf("expected [PISA], got %v", got)
	}

	all, _ := ListMunicipalities(ctx, database, "", 2)
	if len(all) != 2 {
		t.Errorf("expected limit to apply, got %d", len(all))
	}

	none, _ := ListMunicipalities(ctx, database, "%", 0)
	if len(none) != 0 {
		t.Errorf("expected escaped wildcard to match nothing, got %d", len(none))
	}
}

func TestReplaceMunicipalities(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)
	ctx := context.Background()

	n, err := ReplaceMunicipalities(ctx, database, []model.Municipality{
		{Name: "Milano", Province: "MI", CadastralCode: "F205"},
		{Name: "Milano bis", Province: "MI", CadastralCode: "F205"},
	}, []model.Province{{Code: "MI", Name: "Milano", Region: "Lombardia"}})
	if err != nil {
		t.Fatalf("ReplaceMunicipalities: %v", err)
	}
	if n != 1 {
		t.Errorf("expected duplicate cadastral code to be skipped, got %d", n)
	}

	if m, _ := GetMunicipality(ctx, database, "Pisa"); m != nil {
		t.Error("expected previous municipalities to be replaced")
	}

	provinces, err := ListProvinces(ctx, database)
	if err != nil {
		t.Fatalf("ListProvinces: %v", err)
	}
	var found bool
	for _, p := range provinces {
		if p.Code == "MI" && p.Region == "LOMBARDIA" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected MI province, got %v", provinces)
	}
}

func TestCadastralLookupComputesFiscalCode(t *testing.T) {
	database := db.NewTestDB(t)
	seedMunicipalities(t, database)

	code, err := codicefiscale.Compute(context.Background(), CadastralLookup(database), codicefiscale.Person{
		FirstName:  "Mario",
		LastName:   "Rossi",
		BirthDate:  "10/12/1985",
		Sex:        "M",
		BirthPlace: "San Giuliano Terme",
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if code != "RSSMRA85T10A562S" {
		t.Errorf("expected RSSMRA85T10A562S, got %s", code)
	}
}

func TestBrands(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	before, err := ListBrands(ctx, database)
	if err != nil {
		t.Fatalf("ListBrands: %v", err)
	}

	b, err := AddBrand(ctx, database, " chiappa ")
	if err != nil {
		t.Fatalf("AddBrand: %v", err)
	}
	if b.Name != "CHIAPPA" {
		t.Errorf("expected FABARM, got %q", b.Name)
	}

	again, err := AddBrand(ctx, database, "Chiappa")
	if err != nil {
		t.Fatalf("AddBrand duplicate: %v", err)
	}
	if again.ID != b.ID {
		t.Errorf("expected existing brand to be returned, got id %d vs %d", again.ID, b.ID)
	}

	after, _ := ListBrands(ctx, database)
	if len(after) != len(before)+1 {
		t.Errorf("expected one new brand, got %d -> %d", len(before), len(after))
	}
}
