package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/armeria/internal/model"
)

func seedMunicipalities(t *testing.T, database *sql.DB) {
	t.Helper()
	_, err := ReplaceMunicipalities(context.Background(), database, []model.Municipality{
		{Name: "Pisa", Province: "PI", CadastralCode: "G702", Region: "Toscana"},
		{Name: "San Giuliano Terme", Province: "PI", CadastralCode: "A562", Region: "Toscana"},
		{Name: "Lucca", Province: "LU", CadastralCode: "E715", Region: "Toscana"},
		{Name: "Forlì", Province: "FC", CadastralCode: "D704", Region: "Emilia-Romagna"},
		{Name: "Roma", Province: "RM", CadastralCode: "H501", Region: "Lazio"},
	}, []model.Province{
		{Code: "PI", Name: "Pisa", Region: "Toscana"},
		{Code: "LU", Name: "Lucca", Region: "Toscana"},
		{Code: "FC", Name: "Forlì-Cesena"},
		{Code: "RM", Name: "Roma"},
	})
	if err != nil {
		t.Fatalf("seeding municipalities: %v", err)
	}
}

func createTestHolder(t *testing.T, database *sql.DB, last, first string) *model.Holder {
	t.Helper()
	h, err := CreateHolder(context.Background(), database, &model.Holder{
		FirstName:  first,
		LastName:   last,
		Sex:        "M",
		BirthDate:  "10/12/1985",
		BirthPlace: "Pisa",
		Residence: model.Address{
			Municipality: "Pisa",
			StreetType:   "Via",
			Street:       "Roma",
			Number:       "1",
		},
	})
	if err != nil {
		t.Fatalf("CreateHolder: %v", err)
	}
	return h
}

func createTestWeapon(t *testing.T, database *sql.DB, holderID int64, serial string) *model.Weapon {
	t.Helper()
	w, err := CreateWeapon(context.Background(), database, &model.Weapon{
		HolderID: holderID,
		Kind:     "Pistola",
		Brand:    "Beretta",
		Model:    "92FS",
		Serial:   serial,
		Caliber:  "9x21",
		Category: model.CategorySport,
		Transferor: model.Transferor{
			Kind:          model.TransferorDealer,
			PartySnapshot: model.PartySnapshot{LastName: "Armeria Rossi"},
		},
	}, "2024-01-15", nil)
	if err != nil {
		t.Fatalf("CreateWeapon: %v", err)
	}
	return w
}
