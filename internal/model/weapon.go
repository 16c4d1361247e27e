package model

import (
	"strings"
	"time"

	"github.com/erazemk/armeria/internal/textnorm"
)

// Weapon is a single registered firearm.
type Weapon struct {
	ID       int64 `json:"id"`
	HolderID int64 `json:"holder_id"`

	Kind             string `json:"kind"`
	Brand            string `json:"brand"`
	Model            string `json:"model"`
	Type             string `json:"type"`
	Serial           string `json:"serial"`
	Caliber          string `json:"caliber"`
	BarrelSerial     string `json:"barrel_serial"`
	BarrelLength     string `json:"barrel_length"`
	BarrelCount      string `json:"barrel_count"`
	LongShort        string `json:"long_short"`
	BarrelType       string `json:"barrel_type"`
	Category         string `json:"category"`
	Action           string `json:"action"`
	Loading          string `json:"loading"`
	ProofMarks       string `json:"proof_marks"`
	ProductionStatus string `json:"production_status"`
	ExOrdDem         string `json:"ex_ord_dem"`
	AmmoType         string `json:"ammo_type"`
	AmmoQuantity     string `json:"ammo_quantity"`
	CaseType         string `json:"case_type"`
	Notes            string `json:"notes"`

	Transferor Transferor      `json:"transferor"`
	Storage    StorageLocation `json:"storage"`

	ImageMime string     `json:"image_mime,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	HolderName string `json:"holder_name,omitempty"`
}

// Transferor is the party the current holder received the weapon from.
type Transferor struct {
	Kind string `json:"kind"`
	PartySnapshot
}

// Transferor kinds.
const (
	TransferorPerson  = "PERSONA FISICA"
	TransferorDealer  = "ARMERIA"
	TransferorCompany = "PERSONA GIURIDICA"
)

// Weapon categories, in report order.
const (
	CategoryHunting = "ARMA DA CACCIA"
	CategorySport   = "ARMA SPORTIVA"
	CategoryCommon  = "ARMA COMUNE"
	CategoryAntique = "ARMA ANTICA"
	CategoryOther   = "ALTRA CATEGORIA"
)

// Weapon lengths.
const (
	LengthLong  = "ARMA LUNGA"
	LengthShort = "ARMA CORTA"
)

// Normalize uppercases all free-text fields.
func (w *Weapon) Normalize() {
	for _, f := range []*string{
		&w.Kind, &w.Brand, &w.Model, &w.Type, &w.Serial, &w.Caliber,
		&w.BarrelSerial, &w.BarrelLength, &w.BarrelCount, &w.LongShort,
		&w.BarrelType, &w.Category, &w.Action, &w.Loading, &w.ProofMarks,
		&w.ProductionStatus, &w.ExOrdDem, &w.AmmoType, &w.AmmoQuantity,
		&w.CaseType, &w.Notes, &w.Transferor.Kind, &w.Storage.Kind,
	} {
		*f = textnorm.Clean(*f)
	}
	w.Transferor.PartySnapshot.Normalize()
	w.Storage.Address.Normalize()
}

// Description returns "KIND BRAND MODEL".
func (w *Weapon) Description() string {
	return strings.Join(strings.Fields(w.Kind+" "+w.Brand+" "+w.Model), " ")
}

// Snapshot freezes the weapon's identity for a movement record.
func (w *Weapon) Snapshot() WeaponSnapshot {
	return WeaponSnapshot{
		Kind:     w.Kind,
		Brand:    w.Brand,
		Model:    w.Model,
		Serial:   w.Serial,
		Caliber:  w.Caliber,
		Category: w.Category,
	}
}
