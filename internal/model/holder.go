package model

import (
	"time"

	"github.com/erazemk/armeria/internal/textnorm"
)

// Holder is a person registered as keeping one or more weapons.
type Holder struct {
	ID            int64   `json:"id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Sex           string  `json:"sex"`
	BirthDate     string  `json:"birth_date"`
	BirthPlace    string  `json:"birth_place"`
	BirthProvince string  `json:"birth_province"`
	FiscalCode    string  `json:"fiscal_code"`
	FileNumber    string  `json:"file_number"`
	Residence     Address `json:"residence"`
	Phone         string  `json:"phone"`

	License  License         `json:"license"`
	Storage  StorageLocation `json:"storage"`
	Document IDDocument      `json:"document"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Joined field (not always populated).
	WeaponCount int `json:"weapon_count,omitempty"`
}

// License is the firearms title (porto d'armi or nulla osta).
type License struct {
	Type           string `json:"type"`
	Number         string `json:"number"`
	Issuer         string `json:"issuer"`
	IssuerProvince string `json:"issuer_province"`
	IssuedOn       string `json:"issued_on"`
}

// IDDocument is the identity document shown at registration.
type IDDocument struct {
	Type               string `json:"type"`
	Number             string `json:"number"`
	IssuedOn           string `json:"issued_on"`
	Issuer             string `json:"issuer"`
	IssuerMunicipality string `json:"issuer_municipality"`
}

// Sexes.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// LicenseNone is recorded when the holder has no title.
const LicenseNone = "NESSUN TITOLO"

// FullName returns "LAST FIRST".
func (h *Holder) FullName() string {
	return textnorm.Clean(h.LastName + " " + h.FirstName)
}

// Normalize uppercases all free-text fields and re-applies the storage
// location rule.
func (h *Holder) Normalize() {
	h.FirstName = textnorm.Clean(h.FirstName)
	h.LastName = textnorm.Clean(h.LastName)
	h.Sex = textnorm.Clean(h.Sex)
	h.BirthDate = textnorm.Clean(h.BirthDate)
	h.BirthPlace = textnorm.Clean(h.BirthPlace)
	h.BirthProvince = textnorm.Clean(h.BirthProvince)
	h.FiscalCode = textnorm.Clean(h.FiscalCode)
	h.FileNumber = textnorm.Clean(h.FileNumber)
	h.Residence.Normalize()
	h.Phone = textnorm.Clean(h.Phone)

	h.License.Type = textnorm.Clean(h.License.Type)
	h.License.Number = textnorm.Clean(h.License.Number)
	h.License.Issuer = textnorm.Clean(h.License.Issuer)
	h.License.IssuerProvince = textnorm.Clean(h.License.IssuerProvince)
	h.License.IssuedOn = textnorm.Clean(h.License.IssuedOn)

	h.Storage.Kind = textnorm.Clean(h.Storage.Kind)
	h.Storage.Address.Normalize()
	h.Storage.Sync(h.Residence)

	h.Document.Type = textnorm.Clean(h.Document.Type)
	h.Document.Number = textnorm.Clean(h.Document.Number)
	h.Document.IssuedOn = textnorm.Clean(h.Document.IssuedOn)
	h.Document.Issuer = textnorm.Clean(h.Document.Issuer)
	h.Document.IssuerMunicipality = textnorm.Clean(h.Document.IssuerMunicipality)
}

// Snapshot freezes the holder's identity for a movement record.
func (h *Holder) Snapshot() PartySnapshot {
	return PartySnapshot{
		LastName:      h.LastName,
		FirstName:     h.FirstName,
		BirthDate:     h.BirthDate,
		BirthPlace:    h.BirthPlace,
		BirthProvince: h.BirthProvince,
		FiscalCode:    h.FiscalCode,
		Residence:     h.Residence,
		Phone:         h.Phone,
	}
}
