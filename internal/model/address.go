package model

import "github.com/erazemk/armeria/internal/textnorm"

// Address is a street address inside an Italian municipality.
type Address struct {
	Municipality string `json:"municipality"`
	Province     string `json:"province"`
	StreetType   string `json:"street_type"`
	Street       string `json:"street"`
	Number       string `json:"number"`
}

// Normalize uppercases every field.
func (a *Address) Normalize() {
	a.Municipality = textnorm.Clean(a.Municipality)
	a.Province = textnorm.Clean(a.Province)
	a.StreetType = textnorm.Clean(a.StreetType)
	a.Street = textnorm.Clean(a.Street)
	a.Number = textnorm.Clean(a.Number)
}

// IsZero reports whether no field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Line formats the street part as "TYPE STREET NUMBER". It is empty unless
// both the street type and the street are set.
func (a Address) Line() string {
	if a.StreetType == "" || a.Street == "" {
		return ""
	}
	line := a.StreetType + " " + a.Street
	if a.Number != "" {
		line += " " + a.Number
	}
	return line
}

// StorageLocation is where weapons are physically kept.
type StorageLocation struct {
	Kind string `json:"kind"`
	Address
	// SameAsResidence keeps the address in sync with the residence until the
	// location is edited on its own.
	SameAsResidence bool `json:"same_as_residence"`
}

// Sync copies residence into the location while SameAsResidence is set.
func (s *StorageLocation) Sync(residence Address) {
	if !s.SameAsResidence {
		return
	}
	s.Address = residence
	if s.Kind == "" {
		s.Kind = StorageKindResidence
	}
}

// Decouple stores an explicitly edited address and stops following the
// residence.
func (s *StorageLocation) Decouple(kind string, addr Address) {
	s.Kind = kind
	s.Address = addr
	s.SameAsResidence = false
}

// Storage kinds.
const (
	StorageKindResidence = "ABITAZIONE"
	StorageKindOther     = "ALTRO LUOGO"
)

// PartySnapshot freezes the identity of a person at the time of a movement.
type PartySnapshot struct {
	LastName      string  `json:"last_name"`
	FirstName     string  `json:"first_name"`
	BirthDate     string  `json:"birth_date"`
	BirthPlace    string  `json:"birth_place"`
	BirthProvince string  `json:"birth_province"`
	FiscalCode    string  `json:"fiscal_code"`
	Residence     Address `json:"residence"`
	Phone         string  `json:"phone"`
}

// Normalize uppercases every field.
func (p *PartySnapshot) Normalize() {
	p.LastName = textnorm.Clean(p.LastName)
	p.FirstName = textnorm.Clean(p.FirstName)
	p.BirthDate = textnorm.Clean(p.BirthDate)
	p.BirthPlace = textnorm.Clean(p.BirthPlace)
	p.BirthProvince = textnorm.Clean(p.BirthProvince)
	p.FiscalCode = textnorm.Clean(p.FiscalCode)
	p.Residence.Normalize()
	p.Phone = textnorm.Clean(p.Phone)
}

// FullName returns "LAST FIRST".
func (p PartySnapshot) FullName() string {
	return textnorm.Clean(p.LastName + " " + p.FirstName)
}
