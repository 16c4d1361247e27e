// Package report builds the weapons declaration (denuncia di detenzione
// armi) of a holder and the CSV exports of the registry.
package report

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/textnorm"
)

// NotAvailable fills fields the declaration cannot leave blank.
const NotAvailable = "N/D"

// DefaultStation heads the declaration when none is configured.
const DefaultStation = "COMANDO STAZIONE CARABINIERI"

// DateLayout is the document date format.
const DateLayout = "02/01/2006"

// categoryOrder ranks weapon categories in the declaration. Unlisted
// categories come last.
var categoryOrder = map[string]int{
	model.CategoryHunting: 1,
	model.CategorySport:   2,
	model.CategoryCommon:  3,
	model.CategoryAntique: 4,
}

// Options carries the parts of a declaration that do not come from the
// registry.
type Options struct {
	Station  string
	Operator string
	Now      time.Time
}

// Denuncia is the data rendered into a declaration.
type Denuncia struct {
	Station string

	LastName      string
	FirstName     string
	Sex           string
	FiscalCode    string
	BirthDate     string
	BirthPlace    string
	BirthProvince string
	Phone         string

	Residence     model.Address
	ResidenceLine string
	Storage       model.Address
	StorageLine   string

	LicenseType     string
	LicenseNumber   string
	LicenseIssuedOn string
	LicenseIssuer   string

	Weapons    []WeaponLine
	Categories []Category

	Date      string
	Timestamp string
	Operator  string
}

// Category groups the weapons of one category.
type Category struct {
	Name    string
	Weapons []WeaponLine
}

// Count returns the number of weapons in c.
func (c Category) Count() int { return len(c.Weapons) }

// WeaponLine is one weapon as printed in the declaration.
type WeaponLine struct {
	ID           int64
	Kind         string
	Brand        string
	Model        string
	Serial       string
	Caliber      string
	Notes        string
	Category     string
	BarrelLength string
	BarrelCount  string
	Action       string
	Loading      string
	LongShort    string
	Type         string
	Description  string
}

// WeaponCount returns the number of declared weapons.
func (d *Denuncia) WeaponCount() int { return len(d.Weapons) }

// FullName returns "LAST FIRST".
func (d *Denuncia) FullName() string {
	return textnorm.Clean(d.LastName + " " + d.FirstName)
}

// BuildDenuncia prepares the declaration of h for weapons. Weapons are listed
// by category, brand and model.
func BuildDenuncia(h *model.Holder, weapons []model.Weapon, opts Options) *Denuncia {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	station := textnorm.Clean(opts.Station)
	if station == "" {
		station = DefaultStation
	}

	d := &Denuncia{
		Station:         station,
		LastName:        h.LastName,
		FirstName:       h.FirstName,
		Sex:             orDefault(h.Sex, model.SexMale),
		FiscalCode:      h.FiscalCode,
		BirthDate:       h.BirthDate,
		BirthPlace:      h.BirthPlace,
		BirthProvince:   h.BirthProvince,
		Phone:           h.Phone,
		Residence:       h.Residence,
		ResidenceLine:   h.Residence.Line(),
		Storage:         h.Storage.Address,
		StorageLine:     h.Storage.Line(),
		LicenseType:     orDefault(h.License.Type, model.LicenseNone),
		LicenseNumber:   orDefault(h.License.Number, NotAvailable),
		LicenseIssuedOn: orDefault(h.License.IssuedOn, NotAvailable),
		LicenseIssuer:   orDefault(h.License.Issuer, NotAvailable),
		Date:            opts.Now.Format(DateLayout),
		Timestamp:       opts.Now.Format("2006-01-02 15:04:05"),
		Operator:        opts.Operator,
	}

	for i := range weapons {
		d.Weapons = append(d.Weapons, newWeaponLine(&weapons[i]))
	}
	slices.SortStableFunc(d.Weapons, func(a, b WeaponLine) int {
		return cmp.Or(
			strings.Compare(a.Category, b.Category),
			strings.Compare(a.Brand, b.Brand),
			strings.Compare(a.Model, b.Model),
		)
	})

	byCategory := make(map[string][]WeaponLine)
	for _, line := range d.Weapons {
		byCategory[line.Category] = append(byCategory[line.Category], line)
	}
	for name, lines := range byCategory {
		d.Categories = append(d.Categories, Category{Name: name, Weapons: lines})
	}
	slices.SortFunc(d.Categories, func(a, b Category) int {
		return cmp.Or(
			cmp.Compare(rank(a.Name), rank(b.Name)),
			strings.Compare(a.Name, b.Name),
		)
	})
	return d
}

func newWeaponLine(w *model.Weapon) WeaponLine {
	l := WeaponLine{
		ID:           w.ID,
		Kind:         orDefault(w.Kind, NotAvailable),
		Brand:        orDefault(w.Brand, NotAvailable),
		Model:        orDefault(w.Model, NotAvailable),
		Serial:       orDefault(w.Serial, NotAvailable),
		Caliber:      orDefault(w.Caliber, NotAvailable),
		Notes:        w.Notes,
		Category:     NormalizeCategory(w.Category),
		BarrelLength: orDefault(w.BarrelLength, NotAvailable),
		BarrelCount:  orDefault(w.BarrelCount, "1"),
		Action:       orDefault(w.Action, NotAvailable),
		Loading:      orDefault(w.Loading, NotAvailable),
		LongShort:    orDefault(w.LongShort, model.LengthShort),
		Type:         orDefault(w.Type, NotAvailable),
	}

	desc := l.Kind + " " + l.Brand + " " + l.Model
	if l.Caliber != NotAvailable {
		desc += " cal. " + l.Caliber
	}
	if l.Notes != "" {
		desc += " - " + l.Notes
	}
	l.Description = desc
	return l
}

// NormalizeCategory maps blank and N/D categories to ALTRA CATEGORIA.
func NormalizeCategory(category string) string {
	c := textnorm.Clean(category)
	if c == "" || c == NotAvailable {
		return model.CategoryOther
	}
	return c
}

func rank(category string) int {
	if r, ok := categoryOrder[category]; ok {
		return r
	}
	return 99
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// FileName returns the suggested name of the declaration document of h.
func FileName(h *model.Holder, now time.Time, ext string) string {
	name := "Denuncia_Armi_" + fileSafe(h.LastName) + "_" + fileSafe(h.FirstName) + "_" + now.Format("02_01_2006")
	return name + ext
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, textnorm.Fold(textnorm.Clean(s)))
}
