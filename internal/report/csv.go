package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/erazemk/armeria/internal/model"
)

// CSVSeparator matches what Italian spreadsheet software expects.
const CSVSeparator = ';'

var holderHeader = []string{
	"ID", "Cognome", "Nome", "Sesso", "DataNascita", "LuogoNascita", "SiglaProvinciaNascita",
	"CodiceFiscale", "ComuneResidenza", "SiglaProvinciaResidenza", "TipoVia", "Via", "Civico",
	"Telefono", "TipologiaTitolo", "NumeroPortoArmi", "DataRilascio", "EnteRilascio", "NumeroArmi",
}

var weaponHeader = []string{
	"ID", "Detentore", "TipoArma", "Marca", "Modello", "Matricola", "Calibro", "Categoria",
	"LungaCorta", "NumeroCanne", "ComuneDetenzione", "SiglaProvinciaDetenzione", "Note",
}

var movementHeader = []string{
	"ID", "Data", "TipoMovimento", "Matricola", "Arma", "Cedente", "Destinatario", "Note", "RegistratoDa",
}

// WriteHoldersCSV writes holders as semicolon separated values.
func WriteHoldersCSV(w io.Writer, holders []model.Holder) error {
	rows := make([][]string, 0, len(holders))
	for _, h := range holders {
		rows = append(rows, []string{
			strconv.FormatInt(h.ID, 10), h.LastName, h.FirstName, h.Sex, h.BirthDate, h.BirthPlace,
			h.BirthProvince, h.FiscalCode, h.Residence.Municipality, h.Residence.Province,
			h.Residence.StreetType, h.Residence.Street, h.Residence.Number, h.Phone,
			h.License.Type, h.License.Number, h.License.IssuedOn, h.License.Issuer,
			strconv.Itoa(h.WeaponCount),
		})
	}
	return writeCSV(w, holderHeader, rows)
}

// WriteWeaponsCSV writes weapons as semicolon separated values.
func WriteWeaponsCSV(w io.Writer, weapons []model.Weapon) error {
	rows := make([][]string, 0, len(weapons))
	for _, a := range weapons {
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10), a.HolderName, a.Kind, a.Brand, a.Model, a.Serial, a.Caliber,
			NormalizeCategory(a.Category), a.LongShort, a.BarrelCount,
			a.Storage.Municipality, a.Storage.Province, a.Notes,
		})
	}
	return writeCSV(w, weaponHeader, rows)
}

// WriteMovementsCSV writes the movement log as semicolon separated values.
func WriteMovementsCSV(w io.Writer, movements []model.Movement) error {
	rows := make([][]string, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10), m.Date, m.Kind, m.Weapon.Serial,
			m.Weapon.Kind + " " + m.Weapon.Brand + " " + m.Weapon.Model,
			m.From.FullName(), m.To.FullName(), m.Notes, m.RecordedByName,
		})
	}
	return writeCSV(w, movementHeader, rows)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	cw.Comma = CSVSeparator
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	return nil
}
