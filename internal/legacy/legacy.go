// Package legacy reads the database of the former desktop registry
// (gestione_armi.db) and imports it into the current schema.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/armeria/internal/comuni"
	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
	"github.com/erazemk/armeria/internal/textnorm"
)

// ErrNotLegacy is returned when the source has no legacy holder table.
var ErrNotLegacy = errors.New("not a legacy registry database")

const birthDateLayout = "02/01/2006"

// removedRecipient marks a movement that took the weapon out of the registry.
const removedRecipient = -1

var dateLayouts = []string{
	model.MovementDateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	birthDateLayout,
	"2/1/2006",
}

// Import reads the legacy database at src and writes it to dst.
func Import(ctx context.Context, src, dst *sql.DB) (*store.ImportResult, error) {
	batch, err := Read(ctx, src)
	if err != nil {
		return nil, err
	}
	slog.Info("legacy registry read",
		"holders", len(batch.Holders),
		"weapons", len(batch.Weapons),
		"movements", len(batch.Movements),
		"municipalities", len(batch.Municipalities),
	)
	return store.ImportRegistry(ctx, dst, batch)
}

// Read converts the legacy tables into an import batch. Missing optional
// tables and columns read as empty.
func Read(ctx context.Context, src *sql.DB) (*store.ImportBatch, error) {
	legacy, err := db.IsLegacy(ctx, src)
	if err != nil {
		return nil, err
	}
	if !legacy {
		return nil, ErrNotLegacy
	}

	b := &store.ImportBatch{}

	holders, err := readRows(ctx, src, "detentori")
	if err != nil {
		return nil, err
	}
	for _, r := range holders {
		b.Holders = append(b.Holders, holderFromRow(r))
	}

	weapons, err := readRows(ctx, src, "armi")
	if err != nil {
		return nil, err
	}
	for _, r := range weapons {
		b.Weapons = append(b.Weapons, weaponFromRow(r))
	}

	movements, err := readMovements(ctx, src)
	if err != nil {
		return nil, err
	}
	for i, r := range movements {
		b.Movements = append(b.Movements, movementFromRow(int64(i+1), r))
	}
	// Oldest first, so ids follow the order of events.
	slices.SortStableFunc(b.Movements, func(a, c model.Movement) int {
		return strings.Compare(a.Date, c.Date)
	})

	municipalities, err := readRows(ctx, src, "comuni")
	if err != nil {
		return nil, err
	}
	for _, r := range municipalities {
		b.Municipalities = append(b.Municipalities, model.Municipality{
			Name:          r.get("Denominazione in italiano", "Denominazione"),
			Province:      r.get("Sigla automobilistica", "Sigla"),
			CadastralCode: r.get("Codice Catastale del comune", "Codice Catastale"),
			Region:        r.get("Denominazione Regione", "Regione"),
		})
	}
	b.Provinces = comuni.Provinces(b.Municipalities)

	return b, nil
}

// row maps column names to text values; NULL reads as "".
type row map[string]string

// get returns the first non-empty value among names.
func (r row) get(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r[n]); v != "" {
			return v
		}
	}
	return ""
}

func (r row) id(names ...string) int64 {
	id, err := strconv.ParseInt(r.get(names...), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func readRows(ctx context.Context, src *sql.DB, table string) ([]row, error) {
	cols, err := db.TableColumns(ctx, src, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(cols))
	for c := range cols {
		names = append(names, c)
	}
	slices.Sort(names)

	exprs := make([]string, len(names))
	for i, n := range names {
		exprs[i] = "CAST(" + quoteIdent(n) + " AS TEXT)"
	}
	rows, err := src.QueryContext(ctx, "SELECT "+strings.Join(exprs, ", ")+" FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	var out []row
	values := make([]sql.NullString, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		r := make(row, len(names))
		for i, n := range names {
			r[n] = values[i].String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// readMovements reads MovimentiArma, or the older trasferimenti table keyed
// by ID_ArmaDetenuta.
func readMovements(ctx context.Context, src *sql.DB) ([]row, error) {
	for _, table := range []string{"MovimentiArma", "trasferimenti"} {
		cols, err := db.TableColumns(ctx, src, table)
		if err != nil {
			return nil, err
		}
		if cols["ID_ArmaDetenuta"] {
			return readRows(ctx, src, table)
		}
	}
	return nil, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// parseDate accepts the formats found in legacy rows.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// movementDate returns s as YYYY-MM-DD, or s unchanged when unparseable.
func movementDate(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format(model.MovementDateLayout)
	}
	return s
}

// personDate returns s as DD/MM/YYYY, or s unchanged when unparseable.
func personDate(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format(birthDateLayout)
	}
	return s
}

func holderFromRow(r row) model.Holder {
	h := model.Holder{
		ID:            r.id("ID_Detentore"),
		FirstName:     r.get("Nome"),
		LastName:      r.get("Cognome"),
		Sex:           r.get("Sesso"),
		BirthDate:     personDate(r.get("DataNascita")),
		BirthPlace:    r.get("LuogoNascita"),
		BirthProvince: r.get("SiglaProvinciaNascita"),
		FiscalCode:    r.get("CodiceFiscale"),
		FileNumber:    r.get("FascicoloPersonale"),
		Residence: model.Address{
			Municipality: r.get("ComuneResidenza"),
			Province:     r.get("SiglaProvinciaResidenza"),
			StreetType:   r.get("TipoVia"),
			Street:       r.get("Via"),
			Number:       r.get("Civico"),
		},
		Phone: r.get("Telefono"),
		License: model.License{
			Type:           r.get("TipologiaTitolo"),
			Number:         r.get("NumeroPortoArmi"),
			Issuer:         r.get("EnteRilascio"),
			IssuerProvince: r.get("ProvinciaEnteRilascio"),
			IssuedOn:       personDate(r.get("DataRilascio")),
		},
		Document: model.IDDocument{
			Type:               r.get("TipoDocumento"),
			Number:             r.get("NumeroDocumento"),
			IssuedOn:           personDate(r.get("DataRilascioDocumento")),
			Issuer:             r.get("EnteRilascioDocumento"),
			IssuerMunicipality: r.get("ComuneEnteRilascioDocumento"),
		},
	}
	if s := strings.ToUpper(h.Sex); strings.HasPrefix(s, "M") {
		h.Sex = model.SexMale
	} else if strings.HasPrefix(s, "F") {
		h.Sex = model.SexFemale
	} else {
		h.Sex = ""
	}

	storage := model.Address{
		Municipality: r.get("ComuneDetenzione"),
		Province:     r.get("SiglaProvinciaDetenzione"),
		StreetType:   r.get("TipoViaDetenzione"),
		Street:       r.get("ViaDetenzione"),
		Number:       r.get("CivicoDetenzione"),
	}
	storage.Normalize()
	residence := h.Residence
	residence.Normalize()
	if storage.IsZero() || storage == residence {
		h.Storage = model.StorageLocation{Kind: r.get("TipoLuogoDetenzione"), SameAsResidence: true}
	} else {
		h.Storage.Decouple(r.get("TipoLuogoDetenzione"), storage)
	}
	return h
}

func weaponFromRow(r row) model.Weapon {
	return model.Weapon{
		ID:               r.id("ID_ArmaDetenuta"),
		HolderID:         r.id("ID_Detentore"),
		Kind:             r.get("TipoArma"),
		Brand:            r.get("MarcaArma"),
		Model:            r.get("ModelloArma"),
		Type:             r.get("TipologiaArma"),
		Serial:           r.get("Matricola"),
		Caliber:          r.get("CalibroArma"),
		BarrelSerial:     r.get("MatricolaCanna"),
		BarrelLength:     r.get("LunghezzaCanna"),
		BarrelCount:      r.get("NumeroCanne"),
		LongShort:        r.get("ArmaLungaCorta"),
		BarrelType:       r.get("TipoCanna"),
		Category:         r.get("CategoriaArma"),
		Action:           r.get("FunzionamentoArma"),
		Loading:          r.get("CaricamentoArma"),
		ProofMarks:       r.get("PunzoniArma"),
		ProductionStatus: r.get("StatoProduzioneArma"),
		ExOrdDem:         r.get("ExOrdDem"),
		AmmoType:         r.get("TipoMunizioni"),
		AmmoQuantity:     r.get("QuantitaMunizioni"),
		CaseType:         r.get("TipoBossolo"),
		Notes:            r.get("NoteArma"),
		Transferor: model.Transferor{
			Kind: r.get("TipoCedente"),
			PartySnapshot: model.PartySnapshot{
				LastName:      r.get("CognomeCedente"),
				FirstName:     r.get("NomeCedente"),
				BirthDate:     personDate(r.get("DataNascitaCedente")),
				BirthPlace:    r.get("LuogoNascitaCedente"),
				BirthProvince: r.get("SiglaProvinciaNascitaCedente"),
				Residence: model.Address{
					Municipality: r.get("ComuneResidenzaCedente"),
					Province:     r.get("SiglaProvinciaResidenzaCedente"),
					StreetType:   r.get("TipoViaResidenzaCedente"),
					Street:       r.get("IndirizzoResidenzaCedente"),
					Number:       r.get("CivicoResidenzaCedente"),
				},
				Phone: r.get("TelefonoCedente"),
			},
		},
	}
}

func movementFromRow(seq int64, r row) model.Movement {
	m := model.Movement{
		ID:       seq,
		WeaponID: r.id("ID_ArmaDetenuta"),
		Kind:     textnorm.Clean(r.get("TipoMovimento", "MotivoTrasferimento")),
		Date:     movementDate(r.get("DataMovimento", "DataTrasferimento")),
		Notes:    textnorm.Clean(r.get("Note") + " " + r.get("AltroCampo")),
		Weapon: model.WeaponSnapshot{
			Kind:     textnorm.Clean(r.get("TipoArma")),
			Brand:    textnorm.Clean(r.get("MarcaArma")),
			Model:    textnorm.Clean(r.get("ModelloArma")),
			Serial:   textnorm.Clean(r.get("Matricola")),
			Caliber:  textnorm.Clean(r.get("CalibroArma")),
			Category: textnorm.Clean(r.get("CategoriaArma")),
		},
		From: model.PartySnapshot{
			LastName:   r.get("CognomeCedente"),
			FirstName:  r.get("NomeCedente"),
			BirthDate:  personDate(r.get("DataNascitaCedente")),
			BirthPlace: r.get("LuogoNascitaCedente"),
			FiscalCode: r.get("Cedente_CodiceFiscale"),
			Phone:      r.get("TelefonoCedente"),
		},
		To: model.PartySnapshot{
			LastName:   r.get("CognomeDestinatario", "Acquirente_Cognome"),
			FirstName:  r.get("NomeDestinatario", "Acquirente_Nome"),
			BirthDate:  personDate(r.get("DataNascitaDestinatario")),
			BirthPlace: r.get("LuogoNascitaDestinatario"),
			FiscalCode: r.get("Acquirente_CodiceFiscale"),
		},
	}
	m.From.Normalize()
	m.To.Normalize()
	if id := r.id("ID_Cedente"); id > 0 {
		m.FromHolderID = &id
	}
	switch id := r.id("ID_Destinatario", "ID_Detentore_Ricevente", "ID_Detentore"); {
	case id == removedRecipient:
		m.Kind = model.MovementRemoval
	case id > 0:
		m.ToHolderID = &id
	}
	return m
}
