package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/textnorm"
)

// holderColumnNames lists the writable columns of detentori in the order of
// holderArgs and holderDest.
var holderColumnNames = append(append([]string{
	"nome", "cognome", "sesso", "data_nascita", "luogo_nascita", "sigla_provincia_nascita",
	"codice_fiscale", "fascicolo_personale",
	"comune_residenza", "sigla_provincia_residenza", "tipo_via", "via", "civico", "telefono",
	"tipologia_titolo", "numero_porto_armi", "ente_rilascio", "provincia_ente_rilascio", "data_rilascio",
}, storageColumnNames...),
	"tipo_documento", "numero_documento", "data_rilascio_documento",
	"ente_rilascio_documento", "comune_ente_rilascio_documento",
)

var holderSelect = `SELECT d.id, ` + columns("d", holderColumnNames) + `,
        d.created_at, d.updated_at, d.deleted_at,
        (SELECT COUNT(*) FROM armi a WHERE a.id_detentore = d.id AND a.deleted_at IS NULL)
 FROM detentori d`

func holderArgs(h *model.Holder) []any {
	args := []any{
		h.FirstName, h.LastName, h.Sex, h.BirthDate, h.BirthPlace, h.BirthProvince,
		h.FiscalCode, h.FileNumber,
		h.Residence.Municipality, h.Residence.Province, h.Residence.StreetType,
		h.Residence.Street, h.Residence.Number, h.Phone,
		h.License.Type, h.License.Number, h.License.Issuer, h.License.IssuerProvince, h.License.IssuedOn,
	}
	args = append(args, storageArgs(h.Storage)...)
	return append(args,
		h.Document.Type, h.Document.Number, h.Document.IssuedOn,
		h.Document.Issuer, h.Document.IssuerMunicipality,
	)
}

func scanHolder(s scanner) (*model.Holder, error) {
	h := &model.Holder{}
	dest := []any{
		&h.ID,
		&h.FirstName, &h.LastName, &h.Sex, &h.BirthDate, &h.BirthPlace, &h.BirthProvince,
		&h.FiscalCode, &h.FileNumber,
		&h.Residence.Municipality, &h.Residence.Province, &h.Residence.StreetType,
		&h.Residence.Street, &h.Residence.Number, &h.Phone,
		&h.License.Type, &h.License.Number, &h.License.Issuer, &h.License.IssuerProvince, &h.License.IssuedOn,
	}
	dest = append(dest, storageDest(&h.Storage)...)
	dest = append(dest,
		&h.Document.Type, &h.Document.Number, &h.Document.IssuedOn,
		&h.Document.Issuer, &h.Document.IssuerMunicipality,
		&h.CreatedAt, &h.UpdatedAt, &h.DeletedAt, &h.WeaponCount,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return h, nil
}

// prepareHolder normalizes h, checks required fields and fills province
// siglas from the municipalities.
func prepareHolder(ctx context.Context, q querier, h *model.Holder) error {
	h.Normalize()
	if h.FirstName == "" || h.LastName == "" {
		return fmt.Errorf("%w: first and last name required", ErrInvalidInput)
	}
	if h.Sex != "" && h.Sex != model.SexMale && h.Sex != model.SexFemale {
		return fmt.Errorf("%w: sex must be M or F", ErrInvalidInput)
	}

	for _, c := range []struct {
		municipality string
		province     *string
	}{
		{h.BirthPlace, &h.BirthProvince},
		{h.Residence.Municipality, &h.Residence.Province},
		{h.Storage.Municipality, &h.Storage.Province},
	} {
		if err := cascadeProvince(ctx, q, c.municipality, c.province); err != nil {
			return err
		}
	}
	// Residence province may have changed after the storage copy.
	h.Storage.Sync(h.Residence)
	return nil
}

// CreateHolder creates a new holder.
func CreateHolder(ctx context.Context, db *sql.DB, h *model.Holder) (*model.Holder, error) {
	id, err := insertHolder(ctx, db, h)
	if err != nil {
		return nil, err
	}
	return GetHolder(ctx, db, id)
}

func insertHolder(ctx context.Context, q querier, h *model.Holder) (int64, error) {
	// A new holder without a storage location keeps weapons at home.
	if h.Storage.Kind == "" && h.Storage.Address.IsZero() {
		h.Storage.SameAsResidence = true
	}
	if err := prepareHolder(ctx, q, h); err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO detentori (`+columns("", holderColumnNames)+`)
		 VALUES (`+placeholders(len(holderColumnNames))+`)`,
		holderArgs(h)...,
	)
	if err != nil {
		return 0, fmt.Errorf("creating holder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting holder id: %w", err)
	}
	return id, nil
}

// GetHolder returns an active holder by ID.
func GetHolder(ctx context.Context, db *sql.DB, id int64) (*model.Holder, error) {
	return getHolder(ctx, db, id)
}

func getHolder(ctx context.Context, q querier, id int64) (*model.Holder, error) {
	h, err := scanHolder(q.QueryRowContext(ctx,
		holderSelect+` WHERE d.id = ? AND d.deleted_at IS NULL`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting holder: %w", err)
	}
	return h, nil
}

// HolderFilter narrows ListHolders. Empty fields match everything; set
// fields match as case-insensitive substrings.
type HolderFilter struct {
	LastName     string
	FirstName    string
	FiscalCode   string
	Municipality string
}

// ListHolders returns active holders ordered by last and first name.
func ListHolders(ctx context.Context, db *sql.DB, f HolderFilter) ([]model.Holder, error) {
	query := holderSelect + ` WHERE d.deleted_at IS NULL`
	var args []any

	for _, c := range []struct {
		column, value string
	}{
		{"d.cognome", f.LastName},
		{"d.nome", f.FirstName},
		{"d.codice_fiscale", f.FiscalCode},
		{"d.comune_residenza", f.Municipality},
	} {
		if v := textnorm.Clean(c.value); v != "" {
			query += ` AND ` + c.column + ` LIKE ? ESCAPE '\'`
			args = append(args, likePattern(v))
		}
	}
	query += ` ORDER BY d.cognome, d.nome, d.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing holders: %w", err)
	}
	defer rows.Close()

	var holders []model.Holder
	for rows.Next() {
		h, err := scanHolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning holder: %w", err)
		}
		holders = append(holders, *h)
	}
	return holders, rows.Err()
}

// FindHoldersByName returns active holders whose "LAST FIRST" name equals
// fullName, ignoring case and extra spaces.
func FindHoldersByName(ctx context.Context, db *sql.DB, fullName string) ([]model.Holder, error) {
	rows, err := db.QueryContext(ctx,
		holderSelect+` WHERE d.deleted_at IS NULL AND d.cognome || ' ' || d.nome = ?
		 ORDER BY d.id`, textnorm.Clean(fullName),
	)
	if err != nil {
		return nil, fmt.Errorf("finding holders by name: %w", err)
	}
	defer rows.Close()

	var holders []model.Holder
	for rows.Next() {
		h, err := scanHolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning holder: %w", err)
		}
		holders = append(holders, *h)
	}
	return holders, rows.Err()
}

// UpdateHolder replaces a holder's data. Weapons whose storage follows the
// holder's residence are updated in the same transaction.
func UpdateHolder(ctx context.Context, db *sql.DB, h *model.Holder) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := prepareHolder(ctx, tx, h); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE detentori SET `+assignments(holderColumnNames)+`, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		append(holderArgs(h), h.ID)...,
	)
	if err != nil {
		return fmt.Errorf("updating holder: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	r := h.Residence
	_, err = tx.ExecContext(ctx,
		`UPDATE armi SET comune_detenzione = ?, sigla_provincia_detenzione = ?,
		        tipo_via_detenzione = ?, via_detenzione = ?, civico_detenzione = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id_detentore = ? AND detenzione_come_residenza = 1 AND deleted_at IS NULL`,
		r.Municipality, r.Province, r.StreetType, r.Street, r.Number, h.ID,
	)
	if err != nil {
		return fmt.Errorf("syncing weapon storage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing holder update: %w", err)
	}
	return nil
}

// DeleteHolder soft-deletes a holder. Fails if the holder holds any weapon.
func DeleteHolder(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM armi WHERE id_detentore = ? AND deleted_at IS NULL`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking holder weapons: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d registered", ErrHolderHasWeapons, count)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE detentori SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting holder: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing holder deletion: %w", err)
	}
	return nil
}

// GetHolderWeapons returns the active weapons of a holder.
func GetHolderWeapons(ctx context.Context, db *sql.DB, holderID int64) ([]model.Weapon, error) {
	return SearchWeapons(ctx, db, WeaponFilter{HolderID: holderID})
}
