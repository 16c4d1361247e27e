package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/textnorm"
)

// weaponColumnNames lists the writable columns of armi, except id_detentore,
// in the order of weaponArgs and weaponDest.
var weaponColumnNames = append(append([]string{
	"tipo_arma", "marca", "modello", "tipologia", "matricola", "calibro",
	"matricola_canna", "lunghezza_canna", "numero_canne", "lunga_corta", "tipo_canna",
	"categoria", "funzionamento", "caricamento", "punzoni", "stato_produzione",
	"ex_ord_dem", "tipo_munizioni", "quantita_munizioni", "tipo_bossolo", "note",
	"tipo_cedente",
}, prefixed("cedente_", partyColumnNames)...), storageColumnNames...)

var weaponSelect = `SELECT a.id, a.id_detentore, ` + columns("a", weaponColumnNames) + `,
        a.image_mime, a.created_at, a.updated_at, a.deleted_at,
        COALESCE(d.cognome || ' ' || d.nome, '')
 FROM armi a
 LEFT JOIN detentori d ON d.id = a.id_detentore`

func weaponArgs(w *model.Weapon) []any {
	args := []any{
		w.Kind, w.Brand, w.Model, w.Type, w.Serial, w.Caliber,
		w.BarrelSerial, w.BarrelLength, w.BarrelCount, w.LongShort, w.BarrelType,
		w.Category, w.Action, w.Loading, w.ProofMarks, w.ProductionStatus,
		w.ExOrdDem, w.AmmoType, w.AmmoQuantity, w.CaseType, w.Notes,
		w.Transferor.Kind,
	}
	args = append(args, partyArgs(w.Transferor.PartySnapshot)...)
	return append(args, storageArgs(w.Storage)...)
}

func scanWeapon(s scanner) (*model.Weapon, error) {
	w := &model.Weapon{}
	dest := []any{
		&w.ID, &w.HolderID,
		&w.Kind, &w.Brand, &w.Model, &w.Type, &w.Serial, &w.Caliber,
		&w.BarrelSerial, &w.BarrelLength, &w.BarrelCount, &w.LongShort, &w.BarrelType,
		&w.Category, &w.Action, &w.Loading, &w.ProofMarks, &w.ProductionStatus,
		&w.ExOrdDem, &w.AmmoType, &w.AmmoQuantity, &w.CaseType, &w.Notes,
		&w.Transferor.Kind,
	}
	dest = append(dest, partyDest(&w.Transferor.PartySnapshot)...)
	dest = append(dest, storageDest(&w.Storage)...)
	dest = append(dest, &w.ImageMime, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt, &w.HolderName)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return w, nil
}

func prepareWeapon(ctx context.Context, q querier, w *model.Weapon, holder *model.Holder) error {
	w.Normalize()
	if w.Serial == "" {
		return fmt.Errorf("%w: serial number required", ErrInvalidInput)
	}

	w.Storage.Sync(holder.Residence)
	if !w.Storage.SameAsResidence {
		if err := cascadeProvince(ctx, q, w.Storage.Municipality, &w.Storage.Province); err != nil {
			return err
		}
	}

	t := &w.Transferor.PartySnapshot
	if err := cascadeProvince(ctx, q, t.Residence.Municipality, &t.Residence.Province); err != nil {
		return err
	}
	if t.BirthPlace != "" && t.BirthProvince == "" {
		if err := cascadeProvince(ctx, q, t.BirthPlace, &t.BirthProvince); err != nil {
			return err
		}
	}
	return nil
}

// checkSerial fails with ErrDuplicateSerial when another active weapon uses
// serial.
func checkSerial(ctx context.Context, q querier, serial string, exceptID int64) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM armi
		 WHERE upper(matricola) = upper(?) AND deleted_at IS NULL AND id <> ?`,
		serial, exceptID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking serial number: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	return nil
}

// serialConflict maps a violation of the active serial index, which a
// concurrent writer can still hit after checkSerial, to ErrDuplicateSerial.
func serialConflict(err error, serial string) error {
	if uniqueViolation(err, "idx_armi_matricola_active") {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	return err
}

// CreateWeapon registers a weapon for its holder and records the
// acquisition movement in the same transaction. Without an explicit storage
// location the weapon inherits the holder's.
func CreateWeapon(ctx context.Context, db *sql.DB, w *model.Weapon, date string, recordedBy *int64) (*model.Weapon, error) {
	if date == "" {
		date = today()
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	holder, err := getHolder(ctx, tx, w.HolderID)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, fmt.Errorf("holder %d: %w", w.HolderID, ErrNotFound)
	}

	id, err := insertWeapon(ctx, tx, w, holder)
	if err != nil {
		return nil, err
	}

	_, err = insertMovement(ctx, tx, &model.Movement{
		WeaponID:   id,
		ToHolderID: &holder.ID,
		Kind:       model.MovementAcquisition,
		Date:       date,
		Weapon:     w.Snapshot(),
		From:       w.Transferor.PartySnapshot,
		To:         holder.Snapshot(),
		RecordedBy: recordedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing weapon: %w", err)
	}
	return GetWeapon(ctx, db, id)
}

func insertWeapon(ctx context.Context, q querier, w *model.Weapon, holder *model.Holder) (int64, error) {
	if w.Storage.Address.IsZero() && !w.Storage.SameAsResidence {
		w.Storage = holder.Storage
	}
	if err := prepareWeapon(ctx, q, w, holder); err != nil {
		return 0, err
	}
	if err := checkSerial(ctx, q, w.Serial, 0); err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO armi (id_detentore, `+columns("", weaponColumnNames)+`)
		 VALUES (?, `+placeholders(len(weaponColumnNames))+`)`,
		append([]any{holder.ID}, weaponArgs(w)...)...,
	)
	if err != nil {
		return 0, fmt.Errorf("creating weapon: %w", serialConflict(err, w.Serial))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting weapon id: %w", err)
	}
	w.ID = id
	w.HolderID = holder.ID
	return id, nil
}

// GetWeapon returns an active weapon by ID.
func GetWeapon(ctx context.Context, db *sql.DB, id int64) (*model.Weapon, error) {
	return getWeapon(ctx, db, id)
}

func getWeapon(ctx context.Context, q querier, id int64) (*model.Weapon, error) {
	w, err := scanWeapon(q.QueryRowContext(ctx,
		weaponSelect+` WHERE a.id = ? AND a.deleted_at IS NULL`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting weapon: %w", err)
	}
	return w, nil
}

// FindWeaponBySerial returns the active weapon with the given serial
// number, ignoring case.
func FindWeaponBySerial(ctx context.Context, db *sql.DB, serial string) (*model.Weapon, error) {
	w, err := scanWeapon(db.QueryRowContext(ctx,
		weaponSelect+` WHERE upper(a.matricola) = ? AND a.deleted_at IS NULL`,
		textnorm.Clean(serial),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding weapon by serial: %w", err)
	}
	return w, nil
}

// UpdateWeapon replaces a weapon's data. Ownership only changes through
// TransferWeapon.
func UpdateWeapon(ctx context.Context, db *sql.DB, w *model.Weapon) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getWeapon(ctx, tx, w.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}
	holder, err := getHolder(ctx, tx, current.HolderID)
	if err != nil {
		return err
	}
	if holder == nil {
		return fmt.Errorf("holder %d: %w", current.HolderID, ErrNotFound)
	}

	if err := prepareWeapon(ctx, tx, w, holder); err != nil {
		return err
	}
	if err := checkSerial(ctx, tx, w.Serial, w.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE armi SET `+assignments(weaponColumnNames)+`, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		append(weaponArgs(w), w.ID)...,
	)
	if err != nil {
		return fmt.Errorf("updating weapon: %w", serialConflict(err, w.Serial))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing weapon update: %w", err)
	}
	return nil
}

// DeleteWeapon removes a weapon from the registry. It always records an
// ELIMINAZIONE movement with no recipient and then soft-deletes the weapon,
// in one transaction.
func DeleteWeapon(ctx context.Context, db *sql.DB, id int64, date, notes string, recordedBy *int64) (*model.Movement, error) {
	if date == "" {
		date = today()
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := getWeapon(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNotFound
	}

	m := &model.Movement{
		WeaponID:   w.ID,
		Kind:       model.MovementRemoval,
		Date:       date,
		Notes:      textnorm.Clean(notes),
		Weapon:     w.Snapshot(),
		RecordedBy: recordedBy,
	}
	holder, err := getHolder(ctx, tx, w.HolderID)
	if err != nil {
		return nil, err
	}
	if holder != nil {
		m.FromHolderID = &holder.ID
		m.From = holder.Snapshot()
	}

	movementID, err := insertMovement(ctx, tx, m)
	if err != nil {
		return nil, err
	}

	if _, err := removeWeapon(ctx, tx, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing weapon deletion: %w", err)
	}
	return GetMovement(ctx, db, movementID)
}

// removeWeapon soft-deletes an active weapon and reports whether it was
// active.
func removeWeapon(ctx context.Context, q querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE armi SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return false, fmt.Errorf("deleting weapon: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting weapon: %w", err)
	}
	return n > 0, nil
}

// WeaponFilter narrows SearchWeapons. Kind matches exactly; the other text
// fields match as case-insensitive substrings. Holder matches the holder's
// last name or "LAST FIRST".
type WeaponFilter struct {
	Brand    string
	Model    string
	Serial   string
	Caliber  string
	Kind     string
	Holder   string
	HolderID int64
	Category string
}

// SearchWeapons returns active weapons ordered by brand and model.
func SearchWeapons(ctx context.Context, db *sql.DB, f WeaponFilter) ([]model.Weapon, error) {
	query := weaponSelect + ` WHERE a.deleted_at IS NULL`
	var args []any

	for _, c := range []struct {
		column, value string
	}{
		{"a.marca", f.Brand},
		{"a.modello", f.Model},
		{"a.matricola", f.Serial},
		{"a.calibro", f.Caliber},
	} {
		if v := textnorm.Clean(c.value); v != "" {
			query += ` AND upper(` + c.column + `) LIKE ? ESCAPE '\'`
			args = append(args, likePattern(v))
		}
	}
	if v := textnorm.Clean(f.Kind); v != "" {
		query += ` AND a.tipo_arma = ?`
		args = append(args, v)
	}
	if v := textnorm.Clean(f.Category); v != "" {
		query += ` AND a.categoria = ?`
		args = append(args, v)
	}
	if v := textnorm.Clean(f.Holder); v != "" {
		query += ` AND (d.cognome LIKE ? ESCAPE '\' OR d.cognome || ' ' || d.nome LIKE ? ESCAPE '\')`
		args = append(args, likePattern(v), likePattern(v))
	}
	if f.HolderID > 0 {
		query += ` AND a.id_detentore = ?`
		args = append(args, f.HolderID)
	}
	query += ` ORDER BY a.marca, a.modello, a.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching weapons: %w", err)
	}
	defer rows.Close()

	var weapons []model.Weapon
	for rows.Next() {
		w, err := scanWeapon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning weapon: %w", err)
		}
		weapons = append(weapons, *w)
	}
	return weapons, rows.Err()
}

// SetWeaponImage sets a weapon's photo.
func SetWeaponImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE armi SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting weapon image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetWeaponImage returns a weapon's photo and its MIME type.
func GetWeaponImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM armi WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting weapon image: %w", err)
	}
	return image, mime, nil
}
