package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/textnorm"
)

var movementColumnNames = append(append(append([]string{
	"id_arma", "id_cedente", "id_destinatario", "tipo_movimento", "data_movimento", "note",
	"arma_tipo", "arma_marca", "arma_modello", "arma_matricola", "arma_calibro", "arma_categoria",
}, prefixed("cedente_", partyColumnNames)...), prefixed("destinatario_", partyColumnNames)...),
	"registrato_da",
)

var movementSelect = `SELECT t.id, ` + columns("t", movementColumnNames) + `,
        t.registrato_il, COALESCE(u.username, '')
 FROM trasferimenti t
 LEFT JOIN users u ON u.id = t.registrato_da`

func movementArgs(m *model.Movement) []any {
	args := []any{
		m.WeaponID, m.FromHolderID, m.ToHolderID, m.Kind, m.Date, m.Notes,
		m.Weapon.Kind, m.Weapon.Brand, m.Weapon.Model, m.Weapon.Serial, m.Weapon.Caliber, m.Weapon.Category,
	}
	args = append(args, partyArgs(m.From)...)
	args = append(args, partyArgs(m.To)...)
	return append(args, m.RecordedBy)
}

func scanMovement(s scanner) (*model.Movement, error) {
	m := &model.Movement{}
	dest := []any{
		&m.ID,
		&m.WeaponID, &m.FromHolderID, &m.ToHolderID, &m.Kind, &m.Date, &m.Notes,
		&m.Weapon.Kind, &m.Weapon.Brand, &m.Weapon.Model, &m.Weapon.Serial, &m.Weapon.Caliber, &m.Weapon.Category,
	}
	dest = append(dest, partyDest(&m.From)...)
	dest = append(dest, partyDest(&m.To)...)
	dest = append(dest, &m.RecordedBy, &m.RecordedAt, &m.RecordedByName)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return m, nil
}

func validateDate(date string) error {
	if _, err := time.Parse(model.MovementDateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, date)
	}
	return nil
}

func insertMovement(ctx context.Context, q querier, m *model.Movement) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO trasferimenti (`+columns("", movementColumnNames)+`)
		 VALUES (`+placeholders(len(movementColumnNames))+`)`,
		movementArgs(m)...,
	)
	if err != nil {
		return 0, fmt.Errorf("recording movement: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting movement id: %w", err)
	}
	return id, nil
}

// TransferRequest describes a change of ownership. Exactly one of ToHolderID
// and Recipient must be set; Recipient registers a new holder.
type TransferRequest struct {
	WeaponID   int64
	ToHolderID int64
	Recipient  *model.Holder
	Kind       string
	Date       string
	Notes      string
	RecordedBy *int64
}

// TransferWeapon moves a weapon to another holder. The movement record, the
// optional new recipient, the owner change and the refreshed transferor
// snapshot are written in one transaction.
func TransferWeapon(ctx context.Context, db *sql.DB, req TransferRequest) (*model.Movement, error) {
	req.Kind = textnorm.Clean(req.Kind)
	if !model.IsTransferKind(req.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMovement, req.Kind)
	}
	if req.Date == "" {
		req.Date = today()
	}
	if err := validateDate(req.Date); err != nil {
		return nil, err
	}
	if (req.ToHolderID > 0) == (req.Recipient != nil) {
		return nil, ErrMissingRecipient
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := getWeapon(ctx, tx, req.WeaponID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("weapon %d: %w", req.WeaponID, ErrNotFound)
	}
	from, err := getHolder(ctx, tx, w.HolderID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, fmt.Errorf("holder %d: %w", w.HolderID, ErrNotFound)
	}

	toID := req.ToHolderID
	if req.Recipient != nil {
		r := req.Recipient
		r.Normalize()
		if r.FirstName == "" || r.LastName == "" || r.BirthDate == "" || r.BirthPlace == "" {
			return nil, ErrMissingRecipientData
		}
		if r.License.Type == "" {
			r.License.Type = model.LicenseNone
		}
		if toID, err = insertHolder(ctx, tx, r); err != nil {
			return nil, err
		}
	}
	if toID == from.ID {
		return nil, ErrSameHolder
	}
	to, err := getHolder(ctx, tx, toID)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, fmt.Errorf("holder %d: %w", toID, ErrNotFound)
	}

	movementID, err := insertMovement(ctx, tx, &model.Movement{
		WeaponID:     w.ID,
		FromHolderID: &from.ID,
		ToHolderID:   &to.ID,
		Kind:         req.Kind,
		Date:         req.Date,
		Notes:        textnorm.Clean(req.Notes),
		Weapon:       w.Snapshot(),
		From:         from.Snapshot(),
		To:           to.Snapshot(),
		RecordedBy:   req.RecordedBy,
	})
	if err != nil {
		return nil, err
	}

	// The weapon now lives where the recipient keeps weapons, and its
	// transferor is the previous holder.
	storage := to.Storage
	storage.Sync(to.Residence)
	transferor := model.Transferor{Kind: model.TransferorPerson, PartySnapshot: from.Snapshot()}

	args := []any{to.ID, transferor.Kind}
	args = append(args, partyArgs(transferor.PartySnapshot)...)
	args = append(args, storageArgs(storage)...)
	args = append(args, w.ID)
	result, err := tx.ExecContext(ctx,
		`UPDATE armi SET id_detentore = ?, tipo_cedente = ?, `+
			assignments(prefixed("cedente_", partyColumnNames))+`, `+
			assignments(storageColumnNames)+`, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("updating weapon owner: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return nil, fmt.Errorf("weapon %d: %w", w.ID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transfer: %w", err)
	}
	return GetMovement(ctx, db, movementID)
}

// GetMovement returns a movement by ID.
func GetMovement(ctx context.Context, db *sql.DB, id int64) (*model.Movement, error) {
	m, err := scanMovement(db.QueryRowContext(ctx, movementSelect+` WHERE t.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting movement: %w", err)
	}
	return m, nil
}

// GetWeaponHistory returns all movements of a weapon, newest first. It also
// works for removed weapons.
func GetWeaponHistory(ctx context.Context, db *sql.DB, weaponID int64) ([]model.Movement, error) {
	return ListMovements(ctx, db, MovementFilter{WeaponID: weaponID})
}

// MovementFilter narrows ListMovements. Zero values match everything.
type MovementFilter struct {
	WeaponID int64
	HolderID int64
	Kind     string
	Limit    int
}

// ListMovements returns movements newest first.
func ListMovements(ctx context.Context, db *sql.DB, f MovementFilter) ([]model.Movement, error) {
	query := movementSelect + ` WHERE 1=1`
	var args []any

	if f.WeaponID > 0 {
		query += ` AND t.id_arma = ?`
		args = append(args, f.WeaponID)
	}
	if f.HolderID > 0 {
		query += ` AND (t.id_cedente = ? OR t.id_destinatario = ?)`
		args = append(args, f.HolderID, f.HolderID)
	}
	if k := textnorm.Clean(f.Kind); k != "" {
		query += ` AND t.tipo_movimento = ?`
		args = append(args, k)
	}

	query += ` ORDER BY t.data_movimento DESC, t.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		movements = append(movements, *m)
	}
	return movements, rows.Err()
}
