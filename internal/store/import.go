package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erazemk/armeria/internal/model"
)

// ImportBatch is a registry read from another database. IDs are the source
// IDs; they are remapped on insert. Movement holder IDs that do not match an
// imported holder are dropped, keeping only the snapshot.
type ImportBatch struct {
	Municipalities []model.Municipality
	Provinces      []model.Province
	Holders        []model.Holder
	Weapons        []model.Weapon
	Movements      []model.Movement
}

// ImportResult counts what ImportRegistry stored.
type ImportResult struct {
	Municipalities int `json:"municipalities"`
	Holders        int `json:"holders"`
	Weapons        int `json:"weapons"`
	RemovedWeapons int `json:"removed_weapons"`
	Movements      int `json:"movements"`
	// Skipped describes every record that could not be imported.
	Skipped []string `json:"skipped,omitempty"`
}

func (r *ImportResult) skip(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("import record skipped", "reason", msg)
	r.Skipped = append(r.Skipped, msg)
}

// ImportRegistry writes b in one transaction. Records that break a registry
// rule are skipped and reported; any other error aborts the whole import.
// Movements whose weapon is not in b.Weapons recreate it as a removed weapon
// so its history is kept. A weapon whose latest movement is an ELIMINAZIONE
// is imported as removed.
func ImportRegistry(ctx context.Context, db *sql.DB, b *ImportBatch) (*ImportResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res := &ImportResult{}

	if len(b.Municipalities) > 0 {
		if res.Municipalities, err = replaceMunicipalities(ctx, tx, b.Municipalities, b.Provinces); err != nil {
			return nil, err
		}
	}

	holders := make(map[int64]*model.Holder, len(b.Holders))
	for i := range b.Holders {
		h := b.Holders[i]
		srcID := h.ID
		id, err := insertHolder(ctx, tx, &h)
		if errors.Is(err, ErrInvalidInput) {
			res.skip("holder %d: %v", srcID, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("importing holder %d: %w", srcID, err)
		}
		h.ID = id
		holders[srcID] = &h
		res.Holders++
	}

	weapons := make(map[int64]int64, len(b.Weapons))
	for i := range b.Weapons {
		w := b.Weapons[i]
		srcID := w.ID
		holder, ok := holders[w.HolderID]
		if !ok {
			res.skip("weapon %d: unknown holder %d", srcID, w.HolderID)
			continue
		}
		id, err := insertWeapon(ctx, tx, &w, holder)
		if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrDuplicateSerial) {
			res.skip("weapon %d: %v", srcID, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("importing weapon %d: %w", srcID, err)
		}
		weapons[srcID] = id
		res.Weapons++
	}

	mapHolder := func(id *int64) *int64 {
		if id == nil {
			return nil
		}
		if h, ok := holders[*id]; ok {
			return &h.ID
		}
		return nil
	}

	// Latest movement per imported weapon; on equal dates the later one in
	// b.Movements wins.
	type lastMovement struct{ date, kind string }
	latest := make(map[int64]lastMovement)

	for i := range b.Movements {
		m := b.Movements[i]
		srcID := m.ID
		if err := validateDate(m.Date); err != nil {
			res.skip("movement %d: %v", srcID, err)
			continue
		}
		if !model.IsTransferKind(m.Kind) && m.Kind != model.MovementAcquisition && m.Kind != model.MovementRemoval {
			m.Kind = model.MovementOther
		}
		m.FromHolderID = mapHolder(m.FromHolderID)
		m.ToHolderID = mapHolder(m.ToHolderID)

		weaponID, ok := weapons[m.WeaponID]
		if !ok {
			owner := m.FromHolderID
			if owner == nil {
				owner = m.ToHolderID
			}
			if owner == nil {
				res.skip("movement %d: weapon %d and its holders are unknown", srcID, m.WeaponID)
				continue
			}
			if weaponID, err = insertRemovedWeapon(ctx, tx, *owner, m.Weapon); err != nil {
				return nil, fmt.Errorf("importing movement %d: %w", srcID, err)
			}
			weapons[m.WeaponID] = weaponID
			res.RemovedWeapons++
		}
		m.WeaponID = weaponID

		if _, err := insertMovement(ctx, tx, &m); err != nil {
			return nil, fmt.Errorf("importing movement %d: %w", srcID, err)
		}
		res.Movements++
		if l, ok := latest[weaponID]; !ok || m.Date >= l.date {
			latest[weaponID] = lastMovement{date: m.Date, kind: m.Kind}
		}
	}

	for weaponID, l := range latest {
		if l.kind != model.MovementRemoval {
			continue
		}
		removed, err := removeWeapon(ctx, tx, weaponID)
		if err != nil {
			return nil, fmt.Errorf("importing removal of weapon %d: %w", weaponID, err)
		}
		if removed {
			res.RemovedWeapons++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return res, nil
}

// insertRemovedWeapon records a weapon known only from a movement snapshot.
func insertRemovedWeapon(ctx context.Context, q querier, holderID int64, s model.WeaponSnapshot) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO armi (id_detentore, tipo_arma, marca, modello, matricola, calibro, categoria, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		holderID, s.Kind, s.Brand, s.Model, s.Serial, s.Caliber, s.Category,
	)
	if err != nil {
		return 0, fmt.Errorf("recording removed weapon: %w", err)
	}
	return result.LastInsertId()
}
