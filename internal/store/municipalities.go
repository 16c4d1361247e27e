package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/armeria/internal/codicefiscale"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/textnorm"
)

// ListMunicipalities returns municipalities whose name starts with prefix,
// ignoring case and accents. A limit <= 0 returns all matches.
func ListMunicipalities(ctx context.Context, db *sql.DB, prefix string, limit int) ([]model.Municipality, error) {
	query := `SELECT id, nome, sigla_provincia, codice_catastale, regione
	          FROM comuni WHERE chiave LIKE ? ESCAPE '\' ORDER BY nome`
	args := []any{escapeLike(textnorm.Key(prefix)) + "%"}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing municipalities: %w", err)
	}
	defer rows.Close()

	var out []model.Municipality
	for rows.Next() {
		var m model.Municipality
		if err := rows.Scan(&m.ID, &m.Name, &m.Province, &m.CadastralCode, &m.Region); err != nil {
			return nil, fmt.Errorf("scanning municipality: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMunicipality returns the municipality with the given name, ignoring case
// and accents.
func GetMunicipality(ctx context.Context, db *sql.DB, name string) (*model.Municipality, error) {
	return getMunicipality(ctx, db, name)
}

func getMunicipality(ctx context.Context, q querier, name string) (*model.Municipality, error) {
	key := textnorm.Key(name)
	if key == "" {
		return nil, nil
	}

	m := &model.Municipality{}
	err := q.QueryRowContext(ctx,
		`SELECT id, nome, sigla_provincia, codice_catastale, regione
		 FROM comuni WHERE chiave = ? ORDER BY id LIMIT 1`, key,
	).Scan(&m.ID, &m.Name, &m.Province, &m.CadastralCode, &m.Region)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting municipality: %w", err)
	}
	return m, nil
}

// ProvinceForMunicipality returns the province sigla of a municipality, or ""
// when the municipality is unknown.
func ProvinceForMunicipality(ctx context.Context, db *sql.DB, name string) (string, error) {
	m, err := getMunicipality(ctx, db, name)
	if err != nil || m == nil {
		return "", err
	}
	return m.Province, nil
}

// CadastralCode returns the cadastral code of a municipality, or "" when the
// municipality is unknown.
func CadastralCode(ctx context.Context, db *sql.DB, name string) (string, error) {
	m, err := getMunicipality(ctx, db, name)
	if err != nil || m == nil {
		return "", err
	}
	return m.CadastralCode, nil
}

// CadastralLookup adapts the municipality table to fiscal code computation.
func CadastralLookup(db *sql.DB) codicefiscale.Lookup {
	return codicefiscale.LookupFunc(func(ctx context.Context, name string) (string, error) {
		return CadastralCode(ctx, db, name)
	})
}

// cascadeProvince sets *province from municipality. Known municipalities
// always win, an unknown one keeps what the caller typed, and an empty one
// clears the province.
func cascadeProvince(ctx context.Context, q querier, municipality string, province *string) error {
	if municipality == "" {
		*province = ""
		return nil
	}
	m, err := getMunicipality(ctx, q, municipality)
	if err != nil {
		return err
	}
	if m != nil && m.Province != "" {
		*province = m.Province
	}
	return nil
}

// ReplaceMunicipalities swaps the whole municipality table for ms and upserts
// provinces, in one transaction. It returns the number of municipalities
// stored.
func ReplaceMunicipalities(ctx context.Context, db *sql.DB, ms []model.Municipality, provinces []model.Province) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	count, err := replaceMunicipalities(ctx, tx, ms, provinces)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing municipalities: %w", err)
	}
	return count, nil
}

func replaceMunicipalities(ctx context.Context, tx *sql.Tx, ms []model.Municipality, provinces []model.Province) (int, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM comuni`); err != nil {
		return 0, fmt.Errorf("clearing municipalities: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO comuni (nome, chiave, sigla_provincia, codice_catastale, regione)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing municipality insert: %w", err)
	}
	defer insert.Close()

	count := 0
	for _, m := range ms {
		name := textnorm.Clean(m.Name)
		code := textnorm.Clean(m.CadastralCode)
		if name == "" || code == "" {
			continue
		}
		res, err := insert.ExecContext(ctx, name, textnorm.Key(name), textnorm.Clean(m.Province), code, textnorm.Clean(m.Region))
		if err != nil {
			return 0, fmt.Errorf("inserting municipality %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}

	for _, p := range provinces {
		code := textnorm.Clean(p.Code)
		if code == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO province (sigla, nome, regione) VALUES (?, ?, ?)
			 ON CONFLICT (sigla) DO UPDATE SET
			     nome = CASE WHEN excluded.nome <> '' THEN excluded.nome ELSE province.nome END,
			     regione = CASE WHEN excluded.regione <> '' THEN excluded.regione ELSE province.regione END`,
			code, textnorm.Clean(p.Name), textnorm.Clean(p.Region),
		)
		if err != nil {
			return 0, fmt.Errorf("upserting province %s: %w", code, err)
		}
	}
	return count, nil
}

// ListProvinces returns all provinces ordered by sigla.
func ListProvinces(ctx context.Context, db *sql.DB) ([]model.Province, error) {
	rows, err := db.QueryContext(ctx, `SELECT sigla, nome, regione FROM province ORDER BY sigla`)
	if err != nil {
		return nil, fmt.Errorf("listing provinces: %w", err)
	}
	defer rows.Close()

	var out []model.Province
	for rows.Next() {
		var p model.Province
		if err := rows.Scan(&p.Code, &p.Name, &p.Region); err != nil {
			return nil, fmt.Errorf("scanning province: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListBrands returns the weapon brand vocabulary.
func ListBrands(ctx context.Context, db *sql.DB) ([]model.Brand, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, nome FROM marche_armi ORDER BY nome`)
	if err != nil {
		return nil, fmt.Errorf("listing brands: %w", err)
	}
	defer rows.Close()

	var out []model.Brand
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, fmt.Errorf("scanning brand: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddBrand adds a brand to the vocabulary, returning the existing entry if
// the name is already known.
func AddBrand(ctx context.Context, db *sql.DB, name string) (*model.Brand, error) {
	name = textnorm.Clean(name)
	if name == "" {
		return nil, fmt.Errorf("%w: brand name required", ErrInvalidInput)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO marche_armi (nome) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("adding brand: %w", err)
	}

	b := &model.Brand{}
	err := db.QueryRowContext(ctx,
		`SELECT id, nome FROM marche_armi WHERE nome = ? COLLATE NOCASE`, name,
	).Scan(&b.ID, &b.Name)
	if err != nil {
		return nil, fmt.Errorf("reading brand: %w", err)
	}
	return b, nil
}
