package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestMigrateIdempotent(t *testing.T) {
	database := NewTestDB(t)

	if err := Migrate(database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	version, dirty, err := SchemaVersion(database)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if dirty {
		t.Error("expected clean schema")
	}
	if version < 2 {
		t.Errorf("expected version >= 2, got %d", version)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "fk.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	// Every pooled connection must enforce foreign keys.
	database.SetMaxIdleConns(0)
	for range 3 {
		var fk int
		if err := database.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("PRAGMA foreign_keys: %v", err)
		}
		if fk != 1 {
			t.Fatalf("expected foreign_keys=1, got %d", fk)
		}
	}
}

func TestTableColumns(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()

	cols, err := TableColumns(ctx, database, "armi")
	if err != nil {
		t.Fatalf("TableColumns: %v", err)
	}
	for _, c := range []string{"id", "id_detentore", "matricola", "tipo_cedente", "comune_detenzione"} {
		if !cols[c] {
			t.Errorf("expected column %q in armi", c)
		}
	}

	missing, err := TableColumns(ctx, database, "no_such_table")
	if err != nil {
		t.Fatalf("TableColumns on missing table: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("expected no columns, got %v", missing)
	}
}

func TestSeededBrands(t *testing.T) {
	database := NewTestDB(t)

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM marche_armi WHERE nome = 'BERETTA'`).Scan(&count); err != nil {
		t.Fatalf("counting brands: %v", err)
	}
	if count != 1 {
		t.Errorf("expected BERETTA to be seeded once, got %d", count)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	rw, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, stmt := range []string{`CREATE TABLE t (v TEXT)`, `PRAGMA journal_mode = DELETE`} {
		if _, err := rw.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	rw.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()

	if _, err := ro.Exec(`INSERT INTO t (v) VALUES ('x')`); err == nil {
		t.Error("expected write to fail on read-only database")
	}

	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error opening missing database")
	}
}

func TestMigrateRefusesLegacyRegistry(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "gestione_armi.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE detentori (
		ID_Detentore INTEGER PRIMARY KEY,
		Cognome TEXT,
		Nome TEXT,
		CodiceFiscale TEXT
	)`); err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}

	legacy, err := IsLegacy(context.Background(), database)
	if err != nil {
		t.Fatalf("IsLegacy: %v", err)
	}
	if !legacy {
		t.Fatal("expected legacy registry to be detected")
	}

	if err := Migrate(database); !errors.Is(err, ErrLegacySchema) {
		t.Fatalf("Migrate: expected ErrLegacySchema, got %v", err)
	}

	// The file is left as it was.
	cols, err := TableColumns(context.Background(), database, "schema_migrations")
	if err != nil {
		t.Fatalf("TableColumns: %v", err)
	}
	if len(cols) != 0 {
		t.Error("migration bookkeeping was written into the legacy file")
	}
	cols, err = TableColumns(context.Background(), database, "armi")
	if err != nil {
		t.Fatalf("TableColumns: %v", err)
	}
	if len(cols) != 0 {
		t.Error("new tables were created in the legacy file")
	}
}

func TestIsLegacyOnCurrentSchema(t *testing.T) {
	legacy, err := IsLegacy(context.Background(), NewTestDB(t))
	if err != nil {
		t.Fatalf("IsLegacy: %v", err)
	}
	if legacy {
		t.Error("current schema reported as legacy")
	}
}
