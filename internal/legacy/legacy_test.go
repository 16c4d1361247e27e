package legacy

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

var legacySchema = []string{
	`CREATE TABLE detentori (
		ID_Detentore INTEGER PRIMARY KEY, Nome TEXT, Cognome TEXT, DataNascita TEXT,
		LuogoNascita TEXT, Sesso TEXT, ComuneResidenza TEXT, TipoVia TEXT, Via TEXT,
		Civico TEXT, TipoLuogoDetenzione TEXT, ComuneDetenzione TEXT, ViaDetenzione TEXT,
		TipologiaTitolo TEXT, DataRilascio TEXT)`,
	`CREATE TABLE armi (
		ID_ArmaDetenuta INTEGER PRIMARY KEY, ID_Detentore INTEGER, TipoArma TEXT,
		MarcaArma TEXT, ModelloArma TEXT, Matricola TEXT, CalibroArma TEXT,
		CategoriaArma TEXT, TipoCedente TEXT, CognomeCedente TEXT, NomeCedente TEXT)`,
	`CREATE TABLE MovimentiArma (
		ID_ArmaDetenuta INTEGER, TipoArma TEXT, MarcaArma TEXT, Matricola TEXT,
		DataTrasferimento TEXT, MotivoTrasferimento TEXT, DataMovimento TEXT,
		TipoMovimento TEXT, ID_Cedente INTEGER, ID_Destinatario INTEGER,
		CognomeCedente TEXT, NomeCedente TEXT, Acquirente_Cognome TEXT,
		Acquirente_Nome TEXT, CognomeDestinatario TEXT, NomeDestinatario TEXT, Note TEXT)`,
	`CREATE TABLE comuni (
		"Denominazione in italiano" TEXT, "Sigla automobilistica" TEXT,
		"Codice Catastale del comune" TEXT, "Denominazione Regione" TEXT)`,

	`INSERT INTO detentori VALUES
		(1, 'Mario', 'Rossi', '1985-12-10', 'San Giuliano Terme', 'M', 'Pisa', 'Via', 'Roma', '1', '', '', '', 'PORTO DI FUCILE', '2020-05-04'),
		(2, 'Anna', 'Verdi', '01/01/1990', 'Roma', 'F', 'Lucca', 'Via', 'Fillungo', '7', 'ALTRO LUOGO', 'Pisa', 'Mura', '', NULL)`,
	`INSERT INTO armi VALUES
		(10, 2, 'Pistola', 'Beretta', '92FS', 'ab123', '9x21', 'ARMA SPORTIVA', 'PERSONA FISICA', 'Rossi', 'Mario')`,
	`INSERT INTO MovimentiArma VALUES
		(10, 'Pistola', 'Beretta', 'AB123', '2024-03-01', 'VENDITA', '2024-03-01', 'VENDITA', 1, 2, 'Rossi', 'Mario', 'Verdi', 'Anna', 'Verdi', 'Anna', 'pagata'),
		(11, 'Pistola', 'Glock', 'zz9', '10/01/2023', 'DONO', NULL, NULL, 1, 2, 'Rossi', 'Mario', NULL, NULL, 'Verdi', 'Anna', ''),
		(12, 'Fucile', 'Benelli', 'f77', '2022-06-30', NULL, NULL, 'ALTRO', 1, -1, 'Rossi', 'Mario', NULL, NULL, NULL, NULL, 'rottamato')`,
	`INSERT INTO comuni VALUES
		('Pisa', 'PI', 'G702', 'Toscana'),
		('San Giuliano Terme', 'PI', 'A562', 'Toscana'),
		('Lucca', 'LU', 'E715', 'Toscana'),
		('Roma', 'RM', 'H501', 'Lazio')`,
	// The desktop application never switched the file to WAL.
	`PRAGMA journal_mode = DELETE`,
}

func newLegacyDB(t *testing.T, extra ...string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gestione_armi.db")

	rw, err := db.Open(path)
	require.NoError(t, err)
	for _, stmt := range append(slices.Clone(legacySchema), extra...) {
		_, err := rw.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, rw.Close())

	src, err := db.OpenReadOnly(path)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	src := newLegacyDB(t)
	dst := db.NewTestDB(t)

	res, err := Import(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Municipalities)
	assert.Equal(t, 2, res.Holders)
	assert.Equal(t, 1, res.Weapons)
	assert.Equal(t, 2, res.RemovedWeapons)
	assert.Equal(t, 3, res.Movements)
	assert.Empty(t, res.Skipped)

	rossi, err := store.FindHoldersByName(ctx, dst, "ROSSI MARIO")
	require.NoError(t, err)
	require.Len(t, rossi, 1)
	assert.Equal(t, "10/12/1985", rossi[0].BirthDate)
	assert.Equal(t, "PI", rossi[0].BirthProvince)
	assert.Equal(t, "04/05/2020", rossi[0].License.IssuedOn)
	assert.True(t, rossi[0].Storage.SameAsResidence)
	assert.Equal(t, "PISA", rossi[0].Storage.Municipality)

	verdi, err := store.FindHoldersByName(ctx, dst, "VERDI ANNA")
	require.NoError(t, err)
	require.Len(t, verdi, 1)
	assert.Equal(t, "LU", verdi[0].Residence.Province)
	assert.False(t, verdi[0].Storage.SameAsResidence)
	assert.Equal(t, "PISA", verdi[0].Storage.Municipality)
	assert.Equal(t, "PI", verdi[0].Storage.Province)

	weapons, err := store.GetHolderWeapons(ctx, dst, verdi[0].ID)
	require.NoError(t, err)
	require.Len(t, weapons, 1)
	assert.Equal(t, "AB123", weapons[0].Serial)
	assert.Equal(t, "ROSSI", weapons[0].Transferor.LastName)

	history, err := store.GetWeaponHistory(ctx, dst, weapons[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.MovementSale, history[0].Kind)
	assert.Equal(t, "PAGATA", history[0].Notes)
	require.NotNil(t, history[0].FromHolderID)
	assert.Equal(t, rossi[0].ID, *history[0].FromHolderID)

	gifts, err := store.ListMovements(ctx, dst, store.MovementFilter{Kind: model.MovementGift})
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.Equal(t, "2023-01-10", gifts[0].Date)
	assert.Equal(t, "ZZ9", gifts[0].Weapon.Serial)
	assert.Equal(t, "VERDI", gifts[0].To.LastName)

	removed, err := store.GetWeapon(ctx, dst, gifts[0].WeaponID)
	require.NoError(t, err)
	assert.Nil(t, removed)

	removals, err := store.ListMovements(ctx, dst, store.MovementFilter{Kind: model.MovementRemoval})
	require.NoError(t, err)
	require.Len(t, removals, 1)
	assert.Equal(t, "F77", removals[0].Weapon.Serial)
	assert.Nil(t, removals[0].ToHolderID)
}

func TestReadRejectsCurrentSchema(t *testing.T) {
	_, err := Read(context.Background(), db.NewTestDB(t))
	assert.ErrorIs(t, err, ErrNotLegacy)
}

func TestDates(t *testing.T) {
	assert.Equal(t, "1985-12-10", movementDate("10/12/1985"))
	assert.Equal(t, "2024-03-01", movementDate("2024-03-01 10:30:00"))
	assert.Equal(t, "ieri", movementDate("ieri"))
	assert.Equal(t, "10/12/1985", personDate("1985-12-10"))
	assert.Equal(t, "05/03/1970", personDate("5/3/1970"))
	assert.Equal(t, "", personDate(""))
}

func TestImportDisposedWeaponStillInTable(t *testing.T) {
	ctx := context.Background()
	// The desktop dialog wrote the -1 movement but left the armi row behind.
	src := newLegacyDB(t,
		`INSERT INTO armi VALUES
			(20, 2, 'Fucile', 'Franchi', 'Affinity', 'fr55', '12', 'ARMA DA CACCIA', 'PERSONA FISICA', 'Rossi', 'Mario')`,
		`INSERT INTO MovimentiArma VALUES
			(20, 'Fucile', 'Franchi', 'FR55', '2024-05-02', NULL, NULL, 'ALTRO', 2, -1, NULL, NULL, NULL, NULL, NULL, NULL, 'distrutto')`,
	)
	dst := db.NewTestDB(t)

	res, err := Import(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Weapons)
	assert.Equal(t, 3, res.RemovedWeapons)

	verdi, err := store.FindHoldersByName(ctx, dst, "VERDI ANNA")
	require.NoError(t, err)
	require.Len(t, verdi, 1)
	weapons, err := store.GetHolderWeapons(ctx, dst, verdi[0].ID)
	require.NoError(t, err)
	require.Len(t, weapons, 1)
	assert.Equal(t, "AB123", weapons[0].Serial)

	found, err := store.FindWeaponBySerial(ctx, dst, "FR55")
	require.NoError(t, err)
	assert.Nil(t, found)
}
