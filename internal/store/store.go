// Package store is the data access layer of the registry. Every function
// takes the shared *sql.DB and runs multi-statement writes in a single
// transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/armeria/internal/model"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrHolderHasWeapons     = errors.New("holder still holds weapons")
	ErrSameHolder           = errors.New("source and destination holder are the same")
	ErrDuplicateSerial      = errors.New("a weapon with this serial number is already registered")
	ErrInvalidMovement      = errors.New("invalid movement type")
	ErrMissingRecipient     = errors.New("exactly one of recipient id or external recipient is required")
	ErrMissingRecipientData = errors.New("external recipient requires first name, last name, birth date and birth place")
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrLastAdmin            = errors.New("cannot remove the last administrator")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// uniqueViolation reports whether err is a constraint failure on the named
// unique index. Partial indexes are reported by name rather than by column.
func uniqueViolation(err error, index string) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), index)
}

// today returns the current date in movement format.
func today() string {
	return time.Now().Format(model.MovementDateLayout)
}

// columns prefixes each name with alias and joins them.
func columns(alias string, names []string) string {
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		if alias != "" {
			b.WriteString(alias)
			b.WriteByte('.')
		}
		b.WriteString(n)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// assignments returns "a = ?, b = ?, ...".
func assignments(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + " = ?"
	}
	return strings.Join(parts, ", ")
}

func prefixed(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}

// partyColumnNames are the suffixes of a person snapshot, in scan order.
var partyColumnNames = []string{
	"cognome", "nome", "data_nascita", "luogo_nascita", "provincia_nascita",
	"codice_fiscale", "comune_residenza", "provincia_residenza",
	"tipo_via", "via", "civico", "telefono",
}

func partyDest(p *model.PartySnapshot) []any {
	return []any{
		&p.LastName, &p.FirstName, &p.BirthDate, &p.BirthPlace, &p.BirthProvince,
		&p.FiscalCode, &p.Residence.Municipality, &p.Residence.Province,
		&p.Residence.StreetType, &p.Residence.Street, &p.Residence.Number, &p.Phone,
	}
}

func partyArgs(p model.PartySnapshot) []any {
	return []any{
		p.LastName, p.FirstName, p.BirthDate, p.BirthPlace, p.BirthProvince,
		p.FiscalCode, p.Residence.Municipality, p.Residence.Province,
		p.Residence.StreetType, p.Residence.Street, p.Residence.Number, p.Phone,
	}
}

// storageColumnNames are shared by detentori and armi.
var storageColumnNames = []string{
	"tipo_luogo_detenzione", "comune_detenzione", "sigla_provincia_detenzione",
	"tipo_via_detenzione", "via_detenzione", "civico_detenzione",
	"detenzione_come_residenza",
}

func storageDest(s *model.StorageLocation) []any {
	return []any{
		&s.Kind, &s.Municipality, &s.Province, &s.StreetType, &s.Street, &s.Number,
		&s.SameAsResidence,
	}
}

func storageArgs(s model.StorageLocation) []any {
	return []any{
		s.Kind, s.Municipality, s.Province, s.StreetType, s.Street, s.Number,
		s.SameAsResidence,
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards; queries use ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// likePattern wraps s for a substring match.
func likePattern(s string) string {
	return "%" + escapeLike(strings.TrimSpace(s)) + "%"
}
