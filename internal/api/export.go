package api

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/armeria/internal/report"
	"github.com/erazemk/armeria/internal/store"
)

// ExportHandler serves CSV exports and the registry summary.
type ExportHandler struct {
	DB *sql.DB
}

// ExportCSV writes the named registry table as CSV. kind is holders,
// weapons or movements.
func ExportCSV(ctx context.Context, db *sql.DB, kind string, w io.Writer) error {
	switch kind {
	case "holders":
		holders, err := store.ListHolders(ctx, db, store.HolderFilter{})
		if err != nil {
			return err
		}
		return report.WriteHoldersCSV(w, holders)
	case "weapons":
		weapons, err := store.SearchWeapons(ctx, db, store.WeaponFilter{})
		if err != nil {
			return err
		}
		return report.WriteWeaponsCSV(w, weapons)
	case "movements":
		movements, err := store.ListMovements(ctx, db, store.MovementFilter{})
		if err != nil {
			return err
		}
		return report.WriteMovementsCSV(w, movements)
	}
	return fmt.Errorf("%w: unknown export %q", store.ErrInvalidInput, kind)
}

// Export handles GET /api/export/{kind}.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")

	var buf bytes.Buffer
	if err := ExportCSV(r.Context(), h.DB, kind, &buf); err != nil {
		storeError(w, err, "export "+kind)
		return
	}

	slog.Info("registry exported", "user", OperatorName(r.Context()), "kind", kind)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_%s.csv"`, kind, time.Now().Format("2006_01_02")))
	w.Write(buf.Bytes())
}

// Summary handles GET /api/summary.
func (h *ExportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := store.GetSummary(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "get summary")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}
