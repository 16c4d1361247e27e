package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

// recentMovements bounds the movement list on the dashboard.
const recentMovements = 10

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := store.GetSummary(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to get summary for dashboard", "error", err)
	}
	movements, err := store.ListMovements(r.Context(), s.DB, store.MovementFilter{Limit: recentMovements})
	if err != nil {
		slog.Error("failed to list movements for dashboard", "error", err)
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Summary   *store.Summary
		Movements []model.Movement
	}{
		PageData:  s.page(r, "Riepilogo"),
		Summary:   summary,
		Movements: movements,
	})
}
