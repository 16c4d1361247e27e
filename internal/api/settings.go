package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/armeria/internal/store"
	"github.com/erazemk/armeria/internal/textnorm"
)

// SettingsHandler reads and writes registry settings.
type SettingsHandler struct {
	DB      *sql.DB
	Station string
}

type settingsBody struct {
	Station string `json:"station"`
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	station, err := store.ReportStation(r.Context(), h.DB, h.Station)
	if err != nil {
		storeError(w, err, "get settings")
		return
	}
	jsonResponse(w, http.StatusOK, settingsBody{Station: station})
}

// Update handles PUT /api/settings. An empty station restores the
// configured default.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsBody
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	station := textnorm.Clean(req.Station)
	if err := store.SetSetting(r.Context(), h.DB, store.SettingStation, station); err != nil {
		storeError(w, err, "update settings")
		return
	}
	slog.Info("settings updated", "user", OperatorName(r.Context()), "station", station)
	h.Get(w, r)
}
