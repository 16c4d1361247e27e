package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

// MovementsHandler handles the movement log.
type MovementsHandler struct {
	DB *sql.DB
}

// movementFilter reads weapon_id, holder_id, kind and limit from the query.
func movementFilter(r *http.Request) (store.MovementFilter, string) {
	var f store.MovementFilter
	var err error
	if f.WeaponID, err = queryInt(r, "weapon_id"); err != nil {
		return f, "invalid weapon_id"
	}
	if f.HolderID, err = queryInt(r, "holder_id"); err != nil {
		return f, "invalid holder_id"
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		return f, "invalid limit"
	}
	f.Limit = int(limit)
	f.Kind = r.URL.Query().Get("kind")
	return f, ""
}

// List handles GET /api/movements, newest first.
func (h *MovementsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, problem := movementFilter(r)
	if problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, f)
	if err != nil {
		storeError(w, err, "list movements")
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Get handles GET /api/movements/{id}.
func (h *MovementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "movement")
	if !ok {
		return
	}

	movement, err := store.GetMovement(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get movement")
		return
	}
	if movement == nil {
		jsonError(w, http.StatusNotFound, "movement not found")
		return
	}
	jsonResponse(w, http.StatusOK, movement)
}

// Kinds handles GET /api/movements/kinds: the kinds an operator can pick
// for a transfer.
func (h *MovementsHandler) Kinds(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, model.TransferKinds)
}
