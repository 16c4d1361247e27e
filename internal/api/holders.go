package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/report"
	"github.com/erazemk/armeria/internal/store"
)

// HoldersHandler handles holder CRUD endpoints.
type HoldersHandler struct {
	DB      *sql.DB
	Station string
}

// decodeWithStorage decodes a holder or weapon body onto target. A
// "storage" object that does not set "same_as_residence" to true detaches
// the storage location from the residence.
func decodeWithStorage(r *http.Request, target any, storage *model.StorageLocation) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(target); err != nil {
		return err
	}

	var raw struct {
		Storage *struct {
			SameAsResidence *bool `json:"same_as_residence"`
		} `json:"storage"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}
	if raw.Storage != nil && (raw.Storage.SameAsResidence == nil || !*raw.Storage.SameAsResidence) {
		storage.Decouple(storage.Kind, storage.Address)
	}
	return nil
}

// List handles GET /api/holders. The name parameter matches "LAST FIRST"
// exactly; the other parameters match substrings.
func (h *HoldersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		holders []model.Holder
		err     error
	)
	if name := q.Get("name"); name != "" {
		holders, err = store.FindHoldersByName(r.Context(), h.DB, name)
	} else {
		holders, err = store.ListHolders(r.Context(), h.DB, store.HolderFilter{
			LastName:     q.Get("last_name"),
			FirstName:    q.Get("first_name"),
			FiscalCode:   q.Get("fiscal_code"),
			Municipality: q.Get("municipality"),
		})
	}
	if err != nil {
		storeError(w, err, "list holders")
		return
	}
	if holders == nil {
		holders = []model.Holder{}
	}
	jsonResponse(w, http.StatusOK, holders)
}

// Create handles POST /api/holders.
func (h *HoldersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var holder model.Holder
	if err := decodeWithStorage(r, &holder, &holder.Storage); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := store.CreateHolder(r.Context(), h.DB, &holder)
	if err != nil {
		storeError(w, err, "create holder")
		return
	}

	slog.Info("holder created", "user", OperatorName(r.Context()), "holder", created.FullName(), "id", created.ID)
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/holders/{id}.
func (h *HoldersHandler) Get(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, holder)
}

// Update handles PUT /api/holders/{id}. Fields missing from the body keep
// their stored value.
func (h *HoldersHandler) Update(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.load(w, r)
	if !ok {
		return
	}
	id := holder.ID

	if err := decodeWithStorage(r, holder, &holder.Storage); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	holder.ID = id

	if err := store.UpdateHolder(r.Context(), h.DB, holder); err != nil {
		storeError(w, err, "update holder")
		return
	}

	slog.Info("holder updated", "user", OperatorName(r.Context()), "holder", holder.FullName(), "id", id)
	updated, err := store.GetHolder(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get holder")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/holders/{id}.
func (h *HoldersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "holder")
	if !ok {
		return
	}

	holder, _ := store.GetHolder(r.Context(), h.DB, id)
	holderName := fmt.Sprintf("id:%d", id)
	if holder != nil {
		holderName = holder.FullName()
	}

	if err := store.DeleteHolder(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to delete holder", "holder", holderName, "error", err)
		storeError(w, err, "delete holder")
		return
	}

	slog.Info("holder deleted", "user", OperatorName(r.Context()), "holder", holderName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "holder deleted"})
}

// Weapons handles GET /api/holders/{id}/weapons.
func (h *HoldersHandler) Weapons(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.load(w, r)
	if !ok {
		return
	}

	weapons, err := store.GetHolderWeapons(r.Context(), h.DB, holder.ID)
	if err != nil {
		storeError(w, err, "list holder weapons")
		return
	}
	if weapons == nil {
		weapons = []model.Weapon{}
	}
	jsonResponse(w, http.StatusOK, weapons)
}

// Movements handles GET /api/holders/{id}/movements.
func (h *HoldersHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "holder")
	if !ok {
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, store.MovementFilter{HolderID: id})
	if err != nil {
		storeError(w, err, "list holder movements")
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Denuncia handles GET /api/holders/{id}/denuncia?format=docx|html.
func (h *HoldersHandler) Denuncia(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.load(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "docx"
	}
	if format != "docx" && format != "html" {
		jsonError(w, http.StatusBadRequest, "format must be docx or html")
		return
	}

	d, err := BuildDenuncia(r.Context(), h.DB, holder, h.Station)
	if err != nil {
		storeError(w, err, "build declaration")
		return
	}

	var buf bytes.Buffer
	if format == "html" {
		err = report.RenderHTML(&buf, d)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		err = report.RenderDOCX(&buf, d)
		w.Header().Set("Content-Type", report.DOCXMime)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s"`, report.FileName(holder, time.Now(), ".docx")))
	}
	if err != nil {
		w.Header().Del("Content-Disposition")
		storeError(w, err, "render declaration")
		return
	}

	slog.Info("declaration generated", "user", OperatorName(r.Context()),
		"holder", holder.FullName(), "format", format, "weapons", d.WeaponCount())
	w.Write(buf.Bytes())
}

// BuildDenuncia collects the holder's weapons and the station header into a
// declaration.
func BuildDenuncia(ctx context.Context, db *sql.DB, holder *model.Holder, fallbackStation string) (*report.Denuncia, error) {
	weapons, err := store.GetHolderWeapons(ctx, db, holder.ID)
	if err != nil {
		return nil, err
	}
	station, err := store.ReportStation(ctx, db, fallbackStation)
	if err != nil {
		return nil, err
	}
	return report.BuildDenuncia(holder, weapons, report.Options{
		Station:  station,
		Operator: OperatorName(ctx),
		Now:      time.Now(),
	}), nil
}

// load reads the {id} holder, writing 400/404/500 on failure.
func (h *HoldersHandler) load(w http.ResponseWriter, r *http.Request) (*model.Holder, bool) {
	id, ok := pathID(w, r, "holder")
	if !ok {
		return nil, false
	}

	holder, err := store.GetHolder(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get holder")
		return nil, false
	}
	if holder == nil {
		jsonError(w, http.StatusNotFound, "holder not found")
		return nil, false
	}
	return holder, true
}
