package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/armeria/internal/imaging"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

// WeaponsHandler handles weapon endpoints.
type WeaponsHandler struct {
	DB *sql.DB
}

type createWeaponRequest struct {
	model.Weapon
	// Date of the acquisition movement, YYYY-MM-DD. Defaults to today.
	Date string `json:"date"`
}

type deleteWeaponRequest struct {
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

type transferRequest struct {
	ToHolderID int64         `json:"to_holder_id"`
	Recipient  *model.Holder `json:"recipient"`
	Kind       string        `json:"kind"`
	Date       string        `json:"date"`
	Notes      string        `json:"notes"`
}

// Search handles GET /api/weapons.
func (h *WeaponsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	holderID, err := queryInt(r, "holder_id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder_id")
		return
	}

	weapons, err := store.SearchWeapons(r.Context(), h.DB, store.WeaponFilter{
		Brand:    q.Get("brand"),
		Model:    q.Get("model"),
		Serial:   q.Get("serial"),
		Caliber:  q.Get("caliber"),
		Kind:     q.Get("kind"),
		Category: q.Get("category"),
		Holder:   q.Get("holder"),
		HolderID: holderID,
	})
	if err != nil {
		storeError(w, err, "search weapons")
		return
	}
	if weapons == nil {
		weapons = []model.Weapon{}
	}
	jsonResponse(w, http.StatusOK, weapons)
}

// Lookup handles GET /api/weapons/lookup?serial=.
func (h *WeaponsHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")
	if serial == "" {
		jsonError(w, http.StatusBadRequest, "serial required")
		return
	}

	weapon, err := store.FindWeaponBySerial(r.Context(), h.DB, serial)
	if err != nil {
		storeError(w, err, "find weapon")
		return
	}
	if weapon == nil {
		jsonError(w, http.StatusNotFound, "weapon not found")
		return
	}
	jsonResponse(w, http.StatusOK, weapon)
}

// Create handles POST /api/weapons. It also records the acquisition.
func (h *WeaponsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWeaponRequest
	if err := decodeWithStorage(r, &req, &req.Storage); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HolderID <= 0 {
		jsonError(w, http.StatusBadRequest, "holder_id required")
		return
	}

	weapon, err := store.CreateWeapon(r.Context(), h.DB, &req.Weapon, req.Date, OperatorID(r.Context()))
	if err != nil {
		storeError(w, err, "create weapon")
		return
	}

	slog.Info("weapon created", "user", OperatorName(r.Context()),
		"weapon", weapon.Description(), "serial", weapon.Serial, "holder", weapon.HolderName)
	jsonResponse(w, http.StatusCreated, weapon)
}

// Get handles GET /api/weapons/{id}.
func (h *WeaponsHandler) Get(w http.ResponseWriter, r *http.Request) {
	weapon, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, weapon)
}

// Update handles PUT /api/weapons/{id}. The holder cannot be changed here.
func (h *WeaponsHandler) Update(w http.ResponseWriter, r *http.Request) {
	weapon, ok := h.load(w, r)
	if !ok {
		return
	}
	id, holderID := weapon.ID, weapon.HolderID

	if err := decodeWithStorage(r, weapon, &weapon.Storage); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	weapon.ID, weapon.HolderID = id, holderID

	if err := store.UpdateWeapon(r.Context(), h.DB, weapon); err != nil {
		storeError(w, err, "update weapon")
		return
	}

	slog.Info("weapon updated", "user", OperatorName(r.Context()), "serial", weapon.Serial, "id", id)
	updated, err := store.GetWeapon(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get weapon")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/weapons/{id}. The optional body sets the date
// and notes of the removal movement.
func (h *WeaponsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "weapon")
	if !ok {
		return
	}

	var req deleteWeaponRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	movement, err := store.DeleteWeapon(r.Context(), h.DB, id, req.Date, req.Notes, OperatorID(r.Context()))
	if err != nil {
		storeError(w, err, "delete weapon")
		return
	}

	slog.Info("weapon removed", "user", OperatorName(r.Context()),
		"serial", movement.Weapon.Serial, "holder", movement.From.FullName())
	jsonResponse(w, http.StatusOK, movement)
}

// Transfer handles POST /api/weapons/{id}/transfer.
func (h *WeaponsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "weapon")
	if !ok {
		return
	}

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	movement, err := store.TransferWeapon(r.Context(), h.DB, store.TransferRequest{
		WeaponID:   id,
		ToHolderID: req.ToHolderID,
		Recipient:  req.Recipient,
		Kind:       req.Kind,
		Date:       req.Date,
		Notes:      req.Notes,
		RecordedBy: OperatorID(r.Context()),
	})
	if err != nil {
		storeError(w, err, "transfer weapon")
		return
	}

	slog.Info("weapon transferred", "user", OperatorName(r.Context()),
		"serial", movement.Weapon.Serial, "kind", movement.Kind,
		"from", movement.From.FullName(), "to", movement.To.FullName())
	jsonResponse(w, http.StatusCreated, movement)
}

// History handles GET /api/weapons/{id}/history. Removed weapons keep their
// history.
func (h *WeaponsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "weapon")
	if !ok {
		return
	}

	history, err := store.GetWeaponHistory(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get weapon history")
		return
	}
	if history == nil {
		history = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, history)
}

// UploadImage handles PUT /api/weapons/{id}/image with a multipart "image"
// field.
func (h *WeaponsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "weapon")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		storeError(w, err, "process image")
		return
	}

	if err := store.SetWeaponImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		storeError(w, err, "save image")
		return
	}

	slog.Info("weapon image uploaded", "user", OperatorName(r.Context()), "weapon", id,
		"width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/weapons/{id}/image. With ?size=N (or
// ?size=thumb) the photo is scaled down to fit N pixels.
func (h *WeaponsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "weapon")
	if !ok {
		return
	}

	data, mime, err := store.GetWeaponImage(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	if size := r.URL.Query().Get("size"); size != "" {
		dim := imaging.ThumbnailDimension
		if size != "thumb" {
			if dim, err = strconv.Atoi(size); err != nil || dim <= 0 || dim > imaging.MaxDimension {
				jsonError(w, http.StatusBadRequest, "invalid size")
				return
			}
		}
		thumb, err := imaging.Thumbnail(data, dim)
		if err != nil {
			storeError(w, err, "scale image")
			return
		}
		data, mime = thumb.Data, thumb.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// load reads the {id} weapon, writing 400/404/500 on failure.
func (h *WeaponsHandler) load(w http.ResponseWriter, r *http.Request) (*model.Weapon, bool) {
	id, ok := pathID(w, r, "weapon")
	if !ok {
		return nil, false
	}

	weapon, err := store.GetWeapon(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get weapon")
		return nil, false
	}
	if weapon == nil {
		jsonError(w, http.StatusNotFound, "weapon not found")
		return nil, false
	}
	return weapon, true
}
