package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/imaging"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

type weaponFormData struct {
	PageData
	Weapon *model.Weapon
	Holder *model.Holder
	Brands []model.Brand
	Date   string
	IsNew  bool
}

// WeaponsPage handles GET /weapons, the weapon search.
func (s *Server) WeaponsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.WeaponFilter{
		Brand:    q.Get("brand"),
		Model:    q.Get("model"),
		Serial:   q.Get("serial"),
		Caliber:  q.Get("caliber"),
		Kind:     q.Get("kind"),
		Category: q.Get("category"),
		Holder:   q.Get("holder"),
	}
	weapons, err := store.SearchWeapons(r.Context(), s.DB, filter)
	if err != nil {
		slog.Error("failed to search weapons", "error", err)
	}

	s.Templates.Render(w, "weapons.html", &struct {
		PageData
		Weapons []model.Weapon
		Filter  store.WeaponFilter
	}{
		PageData: s.page(r, "Ricerca armi"),
		Weapons:  weapons,
		Filter:   filter,
	})
}

// WeaponDetailPage handles GET /weapons/{id}.
func (s *Server) WeaponDetailPage(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}

	history, err := store.GetWeaponHistory(r.Context(), s.DB, weapon.ID)
	if err != nil {
		slog.Error("failed to get weapon history", "error", err)
	}

	s.Templates.Render(w, "weapon_detail.html", &struct {
		PageData
		Weapon  *model.Weapon
		History []model.Movement
	}{
		PageData: s.page(r, weapon.Description()),
		Weapon:   weapon,
		History:  history,
	})
}

// WeaponNewPage handles GET /holders/{id}/weapons/new.
func (s *Server) WeaponNewPage(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}
	s.renderWeaponForm(w, r, http.StatusOK, &weaponFormData{
		PageData: s.page(r, "Nuova arma per "+holder.FullName()),
		Weapon: &model.Weapon{
			HolderID: holder.ID,
			Storage:  holder.Storage,
		},
		Holder: holder,
		IsNew:  true,
	})
}

// WeaponCreateSubmit handles POST /holders/{id}/weapons.
func (s *Server) WeaponCreateSubmit(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}

	weapon := model.Weapon{HolderID: holder.ID}
	weaponFromForm(r, &weapon)
	date := r.PostFormValue("date")
	claims := GetWebClaims(r.Context())

	created, err := store.CreateWeapon(r.Context(), s.DB, &weapon, date, &claims.UserID)
	if err != nil {
		data := &weaponFormData{
			PageData: s.page(r, "Nuova arma per "+holder.FullName()),
			Weapon:   &weapon,
			Holder:   holder,
			Date:     date,
			IsNew:    true,
		}
		data.Error = userMessage(err, "create weapon")
		s.renderWeaponForm(w, r, api.StatusFor(err), data)
		return
	}

	slog.Info("weapon created", "user", claims.Username, "weapon", created.Description(),
		"serial", created.Serial, "holder", holder.FullName())
	http.Redirect(w, r, fmt.Sprintf("/weapons/%d", created.ID), http.StatusSeeOther)
}

// WeaponEditPage handles GET /weapons/{id}/edit.
func (s *Server) WeaponEditPage(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}
	s.renderWeaponForm(w, r, http.StatusOK, &weaponFormData{
		PageData: s.page(r, "Modifica "+weapon.Description()),
		Weapon:   weapon,
	})
}

// WeaponUpdateSubmit handles POST /weapons/{id}.
func (s *Server) WeaponUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}
	weaponFromForm(r, weapon)

	if err := store.UpdateWeapon(r.Context(), s.DB, weapon); err != nil {
		data := &weaponFormData{PageData: s.page(r, "Modifica "+weapon.Description()), Weapon: weapon}
		data.Error = userMessage(err, "update weapon")
		s.renderWeaponForm(w, r, api.StatusFor(err), data)
		return
	}

	slog.Info("weapon updated", "user", GetWebClaims(r.Context()).Username, "serial", weapon.Serial, "id", weapon.ID)
	http.Redirect(w, r, fmt.Sprintf("/weapons/%d", weapon.ID), http.StatusSeeOther)
}

// WeaponDeleteSubmit handles POST /weapons/{id}/delete. The weapon leaves
// the registry with an ELIMINAZIONE movement.
func (s *Server) WeaponDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}
	claims := GetWebClaims(r.Context())

	movement, err := store.DeleteWeapon(r.Context(), s.DB, weapon.ID,
		r.PostFormValue("date"), r.PostFormValue("notes"), &claims.UserID)
	if err != nil {
		http.Error(w, userMessage(err, "delete weapon"), api.StatusFor(err))
		return
	}

	slog.Info("weapon removed", "user", claims.Username, "serial", movement.Weapon.Serial,
		"holder", movement.From.FullName())
	http.Redirect(w, r, fmt.Sprintf("/holders/%d", weapon.HolderID), http.StatusSeeOther)
}

// WeaponImageSubmit handles POST /weapons/{id}/image.
func (s *Server) WeaponImageSubmit(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		http.Error(w, err.Error(), api.StatusFor(err))
		return
	}

	if err := store.SetWeaponImage(r.Context(), s.DB, weapon.ID, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save image", "error", err)
		http.Error(w, "failed to save image", http.StatusInternalServerError)
		return
	}

	slog.Info("weapon image uploaded", "user", GetWebClaims(r.Context()).Username,
		"serial", weapon.Serial, "width", photo.Width, "height", photo.Height)
	http.Redirect(w, r, fmt.Sprintf("/weapons/%d", weapon.ID), http.StatusSeeOther)
}

// WeaponImageGet handles GET /weapons/{id}/image (cookie-authenticated).
// ?size=thumb serves a listing preview.
func (s *Server) WeaponImageGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetWeaponImage(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get image", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	if size := r.URL.Query().Get("size"); size != "" {
		n, _ := strconv.Atoi(size)
		thumb, err := imaging.Thumbnail(data, n)
		if err != nil {
			slog.Error("failed to make thumbnail", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		data, mime = thumb.Data, thumb.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}

func (s *Server) renderWeaponForm(w http.ResponseWriter, r *http.Request, status int, data *weaponFormData) {
	brands, err := store.ListBrands(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list brands", "error", err)
	}
	data.Brands = brands
	s.Templates.RenderStatus(w, status, "weapon_form.html", data)
}

// loadWeapon reads the {id} weapon, answering 400/404/500 on failure.
func (s *Server) loadWeapon(w http.ResponseWriter, r *http.Request) (*model.Weapon, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}

	weapon, err := store.GetWeapon(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get weapon", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if weapon == nil {
		http.Error(w, "weapon not found", http.StatusNotFound)
		return nil, false
	}
	return weapon, true
}
