package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/report"
	"github.com/erazemk/armeria/internal/store"
)

type holderFormData struct {
	PageData
	Holder *model.Holder
	IsNew  bool
}

// HoldersPage handles GET /holders.
func (s *Server) HoldersPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.HolderFilter{
		LastName:     q.Get("last_name"),
		FirstName:    q.Get("first_name"),
		FiscalCode:   q.Get("fiscal_code"),
		Municipality: q.Get("municipality"),
	}
	holders, err := store.ListHolders(r.Context(), s.DB, filter)
	if err != nil {
		slog.Error("failed to list holders", "error", err)
	}

	s.Templates.Render(w, "holders.html", &struct {
		PageData
		Holders []model.Holder
		Filter  store.HolderFilter
	}{
		PageData: s.page(r, "Detentori"),
		Holders:  holders,
		Filter:   filter,
	})
}

// HolderDetailPage handles GET /holders/{id}.
func (s *Server) HolderDetailPage(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}

	weapons, err := store.GetHolderWeapons(r.Context(), s.DB, holder.ID)
	if err != nil {
		slog.Error("failed to get holder weapons", "error", err)
	}
	movements, err := store.ListMovements(r.Context(), s.DB, store.MovementFilter{HolderID: holder.ID})
	if err != nil {
		slog.Error("failed to get holder movements", "error", err)
	}

	data := &struct {
		PageData
		Holder    *model.Holder
		Weapons   []model.Weapon
		Movements []model.Movement
	}{
		PageData:  s.page(r, holder.FullName()),
		Holder:    holder,
		Weapons:   weapons,
		Movements: movements,
	}
	if r.URL.Query().Get("deleted") == "failed" {
		data.Error = "Il detentore ha ancora armi registrate e non può essere eliminato."
	}
	s.Templates.Render(w, "holder_detail.html", data)
}

// HolderNewPage handles GET /holders/new.
func (s *Server) HolderNewPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "holder_form.html", &holderFormData{
		PageData: s.page(r, "Nuovo detentore"),
		Holder:   &model.Holder{Storage: model.StorageLocation{SameAsResidence: true}},
		IsNew:    true,
	})
}

// HolderCreateSubmit handles POST /holders.
func (s *Server) HolderCreateSubmit(w http.ResponseWriter, r *http.Request) {
	var holder model.Holder
	holderFromForm(r, &holder)

	created, err := store.CreateHolder(r.Context(), s.DB, &holder)
	if err != nil {
		data := &holderFormData{PageData: s.page(r, "Nuovo detentore"), Holder: &holder, IsNew: true}
		data.Error = userMessage(err, "create holder")
		s.Templates.RenderStatus(w, api.StatusFor(err), "holder_form.html", data)
		return
	}

	slog.Info("holder created", "user", GetWebClaims(r.Context()).Username, "holder", created.FullName(), "id", created.ID)
	http.Redirect(w, r, fmt.Sprintf("/holders/%d", created.ID), http.StatusSeeOther)
}

// HolderEditPage handles GET /holders/{id}/edit.
func (s *Server) HolderEditPage(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}
	s.Templates.Render(w, "holder_form.html", &holderFormData{
		PageData: s.page(r, "Modifica "+holder.FullName()),
		Holder:   holder,
	})
}

// HolderUpdateSubmit handles POST /holders/{id}.
func (s *Server) HolderUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}
	holderFromForm(r, holder)

	if err := store.UpdateHolder(r.Context(), s.DB, holder); err != nil {
		data := &holderFormData{PageData: s.page(r, "Modifica "+holder.FullName()), Holder: holder}
		data.Error = userMessage(err, "update holder")
		s.Templates.RenderStatus(w, api.StatusFor(err), "holder_form.html", data)
		return
	}

	slog.Info("holder updated", "user", GetWebClaims(r.Context()).Username, "holder", holder.FullName(), "id", holder.ID)
	http.Redirect(w, r, fmt.Sprintf("/holders/%d", holder.ID), http.StatusSeeOther)
}

// HolderDeleteSubmit handles POST /holders/{id}/delete.
func (s *Server) HolderDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}

	err := store.DeleteHolder(r.Context(), s.DB, holder.ID)
	if errors.Is(err, store.ErrHolderHasWeapons) {
		slog.Warn("holder delete refused", "holder", holder.FullName(), "error", err)
		http.Redirect(w, r, fmt.Sprintf("/holders/%d?deleted=failed", holder.ID), http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, userMessage(err, "delete holder"), api.StatusFor(err))
		return
	}

	slog.Info("holder deleted", "user", GetWebClaims(r.Context()).Username, "holder", holder.FullName(), "id", holder.ID)
	http.Redirect(w, r, "/holders", http.StatusSeeOther)
}

// HolderDenunciaPage handles GET /holders/{id}/denuncia: the printable
// declaration, or the Word document with ?format=docx.
func (s *Server) HolderDenunciaPage(w http.ResponseWriter, r *http.Request) {
	holder, ok := s.loadHolder(w, r)
	if !ok {
		return
	}

	d, err := api.BuildDenuncia(r.Context(), s.DB, holder, s.Station)
	if err != nil {
		slog.Error("failed to build declaration", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if r.URL.Query().Get("format") == "docx" {
		err = report.RenderDOCX(&buf, d)
		w.Header().Set("Content-Type", report.DOCXMime)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s"`, report.FileName(holder, time.Now(), ".docx")))
	} else {
		err = report.RenderHTML(&buf, d)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if err != nil {
		slog.Error("failed to render declaration", "error", err)
		w.Header().Del("Content-Disposition")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Write(buf.Bytes())

	slog.Info("declaration generated", "user", GetWebClaims(r.Context()).Username,
		"holder", holder.FullName(), "weapons", d.WeaponCount())
}

// loadHolder reads the {id} holder, answering 400/404/500 on failure.
func (s *Server) loadHolder(w http.ResponseWriter, r *http.Request) (*model.Holder, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}

	holder, err := store.GetHolder(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get holder", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if holder == nil {
		http.Error(w, "holder not found", http.StatusNotFound)
		return nil, false
	}
	return holder, true
}
