package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

type transferFormData struct {
	PageData
	Weapon     *model.Weapon
	Holders    []model.Holder
	ToHolderID int64
	Recipient  *model.Holder
	NewHolder  bool
	Kind       string
	Date       string
	Notes      string
}

// MovementsPage handles GET /movements, the movement log.
func (s *Server) MovementsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MovementFilter{
		WeaponID: formInt(r, "weapon_id"),
		HolderID: formInt(r, "holder_id"),
		Kind:     q.Get("kind"),
	}
	movements, err := store.ListMovements(r.Context(), s.DB, filter)
	if err != nil {
		slog.Error("failed to list movements", "error", err)
	}

	s.Templates.Render(w, "movements.html", &struct {
		PageData
		Movements []model.Movement
		Filter    store.MovementFilter
	}{
		PageData:  s.page(r, "Storico movimenti"),
		Movements: movements,
		Filter:    filter,
	})
}

// TransferPage handles GET /weapons/{id}/transfer.
func (s *Server) TransferPage(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}
	s.renderTransfer(w, r, http.StatusOK, &transferFormData{
		PageData:  s.page(r, "Trasferimento "+weapon.Description()),
		Weapon:    weapon,
		Recipient: &model.Holder{},
		Kind:      model.MovementSale,
	})
}

// TransferSubmit handles POST /weapons/{id}/transfer. The recipient is an
// existing holder or, with new_holder set, a holder registered on the spot.
func (s *Server) TransferSubmit(w http.ResponseWriter, r *http.Request) {
	weapon, ok := s.loadWeapon(w, r)
	if !ok {
		return
	}
	claims := GetWebClaims(r.Context())

	data := &transferFormData{
		PageData:  s.page(r, "Trasferimento "+weapon.Description()),
		Weapon:    weapon,
		Recipient: &model.Holder{},
		NewHolder: r.PostFormValue("new_holder") != "",
		Kind:      r.PostFormValue("kind"),
		Date:      r.PostFormValue("date"),
		Notes:     r.PostFormValue("notes"),
	}
	req := store.TransferRequest{
		WeaponID:   weapon.ID,
		Kind:       data.Kind,
		Date:       data.Date,
		Notes:      data.Notes,
		RecordedBy: &claims.UserID,
	}
	if data.NewHolder {
		holderFromForm(r, data.Recipient)
		req.Recipient = data.Recipient
	} else {
		data.ToHolderID = formInt(r, "to_holder_id")
		req.ToHolderID = data.ToHolderID
	}

	movement, err := store.TransferWeapon(r.Context(), s.DB, req)
	if err != nil {
		data.Error = userMessage(err, "transfer weapon")
		s.renderTransfer(w, r, api.StatusFor(err), data)
		return
	}

	slog.Info("weapon transferred", "user", claims.Username,
		"serial", movement.Weapon.Serial, "kind", movement.Kind,
		"from", movement.From.FullName(), "to", movement.To.FullName())
	http.Redirect(w, r, fmt.Sprintf("/weapons/%d", weapon.ID), http.StatusSeeOther)
}

func (s *Server) renderTransfer(w http.ResponseWriter, r *http.Request, status int, data *transferFormData) {
	holders, err := store.ListHolders(r.Context(), s.DB, store.HolderFilter{})
	if err != nil {
		slog.Error("failed to list holders for transfer form", "error", err)
	}
	// The current holder cannot be the recipient.
	for _, h := range holders {
		if h.ID != data.Weapon.HolderID {
			data.Holders = append(data.Holders, h)
		}
	}
	s.Templates.RenderStatus(w, status, "transfer.html", data)
}
