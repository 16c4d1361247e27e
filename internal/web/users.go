package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/armeria/internal/auth"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
	"github.com/erazemk/armeria/internal/textnorm"
)

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	s.renderUsers(w, r, "", "")
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	data := &struct {
		PageData
		Users []model.User
	}{
		PageData: s.page(r, "Utenti"),
		Users:    users,
	}
	data.Error, data.Success = errMsg, success
	s.Templates.Render(w, "users.html", data)
}

// UserCreateSubmit handles POST /users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	role := r.FormValue("role")

	if username == "" || password == "" || !model.ValidRole(role) {
		s.renderUsers(w, r, "Inserire nome utente, password e ruolo.", "")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.renderUsers(w, r, userMessage(err, "hash password"), "")
		return
	}

	if _, err := store.CreateUser(r.Context(), s.DB, username, hash, role); err != nil {
		s.renderUsers(w, r, userMessage(err, "create user"), "")
		return
	}
	slog.Info("user created", "user", GetWebClaims(r.Context()).Username, "new_user", username, "role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserResetPasswordSubmit handles POST /users/{id}/password (admin only).
func (s *Server) UserResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	hash, err := auth.HashPassword(r.FormValue("new_password"))
	if err != nil {
		s.renderUsers(w, r, userMessage(err, "hash password"), "")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, id, hash); err != nil {
		s.renderUsers(w, r, userMessage(err, "reset password"), "")
		return
	}
	slog.Info("password reset", "user", GetWebClaims(r.Context()).Username, "target_id", id)
	s.renderUsers(w, r, "", "Password reimpostata.")
}

// UserUpdateRoleSubmit handles POST /users/{id}/role (admin only).
func (s *Server) UserUpdateRoleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	role := r.FormValue("role")
	if !model.ValidRole(role) {
		s.renderUsers(w, r, "Ruolo non valido.", "")
		return
	}

	u, err := store.UpdateUser(r.Context(), s.DB, id, role)
	if err != nil {
		s.renderUsers(w, r, userMessage(err, "update user"), "")
		return
	}
	slog.Info("user role updated", "user", GetWebClaims(r.Context()).Username, "target_user", u.Username, "role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

type settingsData struct {
	PageData
	Station string
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, "", "")
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	station, err := store.ReportStation(r.Context(), s.DB, s.Station)
	if err != nil {
		slog.Error("failed to read station", "error", err)
	}
	data := &settingsData{PageData: s.page(r, "Impostazioni"), Station: station}
	data.Error, data.Success = errMsg, success
	s.Templates.Render(w, "settings.html", data)
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		s.renderSettings(w, r, "Inserire la password attuale e quella nuova.", "")
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil {
		s.renderSettings(w, r, "Errore nel recupero dell'utente.", "")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, currentPassword); err != nil {
		s.renderSettings(w, r, "La password attuale non è corretta.", "")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.renderSettings(w, r, userMessage(err, "hash password"), "")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, claims.UserID, hash); err != nil {
		s.renderSettings(w, r, userMessage(err, "update password"), "")
		return
	}

	slog.Info("user changed own password", "user", claims.Username, "via", "web")
	s.renderSettings(w, r, "", "Password modificata.")
}

// StationSubmit handles POST /settings/station (admin only).
func (s *Server) StationSubmit(w http.ResponseWriter, r *http.Request) {
	station := textnorm.Clean(r.FormValue("station"))
	if err := store.SetSetting(r.Context(), s.DB, store.SettingStation, station); err != nil {
		s.renderSettings(w, r, userMessage(err, "update station"), "")
		return
	}
	slog.Info("settings updated", "user", GetWebClaims(r.Context()).Username, "station", station)
	s.renderSettings(w, r, "", "Intestazione aggiornata.")
}
