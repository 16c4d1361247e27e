package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/auth"
	"github.com/erazemk/armeria/internal/store"
)

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &PageData{Title: "Accesso"})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || password == "" {
		s.Templates.RenderStatus(w, http.StatusBadRequest, "login.html", &PageData{
			Title: "Accesso",
			Error: "Inserire nome utente e password.",
		})
		return
	}

	user, err := api.Authenticate(r, s.DB, username, password)
	if err != nil {
		slog.Error("failed to authenticate", "error", err)
	}
	if user == nil {
		s.Templates.RenderStatus(w, http.StatusUnauthorized, "login.html", &PageData{
			Title: "Accesso",
			Error: "Nome utente o password errati.",
		})
		return
	}

	token, err := auth.GenerateToken(s.JWTSecret, s.TokenTTL, user)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", &PageData{
			Title: "Accesso",
			Error: "Errore durante l'accesso.",
		})
		return
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl.Seconds()),
	})

	slog.Info("user logged in", "user", user.Username, "role", user.Role, "via", "web")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout. The session token is revoked, not just
// forgotten by the browser.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(tokenCookie); err == nil && cookie.Value != "" {
		if claims, err := auth.ValidateToken(s.JWTSecret, cookie.Value); err == nil {
			if err := store.RevokeToken(r.Context(), s.DB, claims.ID, claims.Expiry()); err != nil {
				slog.Error("failed to revoke token", "error", err)
			} else {
				slog.Info("user logged out", "user", claims.Username, "via", "web")
			}
		}
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
