package web

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/auth"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

type webContextKey string

const webTokenKey webContextKey = "webtoken"

// tokenCookie names the cookie holding the session JWT.
const tokenCookie = "token"

// CookieAuthMiddleware validates the JWT from the cookie, checks token
// revocation and adds the claims to the context.
func CookieAuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(tokenCookie)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			claims, err := auth.ValidateToken(secret, cookie.Value)
			if err != nil {
				clearAuthCookie(w)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
			if err != nil {
				slog.Error("failed to check token revocation", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if revoked {
				clearAuthCookie(w)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			ctx := api.WithClaims(r.Context(), claims)
			ctx = context.WithValue(ctx, webTokenKey, cookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole wraps page handlers that need at least the given role.
func requireRole(minimum string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetWebClaims(r.Context())
			if claims == nil || !model.RoleAtLeast(claims.Role, minimum) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clearAuthCookie clears the authentication cookie with consistent attributes.
func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetWebClaims retrieves the JWT claims from web context.
func GetWebClaims(ctx context.Context) *auth.Claims {
	return api.GetClaims(ctx)
}

// GetWebToken retrieves the raw JWT token from web context.
func GetWebToken(ctx context.Context) string {
	token, _ := ctx.Value(webTokenKey).(string)
	return token
}

// pathID parses the {id} path value, answering 400 when it is invalid.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// userMessage turns a registry error into the message shown on a form. It
// logs and hides unexpected errors.
func userMessage(err error, action string) string {
	switch {
	case errors.Is(err, store.ErrDuplicateSerial):
		return "Esiste già un'arma attiva con questa matricola."
	case errors.Is(err, store.ErrHolderHasWeapons):
		return "Il detentore ha ancora armi registrate."
	case errors.Is(err, store.ErrSameHolder):
		return "Cedente e destinatario coincidono."
	case errors.Is(err, store.ErrMissingRecipient):
		return "Indicare un destinatario esistente oppure i dati di un nuovo detentore."
	case errors.Is(err, store.ErrMissingRecipientData):
		return "Per un nuovo destinatario servono nome, cognome, data e luogo di nascita."
	case errors.Is(err, store.ErrDuplicateUsername):
		return "Nome utente già in uso."
	case errors.Is(err, store.ErrLastAdmin):
		return "Non è possibile rimuovere l'ultimo amministratore."
	case errors.Is(err, store.ErrNotFound):
		return "Elemento non trovato."
	}
	if api.StatusFor(err) < http.StatusInternalServerError {
		return err.Error()
	}
	slog.Error("failed to "+action, "error", err)
	return "Errore interno. Riprovare."
}
