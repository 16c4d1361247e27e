package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/armeria/internal/model"
	webembed "github.com/erazemk/armeria/web"
)

// Config carries the settings the pages need beyond the database.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	Station   string
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, cfg Config) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Templates: templates,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Station:   cfg.Station,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(cfg.JWTSecret, db)
	operator := requireRole(model.RoleOperator)
	admin := requireRole(model.RoleAdmin)

	read := func(h http.HandlerFunc) http.Handler { return cookieAuth(h) }
	write := func(h http.HandlerFunc) http.Handler { return cookieAuth(operator(h)) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return cookieAuth(admin(h)) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	// Authenticated routes.
	mux.Handle("GET /{$}", read(s.Dashboard))

	mux.Handle("GET /holders", read(s.HoldersPage))
	mux.Handle("GET /holders/new", write(s.HolderNewPage))
	mux.Handle("POST /holders", write(s.HolderCreateSubmit))
	mux.Handle("GET /holders/{id}", read(s.HolderDetailPage))
	mux.Handle("GET /holders/{id}/edit", write(s.HolderEditPage))
	mux.Handle("POST /holders/{id}", write(s.HolderUpdateSubmit))
	mux.Handle("POST /holders/{id}/delete", write(s.HolderDeleteSubmit))
	mux.Handle("GET /holders/{id}/denuncia", read(s.HolderDenunciaPage))
	mux.Handle("GET /holders/{id}/weapons/new", write(s.WeaponNewPage))
	mux.Handle("POST /holders/{id}/weapons", write(s.WeaponCreateSubmit))

	mux.Handle("GET /weapons", read(s.WeaponsPage))
	mux.Handle("GET /weapons/{id}", read(s.WeaponDetailPage))
	mux.Handle("GET /weapons/{id}/edit", write(s.WeaponEditPage))
	mux.Handle("POST /weapons/{id}", write(s.WeaponUpdateSubmit))
	mux.Handle("POST /weapons/{id}/delete", write(s.WeaponDeleteSubmit))
	mux.Handle("GET /weapons/{id}/transfer", write(s.TransferPage))
	mux.Handle("POST /weapons/{id}/transfer", write(s.TransferSubmit))
	mux.Handle("POST /weapons/{id}/image", write(s.WeaponImageSubmit))
	mux.Handle("GET /weapons/{id}/image", read(s.WeaponImageGet))

	mux.Handle("GET /movements", read(s.MovementsPage))

	mux.Handle("GET /users", adminOnly(s.UsersPage))
	mux.Handle("POST /users", adminOnly(s.UserCreateSubmit))
	mux.Handle("POST /users/{id}/password", adminOnly(s.UserResetPasswordSubmit))
	mux.Handle("POST /users/{id}/role", adminOnly(s.UserUpdateRoleSubmit))

	mux.Handle("GET /settings", read(s.SettingsPage))
	mux.Handle("POST /settings", read(s.SettingsSubmit))
	mux.Handle("POST /settings/station", adminOnly(s.StationSubmit))

	return mux, nil
}
