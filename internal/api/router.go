package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/armeria/internal/model"
)

// Config carries the settings the API needs beyond the database.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	// Station heads declarations when no station is stored in settings.
	Station string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL}
	usersHandler := &UsersHandler{DB: db}
	holdersHandler := &HoldersHandler{DB: db, Station: cfg.Station}
	weaponsHandler := &WeaponsHandler{DB: db}
	movementsHandler := &MovementsHandler{DB: db}
	referenceHandler := &ReferenceHandler{DB: db}
	exportHandler := &ExportHandler{DB: db}
	settingsHandler := &SettingsHandler{DB: db, Station: cfg.Station}

	authMW := AuthMiddleware(cfg.JWTSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireOperator := RequireRole(model.RoleOperator)

	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	write := func(h http.HandlerFunc) http.Handler { return authMW(requireOperator(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))
	mux.Handle("GET /api/auth/me", read(authHandler.Me))
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	mux.Handle("GET /api/summary", read(exportHandler.Summary))

	// Holders: read (all roles), write (operator+).
	mux.Handle("GET /api/holders", read(holdersHandler.List))
	mux.Handle("POST /api/holders", write(holdersHandler.Create))
	mux.Handle("GET /api/holders/{id}", read(holdersHandler.Get))
	mux.Handle("PUT /api/holders/{id}", write(holdersHandler.Update))
	mux.Handle("DELETE /api/holders/{id}", write(holdersHandler.Delete))
	mux.Handle("GET /api/holders/{id}/weapons", read(holdersHandler.Weapons))
	mux.Handle("GET /api/holders/{id}/movements", read(holdersHandler.Movements))
	mux.Handle("GET /api/holders/{id}/denuncia", read(holdersHandler.Denuncia))

	// Weapons: read (all roles), write (operator+).
	mux.Handle("GET /api/weapons", read(weaponsHandler.Search))
	mux.Handle("GET /api/weapons/lookup", read(weaponsHandler.Lookup))
	mux.Handle("POST /api/weapons", write(weaponsHandler.Create))
	mux.Handle("GET /api/weapons/{id}", read(weaponsHandler.Get))
	mux.Handle("PUT /api/weapons/{id}", write(weaponsHandler.Update))
	mux.Handle("DELETE /api/weapons/{id}", write(weaponsHandler.Delete))
	mux.Handle("POST /api/weapons/{id}/transfer", write(weaponsHandler.Transfer))
	mux.Handle("GET /api/weapons/{id}/history", read(weaponsHandler.History))
	mux.Handle("PUT /api/weapons/{id}/image", write(weaponsHandler.UploadImage))
	mux.Handle("GET /api/weapons/{id}/image", read(weaponsHandler.GetImage))

	// Movement log.
	mux.Handle("GET /api/movements", read(movementsHandler.List))
	mux.Handle("GET /api/movements/kinds", read(movementsHandler.Kinds))
	mux.Handle("GET /api/movements/{id}", read(movementsHandler.Get))

	// Reference data.
	mux.Handle("GET /api/municipalities", read(referenceHandler.Municipalities))
	mux.Handle("GET /api/municipalities/{name}", read(referenceHandler.Municipality))
	mux.Handle("GET /api/provinces", read(referenceHandler.Provinces))
	mux.Handle("GET /api/brands", read(referenceHandler.Brands))
	mux.Handle("POST /api/brands", write(referenceHandler.AddBrand))
	mux.Handle("POST /api/fiscal-code", read(referenceHandler.ComputeFiscalCode))
	mux.Handle("POST /api/fiscal-code/validate", read(referenceHandler.ValidateFiscalCode))

	mux.Handle("GET /api/export/{kind}", read(exportHandler.Export))

	mux.Handle("GET /api/settings", read(settingsHandler.Get))
	mux.Handle("PUT /api/settings", admin(settingsHandler.Update))

	return mux
}
