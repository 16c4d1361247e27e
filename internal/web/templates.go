package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/armeria/internal/auth"
	"github.com/erazemk/armeria/internal/model"
	webembed "github.com/erazemk/armeria/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// weaponKinds are offered as suggestions in weapon forms.
var weaponKinds = []string{"PISTOLA", "REVOLVER", "FUCILE", "CARABINA", "ALTRO"}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Amministratore"
			case model.RoleOperator:
				return "Operatore"
			case model.RoleViewer:
				return "Consultazione"
			default:
				return role
			}
		},
		"timestamp": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("02/01/2006 15:04")
		},
		// isoDate turns a stored YYYY-MM-DD movement date into DD/MM/YYYY.
		"isoDate": func(s string) string {
			t, err := time.Parse(model.MovementDateLayout, s)
			if err != nil {
				return s
			}
			return t.Format("02/01/2006")
		},
		"today": func() string { return time.Now().Format(model.MovementDateLayout) },
		"categories": func() []string {
			return []string{model.CategoryHunting, model.CategorySport, model.CategoryCommon, model.CategoryAntique, model.CategoryOther}
		},
		"lengths":         func() []string { return []string{model.LengthLong, model.LengthShort} },
		"weaponKinds":     func() []string { return weaponKinds },
		"transferKinds":   func() []string { return model.TransferKinds },
		"transferorKinds": func() []string { return []string{model.TransferorDealer, model.TransferorPerson, model.TransferorCompany} },
		"storageKinds":    func() []string { return []string{model.StorageKindResidence, model.StorageKindOther} },
		"sexes":           func() []string { return []string{model.SexMale, model.SexFemale} },
		"roles":           func() []string { return []string{model.RoleViewer, model.RoleOperator, model.RoleAdmin} },
		"dict":            dict,
	}
}

// dict builds a map from alternating keys and values so partial templates
// can take more than one argument.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[key] = kv[i+1]
	}
	return m, nil
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	partialsBytes, err := fs.ReadFile(tfs, "partials.html")
	if err != nil {
		return nil, fmt.Errorf("reading partials template: %w", err)
	}

	pages := []string{
		"login.html",
		"dashboard.html",
		"holders.html",
		"holder_detail.html",
		"holder_form.html",
		"weapons.html",
		"weapon_detail.html",
		"weapon_form.html",
		"transfer.html",
		"movements.html",
		"users.html",
		"settings.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		for _, part := range []struct {
			name string
			body []byte
		}{{"layout", layoutBytes}, {"partials", partialsBytes}, {page, pageBytes}} {
			if tmpl, err = tmpl.Parse(string(part.body)); err != nil {
				return nil, fmt.Errorf("parsing %s for %s: %w", part.name, page, err)
			}
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with a status code other than 200.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *auth.Claims
	Token   string
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Templates *Templates
	JWTSecret string
	TokenTTL  time.Duration
	// Station heads declarations when none is stored in settings.
	Station string
}

// page returns the base page data for the current user.
func (s *Server) page(r *http.Request, title string) PageData {
	return PageData{Title: title, User: GetWebClaims(r.Context()), Token: GetWebToken(r.Context())}
}
