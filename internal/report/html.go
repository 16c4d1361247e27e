package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("denuncia.html").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/denuncia.html"))

// RenderHTML writes the printable HTML declaration.
func RenderHTML(w io.Writer, d *Denuncia) error {
	if err := htmlTemplate.ExecuteTemplate(w, "denuncia.html", d); err != nil {
		return fmt.Errorf("rendering declaration: %w", err)
	}
	return nil
}
