package report

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"text/template"
)

// DOCXMime is the content type of RenderDOCX output.
const DOCXMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var docxTemplate = template.Must(template.New("document.xml.tmpl").Funcs(template.FuncMap{
	"x":   xmlText,
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/document.xml.tmpl"))

// docxParts are the static parts of the package, in write order.
var docxParts = []struct {
	name, body string
}{
	{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`},
	{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`},
}

// RenderDOCX writes the declaration as a Word document.
func RenderDOCX(w io.Writer, d *Denuncia) error {
	var body bytes.Buffer
	if err := docxTemplate.Execute(&body, d); err != nil {
		return fmt.Errorf("rendering declaration document: %w", err)
	}

	zw := zip.NewWriter(w)
	for _, p := range docxParts {
		if err := writeZipFile(zw, p.name, []byte(p.body)); err != nil {
			return err
		}
	}
	if err := writeZipFile(zw, "word/document.xml", body.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing document package: %w", err)
	}
	return nil
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func xmlText(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}
