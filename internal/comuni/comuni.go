// Package comuni parses the ISTAT list of Italian municipalities
// (Elenco-comuni-italiani.csv) into registry reference data.
package comuni

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/textnorm"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Header prefixes, compared after textnorm.Key. ISTAT headers carry long
// suffixes that change between releases.
const (
	headerName      = "DENOMINAZIONE IN ITALIANO"
	headerSigla     = "SIGLA AUTOMOBILISTICA"
	headerCadastral = "CODICE CATASTALE"
	headerRegion    = "DENOMINAZIONE REGIONE"
	headerProvince  = "DENOMINAZIONE DELL'UNITA TERRITORIALE SOVRACOMUNALE"
)

// Table is the parsed content of the list.
type Table struct {
	Municipalities []model.Municipality
	Provinces      []model.Province
}

// ParseFile parses the list at path.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening municipality list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a ';' separated list, either UTF-8 or Windows-1252. Rows
// without a name or cadastral code are skipped.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading municipality list: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		if data, err = charmap.Windows1252.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("decoding municipality list: %w", err)
		}
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int)
	for _, h := range []string{headerName, headerSigla, headerCadastral, headerRegion, headerProvince} {
		idx[h] = column(header, h)
	}
	for _, h := range []string{headerName, headerSigla, headerCadastral} {
		if idx[h] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, h)
		}
	}

	field := func(rec []string, h string) string {
		i := idx[h]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return textnorm.Clean(rec[i])
	}

	t := &Table{}
	provinceNames := make(map[string]string)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading municipality list: %w", err)
		}

		m := model.Municipality{
			Name:          field(rec, headerName),
			Province:      field(rec, headerSigla),
			CadastralCode: field(rec, headerCadastral),
			Region:        field(rec, headerRegion),
		}
		if m.Name == "" || m.CadastralCode == "" {
			continue
		}
		t.Municipalities = append(t.Municipalities, m)
		if name := field(rec, headerProvince); name != "" && m.Province != "" {
			provinceNames[m.Province] = name
		}
	}

	t.Provinces = Provinces(t.Municipalities)
	for i := range t.Provinces {
		t.Provinces[i].Name = provinceNames[t.Provinces[i].Code]
	}
	return t, nil
}

// Provinces derives the distinct provinces of ms, sorted by sigla.
func Provinces(ms []model.Municipality) []model.Province {
	seen := make(map[string]bool)
	var out []model.Province
	for _, m := range ms {
		code := textnorm.Clean(m.Province)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, model.Province{Code: code, Region: textnorm.Clean(m.Region)})
	}
	slices.SortFunc(out, func(a, b model.Province) int { return strings.Compare(a.Code, b.Code) })
	return out
}

func column(header []string, prefix string) int {
	for i, h := range header {
		if strings.HasPrefix(textnorm.Key(h), prefix) {
			return i
		}
	}
	return -1
}
