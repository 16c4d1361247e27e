package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/armeria/internal/codicefiscale"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

// defaultSuggestions bounds municipality autocomplete results.
const defaultSuggestions = 20

// ReferenceHandler serves municipalities, provinces, brands and fiscal code
// helpers.
type ReferenceHandler struct {
	DB *sql.DB
}

type fiscalCodeRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	BirthDate  string `json:"birth_date"`
	Sex        string `json:"sex"`
	BirthPlace string `json:"birth_place"`
}

type validateRequest struct {
	Code string `json:"code"`
}

type brandRequest struct {
	Name string `json:"name"`
}

// Municipalities handles GET /api/municipalities?q=&limit=.
func (h *ReferenceHandler) Municipalities(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 {
		limit = defaultSuggestions
	}

	ms, err := store.ListMunicipalities(r.Context(), h.DB, r.URL.Query().Get("q"), int(limit))
	if err != nil {
		storeError(w, err, "list municipalities")
		return
	}
	if ms == nil {
		ms = []model.Municipality{}
	}
	jsonResponse(w, http.StatusOK, ms)
}

// Municipality handles GET /api/municipalities/{name}, used to cascade the
// province sigla into forms.
func (h *ReferenceHandler) Municipality(w http.ResponseWriter, r *http.Request) {
	m, err := store.GetMunicipality(r.Context(), h.DB, r.PathValue("name"))
	if err != nil {
		storeError(w, err, "get municipality")
		return
	}
	if m == nil {
		jsonError(w, http.StatusNotFound, "municipality not found")
		return
	}
	jsonResponse(w, http.StatusOK, m)
}

// Provinces handles GET /api/provinces.
func (h *ReferenceHandler) Provinces(w http.ResponseWriter, r *http.Request) {
	ps, err := store.ListProvinces(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list provinces")
		return
	}
	if ps == nil {
		ps = []model.Province{}
	}
	jsonResponse(w, http.StatusOK, ps)
}

// Brands handles GET /api/brands.
func (h *ReferenceHandler) Brands(w http.ResponseWriter, r *http.Request) {
	brands, err := store.ListBrands(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list brands")
		return
	}
	if brands == nil {
		brands = []model.Brand{}
	}
	jsonResponse(w, http.StatusOK, brands)
}

// AddBrand handles POST /api/brands.
func (h *ReferenceHandler) AddBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	brand, err := store.AddBrand(r.Context(), h.DB, req.Name)
	if err != nil {
		storeError(w, err, "add brand")
		return
	}
	slog.Info("brand added", "user", OperatorName(r.Context()), "brand", brand.Name)
	jsonResponse(w, http.StatusCreated, brand)
}

// ComputeFiscalCode handles POST /api/fiscal-code.
func (h *ReferenceHandler) ComputeFiscalCode(w http.ResponseWriter, r *http.Request) {
	var req fiscalCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := codicefiscale.Compute(r.Context(), store.CadastralLookup(h.DB), codicefiscale.Person{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		BirthDate:  req.BirthDate,
		Sex:        req.Sex,
		BirthPlace: req.BirthPlace,
	})
	if err != nil {
		storeError(w, err, "compute fiscal code")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"code": code})
}

// ValidateFiscalCode handles POST /api/fiscal-code/validate. An invalid code
// is a normal answer, not an error status.
func (h *ReferenceHandler) ValidateFiscalCode(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := map[string]any{"valid": true}
	if err := codicefiscale.Validate(req.Code); err != nil {
		resp = map[string]any{"valid": false, "error": err.Error()}
	}
	jsonResponse(w, http.StatusOK, resp)
}
