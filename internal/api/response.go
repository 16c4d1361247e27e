package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/armeria/internal/codicefiscale"
	"github.com/erazemk/armeria/internal/imaging"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// StatusFor maps registry errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateSerial),
		errors.Is(err, store.ErrDuplicateUsername),
		errors.Is(err, store.ErrLastAdmin),
		errors.Is(err, store.ErrHolderHasWeapons):
		return http.StatusConflict
	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrSameHolder),
		errors.Is(err, store.ErrInvalidMovement),
		errors.Is(err, store.ErrMissingRecipient),
		errors.Is(err, store.ErrMissingRecipientData),
		errors.Is(err, imaging.ErrUnsupportedFormat),
		errors.Is(err, model.ErrPasswordTooShort),
		errors.Is(err, codicefiscale.ErrMissingField),
		errors.Is(err, codicefiscale.ErrInvalidDate),
		errors.Is(err, codicefiscale.ErrInvalidSex),
		errors.Is(err, codicefiscale.ErrUnknownMunicipality),
		errors.Is(err, codicefiscale.ErrInvalidCode):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// storeError writes err with the status from StatusFor. Internal errors are
// logged and answered with "failed to <action>".
func storeError(w http.ResponseWriter, err error, action string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("failed to "+action, "error", err)
		jsonError(w, status, "failed to "+action)
		return
	}
	jsonError(w, status, err.Error())
}
