package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/errs"
)

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decode reads a JSON body and runs struct validation on it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Validation("", "could not parse JSON body: "+err.Error())
	}

	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return errs.Validation(ve[0].Field(), "failed "+ve[0].Tag()+" check")
		}
		return errs.Validation("", err.Error())
	}
	return nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := errs.As(err)
	if !ok {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var status int
	var code string
	switch {
	case errors.Is(err, errs.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, errs.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrConflict):
		status, code = http.StatusConflict, "availability_conflict"
	case errors.Is(err, errs.ErrSlotUnavailable):
		status, code = http.StatusConflict, "slot_unavailable"
	case errors.Is(err, errs.ErrLocked):
		status, code = http.StatusLocked, "availability_locked"
	case errors.Is(err, errs.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_status_transition"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Details: e.Message,
		Field:   e.Field,
		Meta:    e.Meta,
	})
}
