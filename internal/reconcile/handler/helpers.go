package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"catalog-recon/internal/reconcile/model"
)

var validate = validator.New()

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}

func toBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusOf: нет объекта 404, не то состояние прогона 409, плохие данные 400.
func statusOf(err error, fallback int) int {
	switch {
	case errors.Is(err, model.ErrRunNotFound),
		errors.Is(err, model.ErrNotStaged),
		errors.Is(err, model.ErrEntryNotFound),
		errors.Is(err, model.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrCommitInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidValue):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

func writeErr(w http.ResponseWriter, err error, fallback int) {
	writeError(w, statusOf(err, fallback), err.Error())
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationFields(err),
		})
		return false
	}
	return true
}

// validationFields: поле -> нарушенный тег.
func validationFields(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
