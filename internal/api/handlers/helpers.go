package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"
	"strings"

	"route-invoice-service/internal/api/dto"
	"route-invoice-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// Field names in validation errors use the JSON names the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object into v and validates it.
// It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Printf("validate failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return false
		}

		fields := make([]dto.FieldErrorResponse, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, formatFieldError(fe))
		}
		writeJSON(w, r, http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "validation failed", Fields: fields})
		return false
	}

	return true
}

func formatFieldError(fe validator.FieldError) dto.FieldErrorResponse {
	// Drop the struct name: "CreateDraftRequest.assignments[0].id" -> "assignments[0].id".
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = "must have at least " + fe.Param() + " entries"
	case "max":
		reason = "must have at most " + fe.Param() + " entries or characters"
	case "oneof":
		reason = "must be one of " + fe.Param()
	case "unique":
		reason = "must not repeat " + fe.Param()
	default:
		reason = "failed " + fe.Tag() + " validation"
	}

	return dto.FieldErrorResponse{Field: field, Reason: reason}
}

func fieldErrors(verrs domain.ValidationErrors) []dto.FieldErrorResponse {
	out := make([]dto.FieldErrorResponse, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, dto.FieldErrorResponse{Field: e.Field, Reason: e.Reason})
	}
	return out
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, r, http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "validation failed", Fields: fieldErrors(verrs)})
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, "draft not found")
	case errors.Is(err, domain.ErrAssignmentNotFound):
		writeError(w, r, http.StatusNotFound, "assignment not found")
	case errors.Is(err, domain.ErrUnknownEmptyMilesKey):
		writeError(w, r, http.StatusNotFound, "unknown empty miles key")
	case errors.Is(err, domain.ErrStaleGeneration):
		writeError(w, r, http.StatusConflict, "draft changed while recalculating; fetch the latest draft")
	default:
		log.Printf("%s failed: %v", op, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
