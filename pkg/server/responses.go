package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nikogura/cv-generator/pkg/delivery"
	"github.com/nikogura/cv-generator/pkg/generator"
	"github.com/pkg/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

type healthBody struct {
	Status            string `json:"status"`
	CompilerAvailable bool   `json:"compiler_available"`
	Provider          string `json:"provider"`
}

// writeJSON encodes payload as the response body.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}

// writeError sends {"detail": msg} with the given status.
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorBody{Detail: msg})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) (status int) {
	switch {
	case errors.Is(err, generator.ErrEmptyInput), errors.Is(err, delivery.ErrInvalidKind):
		status = http.StatusBadRequest
	case errors.Is(err, delivery.ErrNotFound):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}
	return status
}

// formError maps a request body parse failure to a status and client message.
func formError(err error) (status int, detail string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
		detail = fmt.Sprintf("request body exceeds the %d byte limit", tooLarge.Limit)
		return status, detail
	}

	status = http.StatusBadRequest
	detail = "invalid form data: " + err.Error()
	return status, detail
}
