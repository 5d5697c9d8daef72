package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// ErrorResponse is the standard error body. Error carries the
// machine-readable code, Code the HTTP status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// WriteServiceError translates a typed service error into its code and HTTP
// status. Untyped errors become a generic 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	status := model.StatusOf(err)
	body := ErrorResponse{Error: model.CodeOf(err), Code: status}
	var typed *model.Error
	if errors.As(err, &typed) {
		body.Message = typed.Message
	} else {
		body.Message = "internal error"
	}
	WriteJSON(w, status, body)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}
