package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/barekit/docscope/pkg/document"
	"github.com/barekit/docscope/pkg/embedding"
	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/barekit/docscope/pkg/selection"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// MessageResponse acknowledges a write without returning data.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// errorStatus maps a domain error to a stable code and status.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, document.ErrValidation),
		errors.Is(err, selection.ErrValidation),
		errors.Is(err, embedding.ErrEmptyText),
		errors.Is(err, retrieval.ErrInvalidLimit):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, selection.ErrNoMatch):
		return http.StatusBadRequest, "no_match"
	case errors.Is(err, retrieval.ErrEmptyScope):
		return http.StatusBadRequest, "empty_scope"
	case errors.Is(err, retrieval.ErrEmptyQuestion):
		return http.StatusBadRequest, "empty_question"
	case errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case embedding.IsTimeout(err):
		return http.StatusGatewayTimeout, "generation_timeout"
	case embedding.IsGenerationFailure(err):
		return http.StatusInternalServerError, "generation_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// handleError writes the response for err. Internal details are logged, not
// returned.
func handleError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code := errorStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", code), zap.Error(err))
		if code == "internal_error" {
			message = "An internal error occurred"
		}
	}
	writeError(w, status, code, message)
}

// handleValidationError writes field level messages from validator.
func handleValidationError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: "validation_error", Message: "Validation failed"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[fe.Field()] = fieldMessage(fe)
		}
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fe.Field() + " failed on '" + fe.Tag() + "'"
	}
}
