package app

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/klabast/wb-services/plaza/internal/errors"
	"github.com/klabast/wb-services/plaza/internal/logging"
)

// Error messages
const (
	ErrInternalServer    = "Internal server error"
	ErrInvalidBody       = "Invalid request body"
	ErrInvalidID         = "Invalid event id"
	ErrInvalidFormat     = "Invalid format"
	ErrNotAuthenticated  = "Please log in to manage events"
	ErrInvalidLogin      = "Invalid username or password"
	ErrEventNotFound     = "Event not found"
	MsgEnquiryReceived   = "Thank you for your enquiry. We will be in touch soon."
	MsgValidationSummary = "Please correct the highlighted fields"
)

// errorResponse is the JSON body of every failed API call
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []errors.FieldError `json:"errors,omitempty"`
}

// writeJSON encodes v with status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().Warn().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps a domain error to a status and body: validation
// failures list the fields, unknown ids are 404, and failed saves carry
// the message shown to the admin.
func writeFailure(w http.ResponseWriter, err error) {
	var ve *errors.ValidationError
	var se *errors.StoreError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: MsgValidationSummary, Fields: ve.Fields})
	case errors.IsNotFound(err):
		writeError(w, http.StatusNotFound, ErrEventNotFound)
	case errors.As(err, &se):
		status := http.StatusInternalServerError
		if se.Kind == errors.QuotaExceeded {
			status = http.StatusInsufficientStorage
		}
		writeError(w, status, se.UserMessage())
	default:
		writeError(w, http.StatusInternalServerError, ErrInternalServer)
	}
}

// isJSON reports whether the request body is JSON rather than a form
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// decodeJSON reads a JSON body into v, limited to 1 MiB
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
