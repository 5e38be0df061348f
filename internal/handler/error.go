package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/skadi/internal/domain"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EINTERNAL:
		return http.StatusInternalServerError
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// ErrorResponse writes an error to the client. JSON clients get a
// structured envelope; everything else gets plain text. Internal error
// details never reach the response body.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(errorEnvelope{
			Error: errorBody{Code: code, Message: message},
		})
		return
	}

	http.Error(w, message, status)
}

// ValidationErrorResponse writes record-level validation failures as a
// 400 with per-field detail. Falls back to ErrorResponse for anything
// that is not a *domain.ValidationErrors.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	verrs, ok := err.(*domain.ValidationErrors)
	if !ok {
		ErrorResponse(w, r, err)
		return
	}

	fields := make(map[string]string, len(verrs.Fields))
	for field, msgs := range verrs.Fields {
		if len(msgs) > 0 {
			fields[field] = msgs[0]
		}
	}

	message := "validation failed"
	if len(verrs.Base) > 0 {
		message = verrs.Base[0]
	}

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorEnvelope{
			Error: errorBody{Code: domain.EINVALID, Message: message, Fields: fields},
		})
		return
	}

	http.Error(w, message, http.StatusBadRequest)
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "application/json") || strings.Contains(accept, "*/*")
}
