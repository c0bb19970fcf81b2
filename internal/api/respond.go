package api

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/westonopentrain/capsule-match/internal/apperr"
)

// respondJSON writes a 200 success envelope: the caller's data merged
// with {status:"ok"}. Any elapsed_ms field comes from the caller's data.
func respondJSON(w http.ResponseWriter, r *http.Request, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["status"] = "ok"
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}

// respondError writes the {status:"error", code, message, ...} envelope
// of spec.md §6, deriving the HTTP status and code from err.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusFor(err)
	code := apperr.CodeFor(err)
	message := err.Error()

	body := map[string]interface{}{
		"status":     "error",
		"code":       string(code),
		"message":    message,
		"request_id": chimw.GetReqID(r.Context()),
	}
	if e, ok := apperr.As(err); ok {
		if e.Phase != "" {
			body["details"] = map[string]interface{}{"phase": e.Phase}
		}
		if e.Details != nil {
			if existing, ok := body["details"].(map[string]interface{}); ok {
				for k, v := range e.Details {
					existing[k] = v
				}
			} else {
				body["details"] = e.Details
			}
		}
		message = e.Message
		body["message"] = message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
