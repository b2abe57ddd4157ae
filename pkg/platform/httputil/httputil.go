// Package httputil holds the JSON response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "rentgate/pkg/domain-errors"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the {"error","error_description"} envelope.
// Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)
	desc := ""
	if de, ok := dErrors.As(err); ok {
		status = dErrors.ToHTTPStatus(de.Code)
		code = string(de.Code)
		if status != http.StatusInternalServerError {
			desc = de.Message
		}
	}
	body := map[string]string{"error": code}
	if desc != "" {
		body["error_description"] = desc
	}
	WriteJSON(w, status, body)
}
