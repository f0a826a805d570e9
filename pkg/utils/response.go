package utils

import (
	"encoding/json"
	"net/http"
)

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondSuccess wraps data in the standard success envelope
func RespondSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	RespondJSON(w, status, body)
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// RespondErrorDetail sends an error response with structured detail,
// e.g. field-level validation failures
func RespondErrorDetail(w http.ResponseWriter, status int, message string, detail interface{}) {
	RespondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
		"detail":  detail,
	})
}
