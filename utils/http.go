package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse wraps the payload of a 2xx JSON response
type SuccessResponse struct {
	Data interface{} `json:"data,omitempty"`
}

var errorCodes = map[int]string{
	http.StatusUnauthorized:        "unauthorized",
	http.StatusNotFound:            "not_found",
	http.StatusBadGateway:          "bad_gateway",
	http.StatusServiceUnavailable:  "unavailable",
	http.StatusInternalServerError: "internal_error",
}

// Default messages; denial responses never say more than these.
const (
	msgNotFound     = "Resource not found"
	msgUnauthorized = "Authentication required"
)

// WriteJSON encodes body with the given status. A nil body writes headers only.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(body)
}

// WriteOK writes data in a 200 success envelope
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteError writes an error envelope whose code is derived from status
func WriteError(w http.ResponseWriter, status int, message string) error {
	code, ok := errorCodes[status]
	if !ok {
		code = errorCodes[http.StatusInternalServerError]
	}
	return WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// WriteNotFound writes the standard 404 body
func WriteNotFound(w http.ResponseWriter) error {
	return WriteError(w, http.StatusNotFound, msgNotFound)
}

// WriteDenied answers a request that failed authentication. When obfuscate is
// set the response is identical to WriteNotFound; otherwise it is a 401.
// Denials are never cacheable.
func WriteDenied(w http.ResponseWriter, obfuscate bool) error {
	w.Header().Set("Cache-Control", "no-store")
	if obfuscate {
		return WriteNotFound(w)
	}
	return WriteError(w, http.StatusUnauthorized, msgUnauthorized)
}
