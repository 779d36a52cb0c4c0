package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	StatusCode int         `json:"statusCode"`
	Error      string      `json:"error"`
	Message    interface{} `json:"message,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// MessageResponse is a bare {"message": ...} body
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with data as the body
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with data as the body
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteBadRequest writes a 400 Bad Request response.
// message may be a single string or a list of strings.
func WriteBadRequest(w http.ResponseWriter, message interface{}, details interface{}) error {
	return WriteError(w, http.StatusBadRequest, message, details)
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteError(w, http.StatusNotFound, message, nil)
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteError(w, http.StatusInternalServerError, message, nil)
}

// WriteError writes an error response based on the status code
func WriteError(w http.ResponseWriter, status int, message interface{}, details interface{}) error {
	return WriteJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
		Details:    details,
	})
}

// ThrottledMessage is the fixed body message of a rate-limit rejection
const ThrottledMessage = "Demasiadas peticiones. Por favor intenta nuevamente más tarde."

// ThrottledResponse is the 429 body. RetryAfter is in seconds and omitted
// when unknown.
type ThrottledResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// WriteTooManyRequests writes the 429 rate-limit rejection
func WriteTooManyRequests(w http.ResponseWriter, retryAfter *int) error {
	return WriteJSON(w, http.StatusTooManyRequests, ThrottledResponse{
		StatusCode: http.StatusTooManyRequests,
		Message:    ThrottledMessage,
		RetryAfter: retryAfter,
	})
}
