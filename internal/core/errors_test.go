package core

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "error with cause",
			err: &APIError{
				Type:    ErrorTypeInternal,
				Message: "failed to load vendors",
				Err:     errors.New("connection reset"),
			},
			expected: "internal_error: failed to load vendors: connection reset",
		},
		{
			name: "error without cause",
			err: &APIError{
				Type:    ErrorTypeInvalidRequest,
				Message: "bad request",
			},
			expected: "invalid_request_error: bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	apiErr := NewInternalError("wrapped error", originalErr)

	if !errors.Is(apiErr, originalErr) {
		t.Errorf("errors.Is(%v, %v) = false, want true", apiErr, originalErr)
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"explicit status wins", &APIError{Type: ErrorTypeInvalidRequest, StatusCode: http.StatusRequestEntityTooLarge}, http.StatusRequestEntityTooLarge},
		{"invalid request default", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication default", &APIError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"forbidden default", &APIError{Type: ErrorTypeForbidden}, http.StatusForbidden},
		{"not found default", &APIError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"conflict default", &APIError{Type: ErrorTypeConflict}, http.StatusConflict},
		{"unknown type", &APIError{Type: "mystery"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAPIError_ToJSON(t *testing.T) {
	err := NewNotFoundError("Vendor not found")
	body := err.ToJSON()

	if body["error"] != "Vendor not found" {
		t.Errorf("error = %v, want %q", body["error"], "Vendor not found")
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["type"] != ErrorTypeNotFound {
		t.Errorf("type = %v, want %v", body["type"], ErrorTypeNotFound)
	}
}
