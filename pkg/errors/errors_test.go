package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errSlotTaken = errors.New("slot already reserved")

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap_KeepsSentinelVisible(t *testing.T) {
	repoErr := fmt.Errorf("%w: 65b000000000000000000001", errSlotTaken)
	wrapped := Wrap(repoErr, CodeConflict, "Slot is already booked", http.StatusConflict)

	// Services branch on sentinels through the AppError layer, so Is must
	// see through both Wrap and the repository's %w wrapping.
	if !errors.Is(wrapped, errSlotTaken) {
		t.Error("errors.Is should find the sentinel through Wrap")
	}
	if wrapped.Code != CodeConflict {
		t.Errorf("expected code %s, got %s", CodeConflict, wrapped.Code)
	}
	if wrapped.StatusCode() != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, wrapped.StatusCode())
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "Slot not found",
			},
			expected: "NOT_FOUND: Slot not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("no reachable primary"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: no reachable primary)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if unwrapped := errors.Unwrap(appErr); unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)
	err = err.WithDetails(map[string]any{
		"field": "start_time",
		"error": "must be HH:MM",
	})

	if err.Details["field"] != "start_time" {
		t.Errorf("expected field 'start_time', got %v", err.Details["field"])
	}
	if err.Details["error"] != "must be HH:MM" {
		t.Errorf("expected error 'must be HH:MM', got %v", err.Details["error"])
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"NotFound", NotFound("Doctor"), CodeNotFound, http.StatusNotFound},
		{"NotFoundWithID", NotFoundWithID("Slot", "65b000000000000000000001"), CodeNotFound, http.StatusNotFound},
		{"Validation", Validation("validation failed", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"InvalidInput", InvalidInput("slot_id is required"), CodeInvalidInput, http.StatusBadRequest},
		{"Unauthorized", Unauthorized("authentication required"), CodeUnauthorized, http.StatusUnauthorized},
		{"Forbidden", Forbidden("not the appointment owner"), CodeForbidden, http.StatusForbidden},
		{"Conflict", Conflict("Slot is already booked"), CodeConflict, http.StatusConflict},
		{"Internal", Internal("settlement store down", errors.New("no primary")), CodeInternal, http.StatusInternalServerError},
		{"Timeout", Timeout("request timed out"), CodeTimeout, http.StatusGatewayTimeout},
		{"Unavailable", Unavailable("Payment Gateway"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, tt.err.Code)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, tt.err.HTTPStatus)
			}
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Appointment", "65c000000000000000000001")

	if err.Details["id"] != "65c000000000000000000001" {
		t.Errorf("expected id detail, got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Appointment" {
		t.Errorf("expected resource 'Appointment', got %v", err.Details["resource"])
	}
}

func TestUnavailable_Message(t *testing.T) {
	err := Unavailable("Payment Gateway")
	if err.Message != "Payment Gateway is temporarily unavailable" {
		t.Errorf("expected message to contain service name, got %s", err.Message)
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound("Doctor")
	regularErr := errors.New("regular error")

	if !IsAppError(appErr) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if IsAppError(regularErr) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Doctor")
	regularErr := errors.New("regular error")

	if result := AsAppError(appErr); result != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}
