package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "resource not found"},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("redis connection refused"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: redis connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if !errors.Is(appErr, originalErr) {
		t.Errorf("errors.Is should find the original error")
	}
}

func TestAppError_WithDetailsMerges(t *testing.T) {
	err := RangeUnavailable("2025-06-15").WithDetails(map[string]any{"resource_id": "desk-1"})

	if err.Details["date"] != "2025-06-15" {
		t.Errorf("expected date detail to survive merge, got %v", err.Details["date"])
	}
	if err.Details["resource_id"] != "desk-1" {
		t.Errorf("expected resource_id detail, got %v", err.Details["resource_id"])
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Resource"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("validation failed", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad month"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("bad signature"), CodeUnauthorized, http.StatusUnauthorized},
		{"conflict", Conflict("already locked"), CodeConflict, http.StatusConflict},
		{"lead time", LeadTimeViolation("2025-06-02"), CodeLeadTime, http.StatusBadRequest},
		{"range unavailable", RangeUnavailable("2025-06-15"), CodeRangeUnavailable, http.StatusConflict},
		{"misconfiguration", Misconfiguration("no price"), CodeMisconfiguration, http.StatusInternalServerError},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("order system", nil), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestRangeUnavailable_CarriesDate(t *testing.T) {
	err := RangeUnavailable("2025-06-15")

	if err.Details["date"] != "2025-06-15" {
		t.Errorf("expected date detail, got %v", err.Details["date"])
	}
	if !strings.Contains(err.Message, "2025-06-15") {
		t.Errorf("expected message to name the date, got %s", err.Message)
	}
}

func TestUnavailable_Message(t *testing.T) {
	err := Unavailable("Order system", errors.New("dial tcp"))

	if err.Message != "Order system is temporarily unavailable" {
		t.Errorf("unexpected message %s", err.Message)
	}
	if err.Err == nil {
		t.Errorf("expected cause to be kept")
	}
}

func TestIsAppError(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", NotFound("Resource"))

	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should see through wrapping")
	}
	if IsAppError(errors.New("regular error")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("quote: %w", LeadTimeViolation("2025-06-02"))

	if !HasCode(err, CodeLeadTime) {
		t.Errorf("HasCode() should match wrapped lead time error")
	}
	if HasCode(err, CodeRangeUnavailable) {
		t.Errorf("HasCode() should not match a different code")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Resource")
	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	regularErr := errors.New("regular error")
	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	body := string(NotFoundWithID("Resource", "desk-1").ToJSON())

	if !strings.Contains(body, CodeNotFound) {
		t.Errorf("ToJSON() should contain error code, got %s", body)
	}
	if !strings.Contains(body, "desk-1") {
		t.Errorf("ToJSON() should contain details, got %s", body)
	}
}
