package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/apperr"
)

func TestNew_StatusByCode(t *testing.T) {
	tests := []struct {
		code       apperr.Code
		wantStatus int
	}{
		{apperr.CodeValidation, http.StatusBadRequest},
		{apperr.CodeUnauthorized, http.StatusUnauthorized},
		{apperr.CodeJobNotFound, http.StatusNotFound},
		{apperr.CodeUnprocessableWeights, http.StatusUnprocessableEntity},
		{apperr.CodeStoreFailure, http.StatusBadGateway},
		{apperr.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		err := apperr.New(tt.code, "boom")
		if err.Status() != tt.wantStatus {
			t.Errorf("New(%q).Status() = %d, want %d", tt.code, err.Status(), tt.wantStatus)
		}
	}
}

func TestWrap_UnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("connection refused")
	wrapped := apperr.Wrap(apperr.CodeStoreFailure, underlying, "upsert failed")

	if !errors.Is(wrapped, underlying) {
		t.Error("Wrap() result should unwrap to the underlying error via errors.Is")
	}
	if wrapped.Error() == "" {
		t.Error("Error() should not be empty")
	}
}

func TestWithPhase_DoesNotMutateOriginal(t *testing.T) {
	base := apperr.New(apperr.CodeStoreFailure, "store unreachable")
	tagged := base.WithPhase("query.domain")

	if base.Phase != "" {
		t.Errorf("WithPhase() mutated the original error's Phase = %q, want empty", base.Phase)
	}
	if tagged.Phase != "query.domain" {
		t.Errorf("WithPhase() result Phase = %q, want query.domain", tagged.Phase)
	}
}

func TestWithDetails_DoesNotMutateOriginal(t *testing.T) {
	base := apperr.New(apperr.CodeValidation, "bad input")
	detailed := base.WithDetails(map[string]interface{}{"field": "weight"})

	if base.Details != nil {
		t.Error("WithDetails() mutated the original error's Details, want nil")
	}
	if detailed.Details["field"] != "weight" {
		t.Errorf("WithDetails() result Details[field] = %v, want weight", detailed.Details["field"])
	}
}

func TestAs_FindsWrappedDomainError(t *testing.T) {
	domainErr := apperr.New(apperr.CodeJobNotFound, "job missing")
	wrapped := fmt.Errorf("handler failed: %w", domainErr)

	got, ok := apperr.As(wrapped)
	if !ok {
		t.Fatal("As() ok = false, want true for a wrapped *Error")
	}
	if got.Code != apperr.CodeJobNotFound {
		t.Errorf("As() Code = %q, want %q", got.Code, apperr.CodeJobNotFound)
	}
}

func TestAs_FalseForPlainError(t *testing.T) {
	_, ok := apperr.As(errors.New("plain error"))
	if ok {
		t.Error("As() ok = true for a plain error, want false")
	}
}

func TestStatusFor(t *testing.T) {
	if got := apperr.StatusFor(apperr.New(apperr.CodeUnauthorized, "nope")); got != http.StatusUnauthorized {
		t.Errorf("StatusFor(domain error) = %d, want %d", got, http.StatusUnauthorized)
	}
	if got := apperr.StatusFor(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("StatusFor(plain error) = %d, want %d", got, http.StatusInternalServerError)
	}
}

func TestCodeFor(t *testing.T) {
	if got := apperr.CodeFor(apperr.New(apperr.CodeLLMFailure, "x")); got != apperr.CodeLLMFailure {
		t.Errorf("CodeFor(domain error) = %q, want %q", got, apperr.CodeLLMFailure)
	}
	if got := apperr.CodeFor(errors.New("plain")); got != apperr.CodeInternal {
		t.Errorf("CodeFor(plain error) = %q, want %q", got, apperr.CodeInternal)
	}
}
