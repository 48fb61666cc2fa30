package domain

import (
	"errors"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	cases := map[string]Language{
		"hindi":    LanguageHindi,
		"english":  LanguageEnglish,
		" Marathi": LanguageMarathi,
		"ENGLISH":  LanguageEnglish,
		"":         DefaultLanguage,
		"klingon":  DefaultLanguage,
	}
	for in, want := range cases {
		if got := ParseLanguage(in); got != want {
			t.Fatalf("ParseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	for _, s := range []string{"scheduled", "confirmed", "completed", "cancelled", "pending_confirmation"} {
		if _, ok := ParseAppointmentStatus(s); !ok {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if _, ok := ParseAppointmentStatus("done"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestCallRequestValidate(t *testing.T) {
	if err := (CallRequest{PhoneNumber: "  "}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := (CallRequest{PhoneNumber: "9876543210"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProviderErrorIs(t *testing.T) {
	var err error = &ProviderError{StatusCode: 401, Body: `{"message":"unauthorized"}`}
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ProviderError to match ErrProvider")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 401 {
		t.Fatalf("expected status to survive errors.As, got %+v", pe)
	}
}
