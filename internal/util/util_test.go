package util

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in, cc, want string
	}{
		{"09876543210", "+91", "+919876543210"},
		{"98765 43210", "+91", "+919876543210"},
		{"098-765-43210", "+91", "+919876543210"},
		{"0009876543210", "+91", "+919876543210"},
		{"+1 555-123-4567", "+91", "+15551234567"},
		{"9876543210", "", "+919876543210"},
		{"07700 900123", "+44", "+447700900123"},
		{"098765\u00a043210", "", "+919876543210"},
		{"09876\v543210", "+91", "+919876543210"},
		{"98765\f43210\r\n", "+91", "+919876543210"},
		{"\ufeff+91 98765\u200943210", "+91", "+919876543210"},
	}
	for _, tc := range tests {
		if got := NormalizePhone(tc.in, tc.cc); got != tc.want {
			t.Fatalf("NormalizePhone(%q, %q) = %q, want %q", tc.in, tc.cc, got, tc.want)
		}
	}
}

func TestNewAppointmentID(t *testing.T) {
	a, b := NewAppointmentID(), NewAppointmentID()
	if !strings.HasPrefix(a, "apt_") || len(a) != len("apt_")+26 {
		t.Fatalf("unexpected id format %q", a)
	}
	if a == b {
		t.Fatalf("expected unique ids")
	}
}
