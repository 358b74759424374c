package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0712345678", "254712345678"},
		{"0712 345 678", "254712345678"},
		{"+254 712-345-678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0110123456", "254110123456"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.raw)
		if err != nil || got != tc.want {
			t.Fatalf("Normalize(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
	}

	for _, raw := range []string{"", "not-a-phone", "0712", "+255712345678", "020 1234567"} {
		if _, err := Normalize(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Normalize(%q): expected ErrInvalid, got %v", raw, err)
		}
	}
}

func TestE164(t *testing.T) {
	got, err := E164("0712 345 678")
	if err != nil || got != "+254712345678" {
		t.Fatalf("unexpected E164: %q %v", got, err)
	}
	if _, err := E164("not-a-phone"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestEqual(t *testing.T) {
	if !Equal("0712345678", "+254 712 345 678") {
		t.Fatalf("expected equal numbers")
	}
	if Equal("0712345678", "0712345679") {
		t.Fatalf("expected different numbers")
	}
	if Equal("", "") {
		t.Fatalf("invalid numbers never match")
	}
}
