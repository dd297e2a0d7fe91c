package tx

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1", 6, "1000000"},
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{" 1000 ", 18, "1000000000000000000000"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, tc.decimals)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("%q: got %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", "0", "-1", "abc", "0.0000001"} {
		if _, err := ParseAmount(in, 6); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q: expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(big.NewInt(1_500_000), 6); got != "1.5" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := FormatAmount(nil, 6); got != "0" {
		t.Fatalf("nil format mismatch: %s", got)
	}
}
