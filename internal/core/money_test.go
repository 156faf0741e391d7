package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		loc Locale
		out int64
		ok  bool
	}{
		{"1", PtBR, 100, true},
		{"1,23", PtBR, 123, true},
		{"R$ 1.234,56", PtBR, 123456, true},
		{"1.234", PtBR, 123400, true},
		{"1.234.567,89", PtBR, 123456789, true},
		{"12.50", PtBR, 1250, true},
		{"0,01", PtBR, 1, true},
		{"1,005", PtBR, 101, true}, // half-up rounding
		{" 2,50 ", PtBR, 250, true},
		{"0", PtBR, 0, true},
		{"$1,234.56", EnUS, 123456, true},
		{"1,5", EnUS, 150, true},
		{"12,345", EnUS, 1234500, true},
		{"€ 3,10", ItIT, 310, true},
		{"-1", PtBR, 0, false},
		{"abc", PtBR, 0, false},
		{"1,2,3", PtBR, 0, false},
		{"1,234.5", PtBR, 0, false},
		{"1.23.4", PtBR, 0, false},
		{"", PtBR, 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in, tc.loc)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got.Cents)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		cents int64
		loc   Locale
		want  string
	}{
		{123456, PtBR, "R$ 1.234,56"},
		{5, PtBR, "R$ 0,05"},
		{-30000, PtBR, "-R$ 300,00"},
		{123456, EnUS, "$1,234.56"},
		{100, ItIT, "€ 1,00"},
	}
	for _, tc := range cases {
		if got := FormatMoney(Money{Cents: tc.cents}, tc.loc); got != tc.want {
			t.Fatalf("FormatMoney(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, loc := range []Locale{PtBR, EnUS, ItIT} {
		for _, cents := range []int64{0, 1, 99, 100, 123456, 987654321} {
			s := FormatMoney(Money{Cents: cents}, loc)
			got, err := ParseMoney(s, loc)
			if err != nil || got.Cents != cents {
				t.Fatalf("%s: %q parsed to %d (err=%v), want %d", loc.Tag, s, got.Cents, err, cents)
			}
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 500050})
	if err != nil || string(b) != "5000.5" {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var m Money
	if err := json.Unmarshal([]byte(`"12.34"`), &m); err != nil || m.Cents != 1234 {
		t.Fatalf("unmarshal quoted: %d %v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`2000`), &m); err != nil || m.Cents != 200000 {
		t.Fatalf("unmarshal number: %d %v", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`-1`), &m); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestLocaleFor(t *testing.T) {
	if LocaleFor("en-US").Symbol != "$" {
		t.Fatalf("expected en-US")
	}
	if LocaleFor("it").Symbol != "€" {
		t.Fatalf("expected it-IT")
	}
	if LocaleFor("not a tag!").Symbol != DefaultLocale.Symbol {
		t.Fatalf("expected default locale")
	}
	if PtBR.Currency.String() != "BRL" {
		t.Fatalf("expected BRL, got %s", PtBR.Currency)
	}
}
