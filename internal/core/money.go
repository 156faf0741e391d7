// Package core provides money parsing and handling utilities.
//
// This file contains locale-aware formatting and parsing of monetary amounts.
// Amounts are integer cents; decimals only appear at the formatting boundary.
package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale groups the display conventions used for money and month labels.
type Locale struct {
	Tag         language.Tag
	Currency    currency.Unit
	Symbol      string
	SymbolSpace bool
	Decimal     rune
	Group       rune
	MonthNames  [12]string
}

var (
	PtBR = newLocale(language.BrazilianPortuguese, "R$", true, ',', '.', [12]string{
		"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
		"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
	})
	EnUS = newLocale(language.AmericanEnglish, "$", false, '.', ',', [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	})
	ItIT = newLocale(language.Italian, "€", true, ',', '.', [12]string{
		"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
		"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
	})

	// DefaultLocale is used when no locale is configured or the tag is unknown.
	DefaultLocale = PtBR
)

func newLocale(tag language.Tag, symbol string, space bool, dec, group rune, months [12]string) Locale {
	unit, _ := currency.FromTag(tag)
	return Locale{
		Tag:         tag,
		Currency:    unit,
		Symbol:      symbol,
		SymbolSpace: space,
		Decimal:     dec,
		Group:       group,
		MonthNames:  months,
	}
}

// LocaleFor resolves a BCP-47 tag to one of the supported locales.
func LocaleFor(tag string) Locale {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return DefaultLocale
	}
	supported := []Locale{PtBR, EnUS, ItIT}
	tags := make([]language.Tag, len(supported))
	for i, l := range supported {
		tags[i] = l.Tag
	}
	_, idx, conf := language.NewMatcher(tags).Match(t)
	if conf == language.No {
		return DefaultLocale
	}
	return supported[idx]
}

// FormatMoney renders m with the locale's symbol, grouping and decimal separator,
// always with two fraction digits (e.g. "R$ 1.234,56").
func FormatMoney(m Money, loc Locale) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	p := message.NewPrinter(loc.Tag)
	whole := p.Sprint(number.Decimal(cents / 100))
	amount := fmt.Sprintf("%s%c%02d", whole, loc.Decimal, cents%100)

	sep := ""
	if loc.SymbolSpace {
		sep = " "
	}
	s := loc.Symbol + sep + amount
	if neg {
		return "-" + s
	}
	return s
}

// ParseMoney parses a user-entered amount written in the locale's conventions.
//
// The currency symbol and spaces are ignored. When the input contains only one
// kind of separator, a final group of exactly three digits is read as grouping
// ("1.234" in pt-BR is 1234) and anything else as the decimal point ("12.5").
// Rounding is half away from zero on the third fraction digit.
// Returns ErrInvalidAmount for empty, negative or malformed input.
func ParseMoney(s string, loc Locale) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, loc.Symbol, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return Money{}, ErrInvalidAmount
	}

	normalized, ok := normalizeSeparators(s, loc)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

func normalizeSeparators(s string, loc Locale) (string, bool) {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return "", false
		}
	}
	dec, group := string(loc.Decimal), string(loc.Group)
	hasDec, hasGroup := strings.Contains(s, dec), strings.Contains(s, group)

	switch {
	case hasDec && hasGroup:
		if strings.LastIndex(s, group) > strings.LastIndex(s, dec) {
			return "", false
		}
		s = strings.ReplaceAll(s, group, "")
	case hasGroup:
		parts := strings.Split(s, group)
		last := parts[len(parts)-1]
		if len(parts) > 2 || len(last) == 3 {
			for _, p := range parts[1:] {
				if len(p) != 3 {
					return "", false
				}
			}
			s = strings.Join(parts, "")
		} else {
			s = strings.Replace(s, group, dec, 1)
		}
	}
	if strings.Count(s, dec) > 1 {
		return "", false
	}
	return strings.Replace(s, dec, ".", 1), true
}

// MoneyFromDecimal converts a decimal amount to cents, rounding half away from zero.
// Negative amounts are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(1<<62)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MarshalJSON writes the amount as a plain JSON number in major units (5000.5).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
