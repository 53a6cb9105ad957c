// Package money maps supported currency codes to locale-aware display strings.
package money

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Code is a lowercase ISO 4217 code accepted by the settings API.
type Code string

const (
	GBP Code = "gbp"
	USD Code = "usd"
	EUR Code = "eur"
)

// Default is used when a user has not picked a currency.
const Default = GBP

type currencyInfo struct {
	unit   currency.Unit
	locale language.Tag
	label  string
}

var currencies = map[Code]currencyInfo{
	GBP: {unit: currency.GBP, locale: language.BritishEnglish, label: "GBP (£)"},
	USD: {unit: currency.USD, locale: language.AmericanEnglish, label: "USD ($)"},
	EUR: {unit: currency.EUR, locale: language.German, label: "EUR (€)"},
}

// Supported lists codes in display order.
var Supported = []Code{GBP, USD, EUR}

// Parse normalizes s and checks it is supported.
func Parse(s string) (Code, error) {
	c := Code(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := currencies[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// Valid reports whether c is supported.
func (c Code) Valid() bool {
	_, ok := currencies[c]
	return ok
}

// Label is the human-readable name shown in pickers, e.g. "GBP (£)".
func (c Code) Label() string {
	if s, ok := currencies[c]; ok {
		return s.label
	}
	return strings.ToUpper(string(c))
}

// Option is a code/label pair for pickers.
type Option struct {
	Value Code   `json:"value"`
	Label string `json:"label"`
}

// Options returns all supported currencies as picker options.
func Options() []Option {
	out := make([]Option, 0, len(Supported))
	for _, c := range Supported {
		out = append(out, Option{Value: c, Label: c.Label()})
	}
	return out
}

// Format renders value with the narrow currency symbol and two fraction digits
// in the locale tied to code. Unknown codes fall back to GBP.
func Format(value float64, code Code) string {
	s, ok := currencies[code]
	if !ok {
		s = currencies[Default]
	}
	p := message.NewPrinter(s.locale)
	return p.Sprint(currency.NarrowSymbol(s.unit.Amount(value)))
}
