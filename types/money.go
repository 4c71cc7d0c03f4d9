// Package types provides the value types shared across tally.
package types

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest unit of its currency (cents, pence, yen).
// Ledger arithmetic is integer-only; decimal conversion happens at the edges.
type Money struct {
	Amount   int64  `json:"amount"`   // minor units
	Currency string `json:"currency"` // ISO 4217, lowercase
}

// New returns Money for an amount in minor units.
func New(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (no minor unit).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// ParseMoney parses a major-unit decimal string ("12.34", "-5", "100.5")
// into Money. Amounts with more precision than the currency allows are
// rejected rather than rounded.
func ParseMoney(s, currency string) (Money, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return Money{}, fmt.Errorf("money: parse %q: missing currency", s)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}

	places := int32(currencyDecimals(currency))
	minor := d.Shift(places)
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("money: parse %q: more than %d decimal places for %s", s, places, currency)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(maxMinor)) {
		return Money{}, fmt.Errorf("money: parse %q: out of range", s)
	}

	return Money{Amount: minor.IntPart(), Currency: currency}, nil
}

// maxMinor bounds parsed amounts well below int64 overflow so that sums of
// many entries stay representable.
const maxMinor = int64(1) << 53

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return Money{Amount: -m.Amount, Currency: m.Currency}
	}
	return m
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// FormatMajor returns the major unit string without currency symbol,
// rounded to the currency's minor unit: "49.00" for USD(4900), "100" for JPY(100).
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns a human-readable string with currency symbol.
// Examples: "$49.00", "-€3.50", "¥100".
func (m Money) String() string {
	symbol := currencySymbol(m.Currency)
	if m.Amount < 0 {
		return "-" + symbol + m.Abs().FormatMajor()
	}
	return symbol + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	m.Currency = strings.ToLower(raw.Currency)
	return nil
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

var symbols = map[string]string{
	"usd": "$", "cad": "C$", "aud": "A$", "nzd": "NZ$",
	"eur": "€", "gbp": "£", "jpy": "¥", "inr": "₹",
	"chf": "CHF ", "sek": "kr ",
}

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = []string{"jpy", "krw", "vnd", "clp", "pyg", "idr"}

func currencySymbol(currency string) string {
	currency = strings.ToLower(currency)
	if sym, ok := symbols[currency]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// CurrencyDecimals returns the number of minor-unit digits for a currency.
func CurrencyDecimals(currency string) int { return currencyDecimals(currency) }

func currencyDecimals(currency string) int {
	if slices.Contains(zeroDecimal, strings.ToLower(currency)) {
		return 0
	}
	return 2
}

// Sum adds values of a single currency. An empty input sums to zero in currency.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
