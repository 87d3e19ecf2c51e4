package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with currency and precision handling.
// Amounts are carried internally as decimals but are persisted and compared
// as integer minor units (cents), which is the only representation that
// crosses the storage boundary.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Common currency codes (ISO 4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BRL = "BRL"
	MXN = "MXN"
)

// DefaultCurrency is assumed when a scoring request omits the currency.
const DefaultCurrency = USD

// NewMoneyFromMinorUnits creates Money from integer minor units (cents).
func NewMoneyFromMinorUnits(units int64, currency string) (Money, error) {
	if err := validateCurrency(currency); err != nil {
		return Money{}, err
	}
	return Money{
		amount:   decimal.NewFromInt(units).Div(decimal.NewFromInt(100)),
		currency: strings.ToUpper(currency),
	}, nil
}

// NewMoneyFromString creates Money from a decimal string amount and currency.
func NewMoneyFromString(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount: %w", err)
	}
	if err := validateCurrency(currency); err != nil {
		return Money{}, err
	}
	return Money{amount: dec, currency: strings.ToUpper(currency)}, nil
}

// MustNewMoneyFromMinorUnits creates Money and panics on error (for tests).
func MustNewMoneyFromMinorUnits(units int64, currency string) Money {
	m, err := NewMoneyFromMinorUnits(units, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero Money value in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: strings.ToUpper(currency)}
}

// MinorUnits converts to integer minor units (cents).
func (m Money) MinorUnits() int64 {
	return m.amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() string {
	return m.currency
}

// String returns the amount with its currency code (e.g. "123.45 USD").
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

// IsZero checks if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive checks if the amount is positive.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Equal checks if two Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount) && m.currency == other.currency
}

// GreaterThan reports whether m exceeds other. Currencies must match.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare different currencies: %s vs %s", m.currency, other.currency)
	}
	return m.amount.GreaterThan(other.amount), nil
}

// Add adds two Money values (must have same currency).
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// MarshalJSON emits the wire shape {"amount_minor_units": N, "currency": "USD"}.
func (m Money) MarshalJSON() ([]byte, error) {
	data := struct {
		AmountMinorUnits int64  `json:"amount_minor_units"`
		Currency         string `json:"currency"`
	}{
		AmountMinorUnits: m.MinorUnits(),
		Currency:         m.currency,
	}
	return json.Marshal(data)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var temp struct {
		AmountMinorUnits int64  `json:"amount_minor_units"`
		Currency         string `json:"currency"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	if temp.Currency == "" {
		temp.Currency = DefaultCurrency
	}
	money, err := NewMoneyFromMinorUnits(temp.AmountMinorUnits, temp.Currency)
	if err != nil {
		return err
	}
	*m = money
	return nil
}

// Scan implements sql.Scanner; the column stores integer minor units.
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = Money{}
		return nil
	}
	switch v := value.(type) {
	case int64:
		money, err := NewMoneyFromMinorUnits(v, DefaultCurrency)
		if err != nil {
			return err
		}
		*m = money
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
}

// Value implements driver.Valuer; Money is persisted as integer minor units.
func (m Money) Value() (driver.Value, error) {
	return m.MinorUnits(), nil
}

func validateCurrency(currency string) error {
	if currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}

	currency = strings.ToUpper(currency)

	// Basic ISO 4217 format validation
	if len(currency) != 3 {
		return fmt.Errorf("currency code must be 3 characters")
	}

	for _, ch := range currency {
		if ch < 'A' || ch > 'Z' {
			return fmt.Errorf("invalid currency code: %s", currency)
		}
	}

	return nil
}
