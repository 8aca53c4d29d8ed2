// README: Common money value object used across modules (integer pence, GBP).
package types

import (
	"fmt"
	"math"
)

type Money struct {
	Amount   int64
	Currency string
}

const DefaultCurrency = "GBP"

// Pence builds a Money in the default currency.
func Pence(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

// FromPounds rounds a floating pound value to whole pence. Rounding happens
// here, at the point of computation, so percentage rules downstream compound
// against already-rounded amounts.
func FromPounds(v float64) Money {
	return Pence(int64(math.Round(v * 100)))
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.currencyOr(o.Currency)}
}

func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount - o.Amount, Currency: m.currencyOr(o.Currency)}
}

// Percent returns pct% of m, rounded to the nearest penny.
func (m Money) Percent(pct int64) Money {
	return m.Bps(pct * 100)
}

// Bps returns bps basis points (1/100th of a percent) of m, rounded half
// away from zero to the nearest penny. Pure integer arithmetic, so a 12.5%
// rate (1250 bps) is exact.
func (m Money) Bps(bps int64) Money {
	num := m.Amount * bps
	half := int64(5000)
	if num < 0 {
		half = -5000
	}
	return Money{
		Amount:   (num + half) / 10000,
		Currency: m.currencyOr(""),
	}
}

func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", float64(m.Amount)/100.0, m.currencyOr(""))
}

func (m Money) currencyOr(fallback string) string {
	if m.Currency != "" {
		return m.Currency
	}
	if fallback != "" {
		return fallback
	}
	return DefaultCurrency
}
