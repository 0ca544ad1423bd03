// Package money fixes the rounding policy for every monetary value in the
// system: fixed-scale decimals with two fractional digits, rounded half-up.
package money

import "github.com/shopspring/decimal"

// Round rounds half-up to two fractional digits. decimal's Round rounds half
// away from zero, which is half-up for the non-negative amounts this system
// produces.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ApplyRate multiplies an amount by a rate and rounds to money scale.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}
