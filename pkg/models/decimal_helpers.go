package models

import "github.com/shopspring/decimal"

// Float returns a pointer to v. Derived-series fields use *float64 to
// distinguish a missing statistic from a computed zero.
func Float(v float64) *float64 {
	return &v
}

// RoundPct rounds a percentage to 2 decimal places using decimal
// arithmetic so repeated float error does not leak into results.
func RoundPct(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
