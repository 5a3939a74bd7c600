package billing

import (
	"math"

	"github.com/shopspring/decimal"
)

// paidTolerance is the outstanding amount at or below which a period counts as paid.
const paidTolerance = 0.01

func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// roundUpMoney rounds up to the next cent, ignoring float noise below a micro-unit.
func roundUpMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(6).RoundCeil(2).InexactFloat64()
}

func roundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
