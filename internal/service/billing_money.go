package service

import "github.com/shopspring/decimal"

func roundCents(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}
