package models

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ComputeTax returns the tax on a net price in minor units. The product is
// computed exactly and rounded once, half away from zero.
func ComputeTax(priceExcl, taxPercentage int64) int64 {
	if priceExcl == 0 || taxPercentage == 0 {
		return 0
	}
	return decimal.NewFromInt(priceExcl).
		Mul(decimal.NewFromInt(taxPercentage)).
		Div(hundred).
		Round(0).
		IntPart()
}

// ComputePricing refreshes the tax amount and gross price. Prices above
// MaxPriceExcl are left for Validate to reject; the gross price is then
// clamped instead of wrapping.
func (p *Product) ComputePricing() {
	p.TaxAmount = ComputeTax(p.PriceExcl, p.TaxPercentage)
	incl := decimal.NewFromInt(p.PriceExcl).Add(decimal.NewFromInt(p.TaxAmount))
	switch {
	case incl.GreaterThan(maxInt64):
		p.PriceIncl = math.MaxInt64
		return
	case incl.LessThan(minInt64):
		p.PriceIncl = math.MinInt64
		return
	}
	p.PriceIncl = incl.IntPart()
}

// SetPriceExcl sets the net price and recomputes derived pricing
func (p *Product) SetPriceExcl(amount int64) {
	p.PriceExcl = amount
	p.ComputePricing()
}

// SetTaxPercentage sets the tax rate (21 means 21%) and recomputes derived pricing
func (p *Product) SetTaxPercentage(percentage int64) {
	p.TaxPercentage = percentage
	p.ComputePricing()
}
