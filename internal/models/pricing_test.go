package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTax(t *testing.T) {
	tests := []struct {
		name       string
		priceExcl  int64
		percentage int64
		tax        int64
	}{
		{"exact", 16300, 21, 3423},
		{"zero price", 0, 21, 0},
		{"zero rate", 16300, 0, 0},
		{"half rounds up", 50, 21, 11},
		{"below half rounds down", 1002, 9, 90},
		{"above half rounds up", 999, 21, 210},
		{"full rate", 49000, 100, 49000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tax, ComputeTax(tt.priceExcl, tt.percentage))
		})
	}
}

func TestPricingSetters(t *testing.T) {
	p := NewProduct("123456789", ProductTypeSimple)

	p.SetPriceExcl(16300)
	assert.Equal(t, int64(0), p.TaxAmount)
	assert.Equal(t, int64(16300), p.PriceIncl)

	p.SetTaxPercentage(21)
	assert.Equal(t, int64(3423), p.TaxAmount)
	assert.Equal(t, int64(19723), p.PriceIncl)

	p.SetPriceExcl(0)
	assert.Equal(t, int64(0), p.TaxAmount)
	assert.Equal(t, int64(0), p.PriceIncl)
}

func TestComputePricingDoesNotWrap(t *testing.T) {
	p := NewProduct("123456789", ProductTypeSimple)
	p.SetTaxPercentage(21)
	p.SetPriceExcl(math.MaxInt64 / 10 * 9)

	assert.Equal(t, int64(math.MaxInt64), p.PriceIncl)
	assert.Equal(t, int64(1743217314965552626), p.TaxAmount)
}
