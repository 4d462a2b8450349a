package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketon/backend/internal/pricing"
)

func TestCalculate_BasePrice(t *testing.T) {
	q := pricing.Calculate(pricing.Input{UnitPrice: 50000, Quantity: 3})
	assert.Equal(t, int64(150000), q.TotalPrice)
	assert.Equal(t, int64(150000), q.FinalPrice)
	assert.Zero(t, q.VoucherDiscount)
	assert.Zero(t, q.CouponDiscount)
	assert.Zero(t, q.PointsUsed)
}

func TestCalculate_PercentVoucherAndPoints(t *testing.T) {
	// 100000 * 2 with a 10% voucher and 5000 points = 175000.
	q := pricing.Calculate(pricing.Input{
		UnitPrice:       100000,
		Quantity:        2,
		Voucher:         &pricing.VoucherTerms{Percent: 10},
		PointsRequested: 5000,
		PointsAvailable: 20000,
	})
	assert.Equal(t, int64(200000), q.TotalPrice)
	assert.Equal(t, int64(20000), q.VoucherDiscount)
	assert.Equal(t, int64(5000), q.PointsUsed)
	assert.Equal(t, int64(175000), q.FinalPrice)
}

func TestCalculate_AmountWinsOverPercent(t *testing.T) {
	q := pricing.Calculate(pricing.Input{
		UnitPrice: 100000,
		Quantity:  1,
		Voucher:   &pricing.VoucherTerms{Amount: 30000, Percent: 10},
	})
	assert.Equal(t, int64(30000), q.VoucherDiscount)
	assert.Equal(t, int64(70000), q.FinalPrice)
}

func TestCalculate_PointsClampedToBalance(t *testing.T) {
	q := pricing.Calculate(pricing.Input{
		UnitPrice:       100000,
		Quantity:        1,
		PointsRequested: 50000,
		PointsAvailable: 12000,
	})
	assert.Equal(t, int64(12000), q.PointsUsed)
	assert.Equal(t, int64(88000), q.FinalPrice)
}

func TestCalculate_PointsClampedToRemainingPrice(t *testing.T) {
	q := pricing.Calculate(pricing.Input{
		UnitPrice:       10000,
		Quantity:        1,
		CouponDiscount:  8000,
		PointsRequested: 50000,
		PointsAvailable: 50000,
	})
	assert.Equal(t, int64(2000), q.PointsUsed)
	assert.Zero(t, q.FinalPrice)
}

func TestCalculate_ClampedAtZero(t *testing.T) {
	// Discounts larger than the total never push the price negative.
	q := pricing.Calculate(pricing.Input{
		UnitPrice:      5000,
		Quantity:       1,
		Voucher:        &pricing.VoucherTerms{Amount: 4000},
		CouponDiscount: 4000,
	})
	assert.Zero(t, q.FinalPrice)
	assert.Zero(t, q.PointsUsed)
}

func TestCalculate_Reproducible(t *testing.T) {
	in := pricing.Input{
		UnitPrice:       100000,
		Quantity:        2,
		Voucher:         &pricing.VoucherTerms{Percent: 10},
		PointsRequested: 5000,
		PointsAvailable: 5000,
	}
	first := pricing.Calculate(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, pricing.Calculate(in))
	}
	// The quote re-derives: total - voucher - coupon - points = final.
	assert.Equal(t, first.FinalPrice,
		first.TotalPrice-first.VoucherDiscount-first.CouponDiscount-first.PointsUsed)
}
