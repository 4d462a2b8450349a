// Package pricing computes the final price of a ticket purchase from
// its base price and the discount sources applied to it.  Calculate
// is a pure function: the quote it returns records every applied
// amount, so a transaction's final price can be re-derived later for
// auditing from the inputs the transaction stored.
package pricing

// VoucherTerms carries the discount terms of an applied voucher.
// Amount takes precedence over Percent when both are set.
type VoucherTerms struct {
	Amount  int64 // flat discount in minor currency units
	Percent int64 // percentage of the pre-discount total
}

// Input is everything Calculate needs.  PointsAvailable is the
// caller's unexpired point balance; Calculate never applies more
// points than that, more than were requested, or more than the price
// remaining after the other discounts.
type Input struct {
	UnitPrice       int64
	Quantity        int
	Voucher         *VoucherTerms // nil when no voucher is applied
	CouponDiscount  int64         // 0 when no coupon is applied
	PointsRequested int64
	PointsAvailable int64
}

// Quote is the result of a price calculation.  FinalPrice is
// TotalPrice minus the three recorded discounts, clamped at zero;
// PointsUsed is the amount actually applied, which the caller must
// redeem from the reward ledger verbatim.
type Quote struct {
	TotalPrice      int64
	VoucherDiscount int64
	CouponDiscount  int64
	PointsUsed      int64
	FinalPrice      int64
}

// Calculate prices a purchase.  Deterministic, no side effects.
func Calculate(in Input) Quote {
	q := Quote{TotalPrice: in.UnitPrice * int64(in.Quantity)}

	if in.Voucher != nil {
		if in.Voucher.Amount > 0 {
			q.VoucherDiscount = in.Voucher.Amount
		} else {
			q.VoucherDiscount = q.TotalPrice * in.Voucher.Percent / 100
		}
	}
	if in.CouponDiscount > 0 {
		q.CouponDiscount = in.CouponDiscount
	}

	remaining := q.TotalPrice - q.VoucherDiscount - q.CouponDiscount
	if remaining < 0 {
		remaining = 0
	}
	q.PointsUsed = minInt64(in.PointsRequested, in.PointsAvailable, remaining)
	if q.PointsUsed < 0 {
		q.PointsUsed = 0
	}

	q.FinalPrice = remaining - q.PointsUsed
	return q
}

func minInt64(vals ...int64) int64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
