package pricing

// Breakdown is the fully resolved checkout pricing shown to the customer.
// It is a pure value recomputed on demand, never persisted or patched.
type Breakdown struct {
	Subtotal         Money    `json:"subtotal"`
	EligibleSubtotal Money    `json:"eligibleSubtotal"`
	Discount         Money    `json:"discount"`
	ShippingFee      Money    `json:"shippingFee"`
	FinalPrice       Money    `json:"finalPrice"`
	EarnedPoints     int64    `json:"earnedPoints"`
	Voucher          *Voucher `json:"voucher"`
	Error            string   `json:"error,omitempty"`
}

// Compose combines subtotal, discount, and shipping fee into the final
// payable amount plus the loyalty points projection.
//
// An empty cart yields an all-zero breakdown no matter what else was passed.
// A voucher error degrades to the no-voucher path with the error carried
// verbatim; an invalid code never blocks checkout. earnRateBps is the
// configured loyalty earn rate in basis points; zero means no points.
func Compose(cart Cart, v *Voucher, shippingFee Money, voucherErr string, earnRateBps int32) Breakdown {
	subtotal := cart.Subtotal()
	if len(cart) == 0 || subtotal == 0 {
		return Breakdown{}
	}
	if v == nil || voucherErr != "" {
		final := subtotal + shippingFee
		return Breakdown{
			Subtotal:         subtotal,
			EligibleSubtotal: subtotal,
			ShippingFee:      shippingFee,
			FinalPrice:       final,
			EarnedPoints:     earnedPoints(final, earnRateBps),
			Error:            voucherErr,
		}
	}
	eligible := EligibleSubtotal(v, cart)
	discount := Discount(v, eligible)
	final := subtotal - discount + shippingFee
	if final < 0 {
		final = 0
	}
	return Breakdown{
		Subtotal:         subtotal,
		EligibleSubtotal: eligible,
		Discount:         discount,
		ShippingFee:      shippingFee,
		FinalPrice:       final,
		EarnedPoints:     earnedPoints(final, earnRateBps),
		Voucher:          v,
	}
}

func earnedPoints(final Money, earnRateBps int32) int64 {
	if final <= 0 || earnRateBps <= 0 {
		return 0
	}
	return final * int64(earnRateBps) / 10000
}
