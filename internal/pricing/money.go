package pricing

import "strconv"

// Money represents a monetary value stored in minor currency units.
type Money = int64

// FormatVND renders an amount with dot thousand separators and the dong
// suffix, e.g. 200000 -> "200.000đ". Used for customer-facing reason strings.
func FormatVND(amount Money) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, d)
	}
	if negative {
		out = append([]byte{'-'}, out...)
	}
	return string(out) + "đ"
}

// percentOf applies a basis-point rate to an amount using integer math.
func percentOf(amount Money, bps int32) Money {
	if bps <= 0 {
		return 0
	}
	return amount * Money(bps) / 10000
}
