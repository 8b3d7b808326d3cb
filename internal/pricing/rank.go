package pricing

import (
	"sort"
	"time"
)

// Candidate annotates a browsable voucher with its eligibility verdict and
// the savings it would yield if applied to the current cart.
type Candidate struct {
	Voucher          Voucher `json:"voucher"`
	Eligible         bool    `json:"isEligible"`
	Reason           string  `json:"reason,omitempty"`
	PotentialSavings Money   `json:"potentialSavings"`
}

// Rank pre-computes validity and potential savings for each candidate voucher
// and orders them for display: eligible first by descending savings, then the
// ineligible ones in their original relative order. Purely a projection; no
// cart or voucher state is mutated.
func Rank(vouchers []Voucher, cart Cart, subtotal Money, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(vouchers))
	for i := range vouchers {
		v := vouchers[i]
		verdict := Validate(&v, cart, subtotal, now)
		eligible := EligibleSubtotal(&v, cart)

		candidate := Candidate{Voucher: v}
		switch {
		case !verdict.Valid:
			candidate.Reason = verdict.Reason
		case v.Scope != ScopeUniversal && eligible == 0:
			// Valid by the rule checks but nothing in the cart matches the
			// scope; shown as ineligible with a distinct reason.
			candidate.Reason = "no matching items in cart"
		default:
			candidate.Eligible = true
			candidate.PotentialSavings = Discount(&v, eligible)
		}
		out = append(out, candidate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Eligible != out[j].Eligible {
			return out[i].Eligible
		}
		if !out[i].Eligible {
			return false
		}
		return out[i].PotentialSavings > out[j].PotentialSavings
	})
	return out
}
