// Package commission computes the creator/platform split for one sale.
//
// The first two sales of a resource pay the creator everything; from the
// third sale on the platform keeps 20%. The creator share is floored and
// the platform fee is the remainder, so the two always sum to the sale
// amount exactly regardless of rounding.
package commission

const (
	// FullRateSales is how many initial sales of a resource pay the
	// creator 100%.
	FullRateSales = 2

	// StandardCreatorPercent applies from sale FullRateSales+1 onward.
	StandardCreatorPercent = 80
)

// Split is the division of one sale amount, in minor currency units.
type Split struct {
	CreatorEarnings int64
	PlatformFee     int64
	CreatorPercent  int64
	PlatformPercent int64
}

// Calculate returns the split for a sale of amount minor units, where
// priorSales is the resource's sales count before this sale. The caller
// must obtain priorSales atomically with recording the purchase.
func Calculate(priorSales int64, amount int64) Split {
	if priorSales < FullRateSales {
		return Split{
			CreatorEarnings: amount,
			PlatformFee:     0,
			CreatorPercent:  100,
			PlatformPercent: 0,
		}
	}

	earnings := amount * StandardCreatorPercent / 100
	return Split{
		CreatorEarnings: earnings,
		PlatformFee:     amount - earnings,
		CreatorPercent:  StandardCreatorPercent,
		PlatformPercent: 100 - StandardCreatorPercent,
	}
}
