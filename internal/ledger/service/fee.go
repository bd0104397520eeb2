package service

// FeePolicy computes the platform's share of a gross consultation amount in
// minor units. The doctor earns the remainder, so any policy keeps the split
// invariant by construction.
type FeePolicy func(amount int64) int64

// PercentFee is the default policy: an integer percentage of the gross,
// truncated toward zero so the doctor side absorbs the rounding remainder.
func PercentFee(percent int) FeePolicy {
	return func(amount int64) int64 {
		return amount * int64(percent) / 100
	}
}
