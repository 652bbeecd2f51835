package rewardmath

import "github.com/holiman/uint256"

// Pure arithmetic for linear reward vesting, pool-proportional claims and
// time-weighted stake accounting. All multiplications go through uint256 so a
// uint64 balance times a uint64 time span can never overflow an intermediate.

// Vested returns how much of total has vested linearly over [start, end] at
// time at. Outside the window it clamps to 0 or total; a degenerate window
// (end <= start) counts as fully vested.
func Vested(total uint64, start, end, at int64) uint64 {
	if at <= start {
		return 0
	}
	if at >= end || end <= start {
		return total
	}
	elapsed := uint64(at - start)
	window := uint64(end - start)

	v := new(uint256.Int).Mul(uint256.NewInt(total), uint256.NewInt(elapsed))
	v.Div(v, uint256.NewInt(window))
	return v.Uint64()
}

// UnvestedRemainder returns the part of total that has not vested at time at.
func UnvestedRemainder(total uint64, start, end, at int64) uint64 {
	return total - Vested(total, start, end, at)
}

// ProportionalClaim computes a staker's share of the claimable pool, rounding
// down. Rounding down on every claim keeps the running sum of claims bounded
// by the pool; dust stays behind.
func ProportionalClaim(balance, pool, totalStaked uint64) uint64 {
	if balance == 0 || pool == 0 || totalStaked == 0 {
		return 0
	}
	if balance >= totalStaked {
		return pool
	}
	c := new(uint256.Int).Mul(uint256.NewInt(balance), uint256.NewInt(pool))
	c.Div(c, uint256.NewInt(totalStaked))
	return c.Uint64()
}

// WeightedStakeStart returns the synthetic stake-start timestamp after adding
// `add` units to a position of oldBal units started at oldStart:
//
//	newStart = now - oldBal*(now-oldStart)/(oldBal+add)
//
// which preserves the identity newBal*(now-newStart) == oldBal*(now-oldStart)
// up to integer truncation, so a top-up never inflates accrued power.
func WeightedStakeStart(oldBal uint64, oldStart, now int64, add uint64) int64 {
	if oldBal == 0 {
		return now
	}
	if now < oldStart {
		now = oldStart
	}
	held := new(uint256.Int).Mul(uint256.NewInt(oldBal), uint256.NewInt(uint64(now-oldStart)))
	held.Div(held, uint256.NewInt(oldBal+add))
	return now - int64(held.Uint64())
}

// VotingPower is balance times the whole time units the position has been
// held: balance*(now-start)/unit. A position staked at `now` has zero power.
func VotingPower(balance uint64, start, now int64, unit int64) uint64 {
	if balance == 0 || start == 0 || now <= start || unit <= 0 {
		return 0
	}
	p := new(uint256.Int).Mul(uint256.NewInt(balance), uint256.NewInt(uint64(now-start)))
	p.Div(p, uint256.NewInt(uint64(unit)))
	if !p.IsUint64() {
		return ^uint64(0)
	}
	return p.Uint64()
}

// RatioAtLeastBps reports num/den >= bps/10000 without division.
func RatioAtLeastBps(num, den, bps uint64) bool {
	if den == 0 {
		return false
	}
	lhs := new(uint256.Int).Mul(uint256.NewInt(num), uint256.NewInt(10000))
	rhs := new(uint256.Int).Mul(uint256.NewInt(den), uint256.NewInt(bps))
	return lhs.Cmp(rhs) >= 0
}

// BpsOf returns amount*bps/10000, rounding down.
func BpsOf(amount, bps uint64) uint64 {
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(bps))
	v.Div(v, uint256.NewInt(10000))
	return v.Uint64()
}

// RatioGreater reports yesA/(yesA+noA) > yesB/(yesB+noB) by cross
// multiplication: yesA*(yesB+noB) > yesB*(yesA+noA).
func RatioGreater(yesA, noA, yesB, noB uint64) bool {
	sumB := new(uint256.Int).Add(uint256.NewInt(yesB), uint256.NewInt(noB))
	sumA := new(uint256.Int).Add(uint256.NewInt(yesA), uint256.NewInt(noA))
	lhs := new(uint256.Int).Mul(uint256.NewInt(yesA), sumB)
	rhs := new(uint256.Int).Mul(uint256.NewInt(yesB), sumA)
	return lhs.Cmp(rhs) > 0
}
