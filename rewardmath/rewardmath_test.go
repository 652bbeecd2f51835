package rewardmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVested(t *testing.T) {
	cases := []struct {
		name  string
		total uint64
		start int64
		end   int64
		at    int64
		want  uint64
	}{
		{"before start", 600, 100, 400, 50, 0},
		{"at start", 600, 100, 400, 100, 0},
		{"one third", 600, 100, 400, 200, 200},
		{"two thirds", 600, 100, 400, 300, 400},
		{"at end", 600, 100, 400, 400, 600},
		{"after end", 600, 100, 400, 999, 600},
		{"degenerate window", 600, 100, 100, 100, 600},
		{"rounds down", 100, 0, 3, 1, 33},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Vested(c.total, c.start, c.end, c.at))
		})
	}
}

func TestUnvestedRemainder(t *testing.T) {
	// one day into a three-day 600-unit stream: 200 vested, 400 remain
	assert.Equal(t, uint64(400), UnvestedRemainder(600, 0, 3*86400, 86400))
	assert.Equal(t, uint64(0), UnvestedRemainder(600, 0, 100, 100))
	assert.Equal(t, uint64(600), UnvestedRemainder(600, 0, 100, 0))
}

func TestVestedPlusRemainderConserves(t *testing.T) {
	for at := int64(-10); at <= 110; at += 7 {
		v := Vested(601, 0, 100, at)
		r := UnvestedRemainder(601, 0, 100, at)
		require.Equal(t, uint64(601), v+r, "at=%d", at)
	}
}

func TestProportionalClaim(t *testing.T) {
	assert.Equal(t, uint64(0), ProportionalClaim(0, 100, 100))
	assert.Equal(t, uint64(0), ProportionalClaim(10, 0, 100))
	assert.Equal(t, uint64(0), ProportionalClaim(10, 100, 0))
	assert.Equal(t, uint64(100), ProportionalClaim(100, 100, 100))
	assert.Equal(t, uint64(50), ProportionalClaim(50, 100, 100))
	// rounds down, dust stays in the pool
	assert.Equal(t, uint64(33), ProportionalClaim(1, 100, 3))
}

func TestClaimsNeverExceedPool(t *testing.T) {
	// three stakers draining one pool sequentially
	balances := []uint64{37, 11, 52}
	total := uint64(100)
	pool := uint64(999)
	var claimed uint64
	for _, b := range balances {
		c := ProportionalClaim(b, pool, total)
		pool -= c
		claimed += c
	}
	require.LessOrEqual(t, claimed, uint64(999))
}

func TestWeightedStakeStartPreservesPower(t *testing.T) {
	cases := []struct {
		oldBal   uint64
		oldStart int64
		now      int64
		add      uint64
	}{
		{100, 0, 100, 300},
		{1, 0, 1000000, 1},
		{500, 250, 1000, 500},
		{7919, 13, 86400, 104729},
	}
	for _, c := range cases {
		newStart := WeightedStakeStart(c.oldBal, c.oldStart, c.now, c.add)
		before := c.oldBal * uint64(c.now-c.oldStart)
		after := (c.oldBal + c.add) * uint64(c.now-newStart)
		// truncation may only ever shave power, never add it
		assert.LessOrEqual(t, after, before)
		assert.GreaterOrEqual(t, after+c.oldBal+c.add, before)
	}
}

func TestWeightedStakeStartFreshPosition(t *testing.T) {
	assert.Equal(t, int64(500), WeightedStakeStart(0, 0, 500, 100))
}

func TestVotingPower(t *testing.T) {
	assert.Equal(t, uint64(0), VotingPower(0, 100, 200, 1))
	assert.Equal(t, uint64(0), VotingPower(100, 0, 200, 1))
	// same instant as the stake: zero, the flash-loan property
	assert.Equal(t, uint64(0), VotingPower(100, 200, 200, 1))
	assert.Equal(t, uint64(100*50), VotingPower(100, 150, 200, 1))
	assert.Equal(t, uint64(100), VotingPower(100, 3600, 7200, 3600))
}

func TestRatioAtLeastBps(t *testing.T) {
	assert.True(t, RatioAtLeastBps(51, 100, 5100))
	assert.False(t, RatioAtLeastBps(50, 100, 5100))
	assert.False(t, RatioAtLeastBps(0, 0, 5100))
	assert.True(t, RatioAtLeastBps(1, 1, 10000))
}

func TestBpsOf(t *testing.T) {
	assert.Equal(t, uint64(2), BpsOf(3, 7000))        // 2.1 floors to 2
	assert.Equal(t, uint64(0), BpsOf(10, 25))         // 0.025 floors to 0
	assert.Equal(t, uint64(5000), BpsOf(10000, 5000)) // exact
}

func TestRatioGreater(t *testing.T) {
	assert.True(t, RatioGreater(60, 40, 55, 45))
	assert.False(t, RatioGreater(55, 45, 60, 40))
	// equal ratios are not greater: first-stored wins ties
	assert.False(t, RatioGreater(50, 50, 5, 5))
}
