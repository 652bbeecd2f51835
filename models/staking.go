package models

import "github.com/holiman/uint256"

// StakerPosition tracks receipt units held by one account.
// StakeStart is zero only while Balance is zero; topping up an existing
// position moves StakeStart forward by the weighted-average rule so that
// accrued voting power is preserved exactly.
type StakerPosition struct {
	Staker     string `json:"staker"`
	Balance    uint64 `json:"balance"`
	StakeStart int64  `json:"stake_start"` // unix seconds
}

// RewardTokenState is the bookkeeping record for one reward token stream.
// AvailablePool holds vested, claimable units; StreamTotal holds units still
// vesting linearly over [StreamStart, StreamEnd]. Settlement re-anchors the
// window: the vested slice moves into the pool and StreamStart advances.
type RewardTokenState struct {
	Token         string       `json:"token"`
	Whitelisted   bool         `json:"whitelisted"`
	AvailablePool uint64       `json:"available_pool"`
	StreamTotal   uint64       `json:"stream_total"`
	StreamStart   int64        `json:"stream_start"`
	StreamEnd     int64        `json:"stream_end"`
	AccPerShare   *uint256.Int `json:"acc_per_share"` // 1e12 fixed point, informational
}

// Finished reports whether the record is empty and eligible for cleanup.
func (r *RewardTokenState) Finished() bool {
	return r.AvailablePool == 0 && r.StreamTotal == 0
}
