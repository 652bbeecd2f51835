package models

// StakingMeta holds the staking engine's aggregate counters. Escrow is the
// principal held on behalf of stakers, always <= the engine's actual principal
// balance; TotalStaked is the sum of all receipt balances.
type StakingMeta struct {
	Escrow      uint64 `json:"escrow"`
	TotalStaked uint64 `json:"total_staked"`
}

// GovernanceMeta tracks the current cycle pointer and the proposal ID
// sequence. CurrentCycleID of zero means no cycle has ever started.
type GovernanceMeta struct {
	CurrentCycleID uint64 `json:"current_cycle_id"`
	NextProposalID uint64 `json:"next_proposal_id"`
}
