package models

// ProposalKind selects one of the two fixed governance actions.
type ProposalKind string

const (
	KindBoost    ProposalKind = "boost"    // move treasury funds into the staking reward stream
	KindTransfer ProposalKind = "transfer" // move treasury funds to an arbitrary recipient
)

func (k ProposalKind) Valid() bool {
	return k == KindBoost || k == KindTransfer
}

// ProposalState is derived from stored fields and the current time.
type ProposalState string

const (
	StatePending   ProposalState = "pending"
	StateActive    ProposalState = "active"
	StateDefeated  ProposalState = "defeated"
	StateSucceeded ProposalState = "succeeded"
	StateExecuted  ProposalState = "executed"
)

// Proposal is one competing entry inside a cycle. The three snapshot fields
// are frozen at creation and never change afterwards; window bounds are
// copied verbatim from the cycle that was current at creation.
type Proposal struct {
	ID        uint64       `json:"id"`
	Kind      ProposalKind `json:"kind"`
	Proposer  string       `json:"proposer"`
	Token     string       `json:"token"`
	Amount    uint64       `json:"amount"`
	Recipient string       `json:"recipient,omitempty"` // transfer only
	CycleID   uint64       `json:"cycle_id"`

	VotingStartsAt int64 `json:"voting_starts_at"`
	VotingEndsAt   int64 `json:"voting_ends_at"`

	YesVotes     uint64 `json:"yes_votes"` // accumulated voting power
	NoVotes      uint64 `json:"no_votes"`
	VotedBalance uint64 `json:"voted_balance"` // staked units that voted, quorum basis

	TotalSupplySnapshot uint64 `json:"total_supply_snapshot"`
	QuorumBpsSnapshot   uint64 `json:"quorum_bps_snapshot"`
	ApprovalBpsSnapshot uint64 `json:"approval_bps_snapshot"`

	Executed bool `json:"executed"`
	Defeated bool `json:"defeated"`

	// Movement outcome, populated only after execution was committed.
	ExecutionFailed bool   `json:"execution_failed,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	ExecAttempts    int    `json:"exec_attempts,omitempty"`
	LastAttemptAt   int64  `json:"last_attempt_at,omitempty"`
	Abandoned       bool   `json:"abandoned,omitempty"`
}

// Cycle is one round of competing proposals. Proposals may be created until
// ProposalWindowEnd and voted on until VotingWindowEnd; at most one proposal
// of the cycle ever executes.
type Cycle struct {
	ID                uint64 `json:"id"`
	ProposalWindowEnd int64  `json:"proposal_window_end"`
	VotingWindowEnd   int64  `json:"voting_window_end"`
	Executed          bool   `json:"executed"`

	// Per-kind active proposal counts, reset by starting a new cycle.
	ActiveBoost    int `json:"active_boost"`
	ActiveTransfer int `json:"active_transfer"`
}

// VoteRecord marks that an account voted on a proposal; used only to reject
// double votes.
type VoteRecord struct {
	ProposalID uint64 `json:"proposal_id"`
	Voter      string `json:"voter"`
	Support    bool   `json:"support"`
	Power      uint64 `json:"power"`
	VotedAt    int64  `json:"voted_at"`
}
