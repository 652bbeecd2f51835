package governance

// Params are the live governance settings. QuorumBps, ApprovalBps and the
// total supply are frozen into each proposal at creation; everything else is
// read live and only shapes newly created cycles and proposals.
type Params struct {
	QuorumBps        uint64 // required turnout, bps of effective supply
	ApprovalBps      uint64 // required yes ratio, bps of cast power
	MinimumQuorumBps uint64 // turnout floor, bps of the snapshot supply

	ProposalWindow int64 // seconds proposals may be created after cycle start
	VotingWindow   int64 // seconds of voting after the proposal window

	MinStakeBps      uint64 // proposer stake floor, bps of live supply
	MaxAmountBps     uint64 // proposal size cap, bps of vault balance
	MaxActivePerKind int    // active proposal ceiling per kind per cycle

	MaxExecAttempts int   // movement attempts before skip unlocks
	RetryCooldown   int64 // seconds between movement attempts
}

// ParamSource supplies current parameter values; the manager dereferences it
// on every read so a reloaded configuration takes effect without restart.
type ParamSource interface {
	Params() Params
}

// StaticParams wraps a fixed Params value as a ParamSource.
type StaticParams Params

func (s StaticParams) Params() Params { return Params(s) }
