package governance

import "github.com/pkg/errors"

var (
	// validation
	ErrInvalidKind   = errors.New("invalid proposal kind")
	ErrZeroAmount    = errors.New("amount must be nonzero")
	ErrZeroRecipient = errors.New("transfer proposal requires a recipient")

	// authorization / eligibility
	ErrInsufficientProposerStake = errors.New("proposer stake below minimum")
	ErrAlreadyVoted              = errors.New("account already voted on proposal")
	ErrNoVotingPower             = errors.New("account has no voting power")
	ErrStakeTooRecent            = errors.New("stake must predate the vote")

	// insufficient resource
	ErrInsufficientVaultBalance = errors.New("vault balance below proposed amount")
	ErrAmountExceedsCap         = errors.New("proposed amount exceeds balance cap")

	// state conflict
	ErrProposalNotFound     = errors.New("proposal not found")
	ErrProposalWindowClosed = errors.New("cycle proposal window closed")
	ErrVotingNotStarted     = errors.New("voting window not open yet")
	ErrVotingClosed         = errors.New("voting window closed")
	ErrVotingStillOpen      = errors.New("voting window still open")
	ErrAlreadyExecuted      = errors.New("proposal already executed")
	ErrAlreadyProposedKind  = errors.New("one proposal of this kind per proposer per cycle")
	ErrTooManyProposals     = errors.New("active proposal limit for kind reached")
	ErrCycleStillRunning    = errors.New("current cycle has not finished")
	ErrWinnerUnexecuted     = errors.New("succeeded proposal awaits execution")
	ErrNotFailed            = errors.New("proposal execution has not failed")
	ErrRetriesExhausted     = errors.New("execution retries exhausted")
	ErrRetriesRemaining     = errors.New("execution retries remaining")
	ErrCooldownActive       = errors.New("retry cooldown has not elapsed")
	ErrReentrantCall        = errors.New("operation already in flight")
)
