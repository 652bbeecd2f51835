package staking

import "github.com/pkg/errors"

var (
	// validation
	ErrZeroAmount      = errors.New("amount must be nonzero")
	ErrZeroAddress     = errors.New("account must be nonzero")
	ErrNothingReceived = errors.New("no tokens received by transfer")
	ErrDustAccrual     = errors.New("accrual below minimum threshold")

	// authorization
	ErrNotAuthorized = errors.New("caller not authorized")

	// insufficient resource
	ErrInsufficientStake  = errors.New("unstake amount exceeds staked balance")
	ErrInsufficientEscrow = errors.New("unstake amount exceeds escrowed principal")

	// state conflict
	ErrRewardSlotsFull      = errors.New("reward token slots exhausted")
	ErrUnknownRewardToken   = errors.New("reward token not registered")
	ErrRewardTokenNotDone   = errors.New("reward token still has pool or stream balance")
	ErrProtectedRewardToken = errors.New("reward token is whitelisted or principal")
	ErrReentrantCall        = errors.New("operation already in flight")
)
