package token

import "github.com/pkg/errors"

// Token is the value-transfer collaborator consumed by the staking engine and
// the vault. Transfer spends from the holder the handle is bound to;
// TransferFrom spends from an arbitrary account. Implementations may deduct a
// fee in flight, so callers that care about the credited amount must measure
// balances before and after instead of trusting the requested amount.
type Token interface {
	Symbol() string
	Transfer(to string, amount uint64) error
	TransferFrom(from, to string, amount uint64) error
	BalanceOf(account string) (uint64, error)
}

// Resolver looks up a Token handle bound to a fixed holder account.
type Resolver interface {
	Token(symbol string) (Token, error)
}

var (
	ErrUnknownToken      = errors.New("unknown token")
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrZeroAddress       = errors.New("empty account")
)
