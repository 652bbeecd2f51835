package vault

import (
	"github.com/pkg/errors"

	"govstake-project/token"
)

// Vault holds treasury funds under a dedicated ledger account and moves them
// on request. The only reference handed out at wiring time goes to the
// governance cycle manager; nothing else in the process can move vault funds.
type Vault struct {
	tokens  token.Resolver // handles bound to the vault account
	account string
}

func New(tokens token.Resolver, account string) *Vault {
	return &Vault{tokens: tokens, account: account}
}

// Account returns the ledger account holding the treasury.
func (v *Vault) Account() string { return v.account }

// MoveFunds transfers amount of the given token from the treasury to `to`.
func (v *Vault) MoveFunds(symbol, to string, amount uint64) error {
	tok, err := v.tokens.Token(symbol)
	if err != nil {
		return err
	}
	return errors.Wrap(tok.Transfer(to, amount), "vault transfer")
}

// Balance reports the treasury's holding of the given token.
func (v *Vault) Balance(symbol string) (uint64, error) {
	tok, err := v.tokens.Token(symbol)
	if err != nil {
		return 0, err
	}
	return tok.BalanceOf(v.account)
}
