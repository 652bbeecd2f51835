package token

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"govstake-project/db"
	"govstake-project/rewardmath"
)

const (
	metaPrefix    = "tok:meta:"
	balancePrefix = "tok:bal:"
)

// Meta is the stored description of a ledger token. FeeBps, when nonzero, is
// burned from every transfer, modelling fee-deducting tokens.
type Meta struct {
	Symbol string `json:"symbol"`
	FeeBps uint64 `json:"fee_bps,omitempty"`
}

// Registry is a LevelDB-backed token ledger. It is the concrete in-process
// implementation of the value-transfer collaborator; one mutex serializes all
// balance mutations so a transfer debits and credits atomically.
type Registry struct {
	store *db.LevelDB
	mux   sync.Mutex
}

func NewRegistry(store *db.LevelDB) *Registry {
	return &Registry{store: store}
}

// Register creates a token with the given transfer fee. Registering an
// existing symbol again is a no-op that keeps the original fee.
func (r *Registry) Register(symbol string, feeBps uint64) error {
	if symbol == "" {
		return ErrUnknownToken
	}
	r.mux.Lock()
	defer r.mux.Unlock()

	ok, err := r.store.Has([]byte(metaPrefix + symbol))
	if err != nil {
		return errors.Wrap(err, "check token meta")
	}
	if ok {
		return nil
	}
	data, err := json.Marshal(&Meta{Symbol: symbol, FeeBps: feeBps})
	if err != nil {
		return err
	}
	return r.store.Put([]byte(metaPrefix+symbol), data)
}

// Mint credits freshly created units to an account, registering the symbol on
// first use.
func (r *Registry) Mint(symbol, to string, amount uint64) error {
	if to == "" {
		return ErrZeroAddress
	}
	if err := r.Register(symbol, 0); err != nil {
		return err
	}
	r.mux.Lock()
	defer r.mux.Unlock()

	bal, err := r.balance(symbol, to)
	if err != nil {
		return err
	}
	return r.putBalance(symbol, to, bal+amount)
}

// Handle returns a Token view of the ledger bound to the given holder.
func (r *Registry) Handle(symbol, holder string) Token {
	return &handle{reg: r, symbol: symbol, holder: holder}
}

// ResolverFor returns a Resolver whose handles all spend from holder.
func (r *Registry) ResolverFor(holder string) Resolver {
	return &boundResolver{reg: r, holder: holder}
}

func (r *Registry) meta(symbol string) (*Meta, error) {
	data, err := r.store.Get([]byte(metaPrefix + symbol))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUnknownToken
		}
		return nil, errors.Wrap(err, "get token meta")
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Registry) balance(symbol, account string) (uint64, error) {
	data, err := r.store.Get([]byte(balancePrefix + symbol + ":" + account))
	if err != nil {
		if db.IsNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get balance")
	}
	var bal uint64
	if err := json.Unmarshal(data, &bal); err != nil {
		return 0, err
	}
	return bal, nil
}

func (r *Registry) putBalance(symbol, account string, bal uint64) error {
	data, err := json.Marshal(bal)
	if err != nil {
		return err
	}
	return r.store.Put([]byte(balancePrefix+symbol+":"+account), data)
}

// transfer moves amount from one account to another, burning the token's fee.
func (r *Registry) transfer(symbol, from, to string, amount uint64) error {
	if from == "" || to == "" {
		return ErrZeroAddress
	}
	r.mux.Lock()
	defer r.mux.Unlock()

	m, err := r.meta(symbol)
	if err != nil {
		return err
	}
	fromBal, err := r.balance(symbol, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return ErrInsufficientFunds
	}
	toBal, err := r.balance(symbol, to)
	if err != nil {
		return err
	}

	credited := amount - rewardmath.BpsOf(amount, m.FeeBps)
	if err := r.putBalance(symbol, from, fromBal-amount); err != nil {
		return err
	}
	return r.putBalance(symbol, to, toBal+credited)
}

type handle struct {
	reg    *Registry
	symbol string
	holder string
}

func (h *handle) Symbol() string { return h.symbol }

func (h *handle) Transfer(to string, amount uint64) error {
	return h.reg.transfer(h.symbol, h.holder, to, amount)
}

func (h *handle) TransferFrom(from, to string, amount uint64) error {
	return h.reg.transfer(h.symbol, from, to, amount)
}

func (h *handle) BalanceOf(account string) (uint64, error) {
	h.reg.mux.Lock()
	defer h.reg.mux.Unlock()
	if _, err := h.reg.meta(h.symbol); err != nil {
		return 0, err
	}
	return h.reg.balance(h.symbol, account)
}

type boundResolver struct {
	reg    *Registry
	holder string
}

func (b *boundResolver) Token(symbol string) (Token, error) {
	b.reg.mux.Lock()
	_, err := b.reg.meta(symbol)
	b.reg.mux.Unlock()
	if err != nil {
		return nil, err
	}
	return b.reg.Handle(symbol, b.holder), nil
}
