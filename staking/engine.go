package staking

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"govstake-project/logger"
	"govstake-project/metrics"
	"govstake-project/models"
	"govstake-project/repository"
	"govstake-project/rewardmath"
	"govstake-project/token"
)

// Config carries the staking engine's operating parameters. All values are
// read once at construction; nothing here is snapshotted because none of it
// feeds governance math.
type Config struct {
	PrincipalToken  string // token stakers deposit and the escrow ledger tracks
	Account         string // ledger account the engine holds funds under
	Admin           string // may toggle reward-token whitelisting
	StreamWindow    int64  // seconds a fresh reward stream vests over
	MaxRewardTokens int    // cap on concurrently registered non-whitelisted tokens
	MinAccrual      uint64 // dust floor for accruals
	PowerTimeUnit   int64  // seconds per unit of voting-power time
}

// Engine owns staked balances, the escrow ledger and the reward token
// streams. Every public mutating operation runs under a single in-flight
// guard: a second call arriving while one is mid-flight (including a
// reentrant call from inside a token transfer) is rejected, never queued.
type Engine struct {
	repo   repository.StakingRepositoryInterface
	tokens token.Resolver // handles bound to cfg.Account
	cfg    Config

	now    func() int64
	busy   atomic.Bool

	stakeCounter   metrics.Counter
	unstakeCounter metrics.Counter
	claimCounter   metrics.Counter
	accrueCounter  metrics.Counter
	stakedGauge    metrics.Gauge
	escrowGauge    metrics.Gauge
}

func NewEngine(repo repository.StakingRepositoryInterface, tokens token.Resolver, cfg Config) *Engine {
	return &Engine{
		repo:   repo,
		tokens: tokens,
		cfg:    cfg,
		now:    func() int64 { return time.Now().Unix() },

		stakeCounter:   metrics.GetCounter("staking_stakes_total"),
		unstakeCounter: metrics.GetCounter("staking_unstakes_total"),
		claimCounter:   metrics.GetCounter("staking_claims_total"),
		accrueCounter:  metrics.GetCounter("staking_accruals_total"),
		stakedGauge:    metrics.GetGauge("staking_total_staked"),
		escrowGauge:    metrics.GetGauge("staking_escrow"),
	}
}

// Account returns the ledger account the engine holds funds under.
func (e *Engine) Account() string { return e.cfg.Account }

// PrincipalToken returns the symbol of the staked token.
func (e *Engine) PrincipalToken() string { return e.cfg.PrincipalToken }

func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) exit() { e.busy.Store(false) }

// Stake deposits principal from staker and credits receipt units for the
// amount actually received, so fee-deducting tokens cannot inflate the escrow
// ledger. Topping up recomputes the stake-start timestamp by the
// weighted-average rule, preserving accrued voting power exactly.
func (e *Engine) Stake(staker string, amount uint64) (uint64, error) {
	if staker == "" {
		return 0, ErrZeroAddress
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()

	now := e.now()
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return 0, err
	}
	if err := e.settleAll(now, meta.TotalStaked); err != nil {
		return 0, err
	}

	tok, err := e.tokens.Token(e.cfg.PrincipalToken)
	if err != nil {
		return 0, err
	}
	before, err := tok.BalanceOf(e.cfg.Account)
	if err != nil {
		return 0, err
	}
	if err := tok.TransferFrom(staker, e.cfg.Account, amount); err != nil {
		return 0, errors.Wrap(err, "stake transfer")
	}
	after, err := tok.BalanceOf(e.cfg.Account)
	if err != nil {
		return 0, err
	}
	received := after - before
	if received == 0 {
		return 0, ErrNothingReceived
	}

	pos, err := e.repo.GetPosition(staker)
	if err != nil {
		return 0, err
	}
	if pos == nil {
		pos = &models.StakerPosition{Staker: staker}
	}
	if pos.Balance > 0 {
		pos.StakeStart = rewardmath.WeightedStakeStart(pos.Balance, pos.StakeStart, now, received)
	} else {
		pos.StakeStart = now
	}
	pos.Balance += received

	meta.Escrow += received
	meta.TotalStaked += received

	if err := e.repo.PutPosition(pos); err != nil {
		return 0, err
	}
	if err := e.repo.PutStakingMeta(meta); err != nil {
		return 0, err
	}

	e.stakeCounter.Add(1)
	e.stakedGauge.Set(int64(meta.TotalStaked))
	e.escrowGauge.Set(int64(meta.Escrow))
	logger.Logger.Info("stake",
		zap.String("staker", staker),
		zap.Uint64("requested", amount),
		zap.Uint64("received", received),
		zap.Uint64("balance", pos.Balance))
	return received, nil
}

// Unstake returns principal to the caller. A full exit clears the stake-start
// timestamp. Rewards are deliberately not auto-claimed; claim timing stays
// entirely under caller control.
func (e *Engine) Unstake(staker string, amount uint64, to string) error {
	if staker == "" || to == "" {
		return ErrZeroAddress
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	pos, err := e.repo.GetPosition(staker)
	if err != nil {
		return err
	}
	if pos == nil || pos.Balance < amount {
		return ErrInsufficientStake
	}
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return err
	}
	if amount > meta.Escrow {
		return ErrInsufficientEscrow
	}
	if err := e.settleAll(e.now(), meta.TotalStaked); err != nil {
		return err
	}

	tok, err := e.tokens.Token(e.cfg.PrincipalToken)
	if err != nil {
		return err
	}
	if err := tok.Transfer(to, amount); err != nil {
		return errors.Wrap(err, "unstake transfer")
	}

	pos.Balance -= amount
	meta.Escrow -= amount
	meta.TotalStaked -= amount

	if pos.Balance == 0 {
		err = e.repo.DeletePosition(staker)
	} else {
		err = e.repo.PutPosition(pos)
	}
	if err != nil {
		return err
	}
	if err := e.repo.PutStakingMeta(meta); err != nil {
		return err
	}

	e.unstakeCounter.Add(1)
	e.stakedGauge.Set(int64(meta.TotalStaked))
	e.escrowGauge.Set(int64(meta.Escrow))
	logger.Logger.Info("unstake",
		zap.String("staker", staker),
		zap.Uint64("amount", amount),
		zap.Uint64("remaining", pos.Balance))
	return nil
}

// VotingPower is balance times whole time units held, zero for accounts that
// have never staked or staked at the queried instant. Power accrued in the
// same second as the stake is zero, which is what defeats flash staking.
func (e *Engine) VotingPower(staker string, at int64) (uint64, error) {
	pos, err := e.repo.GetPosition(staker)
	if err != nil {
		return 0, err
	}
	if pos == nil {
		return 0, nil
	}
	return rewardmath.VotingPower(pos.Balance, pos.StakeStart, at, e.cfg.PowerTimeUnit), nil
}

// Position returns the staker's position, nil when nothing is staked.
func (e *Engine) Position(staker string) (*models.StakerPosition, error) {
	return e.repo.GetPosition(staker)
}

// TotalStaked returns the sum of all receipt balances.
func (e *Engine) TotalStaked() (uint64, error) {
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return 0, err
	}
	return meta.TotalStaked, nil
}

// Escrow returns the principal held on behalf of stakers.
func (e *Engine) Escrow() (uint64, error) {
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return 0, err
	}
	return meta.Escrow, nil
}

// Now reports the engine clock, injectable in tests.
func (e *Engine) Now() int64 { return e.now() }
