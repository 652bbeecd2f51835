package staking

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"govstake-project/logger"
	"govstake-project/models"
	"govstake-project/rewardmath"
)

// accPerShare fixed-point scale
var accScale = uint256.NewInt(1_000_000_000_000)

// settle moves the vested slice of a stream into the claimable pool and
// re-anchors the window at now; the linear rate is unchanged by re-anchoring.
// With nobody staked the stream pauses instead: the remaining window shifts
// forward wholesale so unvested value waits for the next staker.
func settle(state *models.RewardTokenState, now int64, totalStaked uint64) {
	if state.AccPerShare == nil {
		state.AccPerShare = uint256.NewInt(0)
	}
	if state.StreamTotal == 0 || now <= state.StreamStart {
		return
	}
	if totalStaked == 0 {
		span := state.StreamEnd - state.StreamStart
		state.StreamStart = now
		state.StreamEnd = now + span
		return
	}
	vested := rewardmath.Vested(state.StreamTotal, state.StreamStart, state.StreamEnd, now)
	if vested == 0 {
		return
	}
	state.StreamTotal -= vested
	state.AvailablePool += vested
	state.StreamStart = now

	inc := new(uint256.Int).Mul(uint256.NewInt(vested), accScale)
	inc.Div(inc, uint256.NewInt(totalStaked))
	state.AccPerShare.Add(state.AccPerShare, inc)
}

// settleAll settles every registered stream and persists the updates.
func (e *Engine) settleAll(now int64, totalStaked uint64) error {
	states, err := e.repo.ListRewardTokens()
	if err != nil {
		return err
	}
	for _, state := range states {
		settle(state, now, totalStaked)
		if err := e.repo.PutRewardToken(state); err != nil {
			return err
		}
	}
	return nil
}

// activeRewardSlots counts registered tokens that occupy a slot: whitelisted
// tokens and the principal are exempt.
func (e *Engine) activeRewardSlots() (int, error) {
	states, err := e.repo.ListRewardTokens()
	if err != nil {
		return 0, err
	}
	active := 0
	for _, s := range states {
		if !s.Whitelisted && s.Token != e.cfg.PrincipalToken {
			active++
		}
	}
	return active, nil
}

// registerRewardToken loads or creates the bookkeeping record for a reward
// token, enforcing the slot cap on non-whitelisted registrations.
func (e *Engine) registerRewardToken(symbol string) (*models.RewardTokenState, error) {
	state, err := e.repo.GetRewardToken(symbol)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}
	if symbol != e.cfg.PrincipalToken {
		active, err := e.activeRewardSlots()
		if err != nil {
			return nil, err
		}
		if active >= e.cfg.MaxRewardTokens {
			return nil, ErrRewardSlotsFull
		}
	}
	return &models.RewardTokenState{Token: symbol, AccPerShare: uint256.NewInt(0)}, nil
}

// ValidateAccrual reports whether an accrual of the given size would be
// accepted, without moving or recording anything. Callers that must debit
// another account before crediting the stream check here first.
func (e *Engine) ValidateAccrual(symbol string, amount uint64) error {
	if symbol == "" {
		return ErrZeroAddress
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if amount < e.cfg.MinAccrual {
		return ErrDustAccrual
	}
	state, err := e.repo.GetRewardToken(symbol)
	if err != nil {
		return err
	}
	if state != nil || symbol == e.cfg.PrincipalToken {
		return nil
	}
	active, err := e.activeRewardSlots()
	if err != nil {
		return err
	}
	if active >= e.cfg.MaxRewardTokens {
		return ErrRewardSlotsFull
	}
	return nil
}

// credit folds a newly received amount into the token's stream: the in-flight
// stream is settled first, then the still-unvested remainder carries forward
// into a fresh window together with the new amount. Dropping the remainder
// here would destroy unvested value every time accruals overlap.
func (e *Engine) credit(state *models.RewardTokenState, received uint64, now int64, totalStaked uint64) {
	settle(state, now, totalStaked)
	remainder := state.StreamTotal
	state.StreamTotal = received + remainder
	state.StreamStart = now
	state.StreamEnd = now + e.cfg.StreamWindow
}

// Accrue admits new rewards for a token, pulled from the caller's account.
// The credited amount is what actually arrived, not what was requested.
func (e *Engine) Accrue(symbol, from string, amount uint64) (uint64, error) {
	if symbol == "" || from == "" {
		return 0, ErrZeroAddress
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	if amount < e.cfg.MinAccrual {
		return 0, ErrDustAccrual
	}
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()

	state, err := e.registerRewardToken(symbol)
	if err != nil {
		return 0, err
	}
	tok, err := e.tokens.Token(symbol)
	if err != nil {
		return 0, err
	}
	before, err := tok.BalanceOf(e.cfg.Account)
	if err != nil {
		return 0, err
	}
	if err := tok.TransferFrom(from, e.cfg.Account, amount); err != nil {
		return 0, errors.Wrap(err, "accrue transfer")
	}
	after, err := tok.BalanceOf(e.cfg.Account)
	if err != nil {
		return 0, err
	}
	received := after - before
	if received == 0 {
		return 0, ErrNothingReceived
	}

	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return 0, err
	}
	e.credit(state, received, e.now(), meta.TotalStaked)
	if err := e.repo.PutRewardToken(state); err != nil {
		return 0, err
	}

	e.accrueCounter.Add(1)
	logger.Logger.Info("accrue",
		zap.String("token", symbol),
		zap.Uint64("received", received),
		zap.Uint64("stream_total", state.StreamTotal))
	return received, nil
}

// AccrueFromTreasury credits funds that a governance boost already moved into
// the engine's account; the caller measured the received delta. Subject to
// the same dust floor and slot cap as a direct accrual.
func (e *Engine) AccrueFromTreasury(symbol string, received uint64) error {
	if symbol == "" {
		return ErrZeroAddress
	}
	if received == 0 {
		return ErrNothingReceived
	}
	if received < e.cfg.MinAccrual {
		return ErrDustAccrual
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	state, err := e.registerRewardToken(symbol)
	if err != nil {
		return err
	}
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return err
	}
	e.credit(state, received, e.now(), meta.TotalStaked)
	if err := e.repo.PutRewardToken(state); err != nil {
		return err
	}

	e.accrueCounter.Add(1)
	logger.Logger.Info("accrue from treasury",
		zap.String("token", symbol),
		zap.Uint64("received", received))
	return nil
}

// Claim pays out the caller's proportional share of each requested token's
// vested pool. Each claim rounds down and the pool is decremented by exactly
// the paid amount, so the sum of claims can never exceed the pool.
func (e *Engine) Claim(staker string, symbols []string, to string) (map[string]uint64, error) {
	if staker == "" || to == "" {
		return nil, ErrZeroAddress
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	pos, err := e.repo.GetPosition(staker)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.Balance == 0 {
		return nil, ErrInsufficientStake
	}
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return nil, err
	}

	now := e.now()
	claimed := make(map[string]uint64, len(symbols))
	for _, symbol := range symbols {
		state, err := e.repo.GetRewardToken(symbol)
		if err != nil {
			return claimed, err
		}
		if state == nil {
			return claimed, errors.Wrapf(ErrUnknownRewardToken, "%s", symbol)
		}
		settle(state, now, meta.TotalStaked)

		amount := rewardmath.ProportionalClaim(pos.Balance, state.AvailablePool, meta.TotalStaked)
		if amount > 0 {
			tok, err := e.tokens.Token(symbol)
			if err != nil {
				return claimed, err
			}
			if err := tok.Transfer(to, amount); err != nil {
				return claimed, errors.Wrapf(err, "claim transfer %s", symbol)
			}
			state.AvailablePool -= amount
		}
		if err := e.repo.PutRewardToken(state); err != nil {
			return claimed, err
		}
		claimed[symbol] = amount
	}

	e.claimCounter.Add(1)
	logger.Logger.Info("claim", zap.String("staker", staker), zap.Any("claimed", claimed))
	return claimed, nil
}

// Claimable reports what Claim would pay right now, per registered token.
func (e *Engine) Claimable(staker string) (map[string]uint64, error) {
	pos, err := e.repo.GetPosition(staker)
	if err != nil {
		return nil, err
	}
	meta, err := e.repo.GetStakingMeta()
	if err != nil {
		return nil, err
	}
	states, err := e.repo.ListRewardTokens()
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make(map[string]uint64, len(states))
	for _, state := range states {
		settle(state, now, meta.TotalStaked) // in-memory only
		if pos == nil {
			out[state.Token] = 0
			continue
		}
		out[state.Token] = rewardmath.ProportionalClaim(pos.Balance, state.AvailablePool, meta.TotalStaked)
	}
	return out, nil
}

// RewardTokens lists all registered reward token records.
func (e *Engine) RewardTokens() ([]*models.RewardTokenState, error) {
	return e.repo.ListRewardTokens()
}

// SetWhitelisted exempts a reward token from the slot cap and cleanup, or
// revokes the exemption. Admin only.
func (e *Engine) SetWhitelisted(caller, symbol string, flag bool) error {
	if caller != e.cfg.Admin {
		return ErrNotAuthorized
	}
	if symbol == "" {
		return ErrZeroAddress
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	state, err := e.repo.GetRewardToken(symbol)
	if err != nil {
		return err
	}
	if state == nil {
		if !flag {
			return errors.Wrapf(ErrUnknownRewardToken, "%s", symbol)
		}
		state = &models.RewardTokenState{Token: symbol, AccPerShare: uint256.NewInt(0)}
	}
	state.Whitelisted = flag
	return e.repo.PutRewardToken(state)
}

// Cleanup removes a drained reward token's bookkeeping. Permissionless and
// performed without ever calling into the token itself, so a reverting token
// cannot block its own removal. Only an unclaimed pool or a live stream can.
func (e *Engine) Cleanup(symbol string) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	state, err := e.repo.GetRewardToken(symbol)
	if err != nil {
		return err
	}
	if state == nil {
		return errors.Wrapf(ErrUnknownRewardToken, "%s", symbol)
	}
	if state.Whitelisted || symbol == e.cfg.PrincipalToken {
		return ErrProtectedRewardToken
	}
	if !state.Finished() {
		return ErrRewardTokenNotDone
	}
	if err := e.repo.DeleteRewardToken(symbol); err != nil {
		return err
	}
	logger.Logger.Info("reward token cleaned up", zap.String("token", symbol))
	return nil
}
