package staking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"govstake-project/logger"
	"govstake-project/models"
	"govstake-project/token"
)

const day = int64(86400)

// memStakingRepo is an in-memory stand-in for the LevelDB repository.
type memStakingRepo struct {
	positions map[string]*models.StakerPosition
	rewards   map[string]*models.RewardTokenState
	meta      models.StakingMeta
}

func newMemStakingRepo() *memStakingRepo {
	return &memStakingRepo{
		positions: make(map[string]*models.StakerPosition),
		rewards:   make(map[string]*models.RewardTokenState),
	}
}

func (m *memStakingRepo) PutPosition(p *models.StakerPosition) error {
	cp := *p
	m.positions[p.Staker] = &cp
	return nil
}

func (m *memStakingRepo) GetPosition(staker string) (*models.StakerPosition, error) {
	p, ok := m.positions[staker]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStakingRepo) DeletePosition(staker string) error {
	delete(m.positions, staker)
	return nil
}

func (m *memStakingRepo) PutRewardToken(r *models.RewardTokenState) error {
	cp := *r
	m.rewards[r.Token] = &cp
	return nil
}

func (m *memStakingRepo) GetRewardToken(tok string) (*models.RewardTokenState, error) {
	r, ok := m.rewards[tok]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStakingRepo) DeleteRewardToken(tok string) error {
	delete(m.rewards, tok)
	return nil
}

func (m *memStakingRepo) ListRewardTokens() ([]*models.RewardTokenState, error) {
	out := make([]*models.RewardTokenState, 0, len(m.rewards))
	for _, r := range m.rewards {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStakingRepo) GetStakingMeta() (*models.StakingMeta, error) {
	cp := m.meta
	return &cp, nil
}

func (m *memStakingRepo) PutStakingMeta(meta *models.StakingMeta) error {
	m.meta = *meta
	return nil
}

// memLedger is a multi-token in-memory ledger with optional per-token
// transfer fees, enough to model fee-deducting tokens.
type memLedger struct {
	balances map[string]map[string]uint64
	feeBps   map[string]uint64
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances: make(map[string]map[string]uint64),
		feeBps:   make(map[string]uint64),
	}
}

func (l *memLedger) mint(symbol, account string, amount uint64) {
	if l.balances[symbol] == nil {
		l.balances[symbol] = make(map[string]uint64)
	}
	l.balances[symbol][account] += amount
}

func (l *memLedger) transfer(symbol, from, to string, amount uint64) error {
	if l.balances[symbol] == nil || l.balances[symbol][from] < amount {
		return fmt.Errorf("insufficient %s balance", symbol)
	}
	credited := amount - amount*l.feeBps[symbol]/10000
	l.balances[symbol][from] -= amount
	l.balances[symbol][to] += credited
	return nil
}

type memToken struct {
	ledger *memLedger
	symbol string
	holder string
}

func (t *memToken) Symbol() string { return t.symbol }

func (t *memToken) Transfer(to string, amount uint64) error {
	return t.ledger.transfer(t.symbol, t.holder, to, amount)
}

func (t *memToken) TransferFrom(from, to string, amount uint64) error {
	return t.ledger.transfer(t.symbol, from, to, amount)
}

func (t *memToken) BalanceOf(account string) (uint64, error) {
	return t.ledger.balances[t.symbol][account], nil
}

type memResolver struct {
	ledger *memLedger
	holder string
}

func (r *memResolver) Token(symbol string) (token.Token, error) {
	return &memToken{ledger: r.ledger, symbol: symbol, holder: r.holder}, nil
}

const engineAccount = "staking-engine"

func newTestEngine(t *testing.T) (*Engine, *memStakingRepo, *memLedger, *int64) {
	t.Helper()
	logger.Logger = zap.NewNop()

	repo := newMemStakingRepo()
	ledger := newMemLedger()
	eng := NewEngine(repo, &memResolver{ledger: ledger, holder: engineAccount}, Config{
		PrincipalToken:  "PRJ",
		Account:         engineAccount,
		Admin:           "admin",
		StreamWindow:    3 * day,
		MaxRewardTokens: 2,
		MinAccrual:      1,
		PowerTimeUnit:   1,
	})
	clock := int64(1_000_000)
	eng.now = func() int64 { return clock }
	return eng, repo, ledger, &clock
}

func TestStakeAndUnstake(t *testing.T) {
	eng, repo, ledger, _ := newTestEngine(t)
	ledger.mint("PRJ", "alice", 1000)

	received, err := eng.Stake("alice", 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), received)

	meta, _ := repo.GetStakingMeta()
	assert.Equal(t, uint64(400), meta.Escrow)
	assert.Equal(t, uint64(400), meta.TotalStaked)

	require.NoError(t, eng.Unstake("alice", 150, "alice"))
	pos, _ := repo.GetPosition("alice")
	assert.Equal(t, uint64(250), pos.Balance)
	assert.Equal(t, uint64(750), ledger.balances["PRJ"]["alice"])
}

func TestStakeValidation(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)

	_, err := eng.Stake("", 10)
	assert.ErrorIs(t, err, ErrZeroAddress)
	_, err = eng.Stake("alice", 0)
	assert.ErrorIs(t, err, ErrZeroAmount)
	err = eng.Unstake("alice", 10, "alice")
	assert.ErrorIs(t, err, ErrInsufficientStake)
}

func TestStakeMeasuresReceivedWithFeeToken(t *testing.T) {
	eng, repo, ledger, _ := newTestEngine(t)
	ledger.feeBps["PRJ"] = 1000 // 10% burned in flight
	ledger.mint("PRJ", "alice", 1000)

	received, err := eng.Stake("alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), received)

	meta, _ := repo.GetStakingMeta()
	assert.Equal(t, uint64(900), meta.Escrow)
	assert.Equal(t, uint64(900), ledger.balances["PRJ"][engineAccount])
}

func TestTopUpPreservesVotingPower(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 1000)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)

	*clock += 100
	before, err := eng.VotingPower("alice", *clock)
	require.NoError(t, err)
	assert.Equal(t, uint64(100*100), before)

	_, err = eng.Stake("alice", 300)
	require.NoError(t, err)
	after, err := eng.VotingPower("alice", *clock)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSameInstantStakeHasZeroPower(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)

	power, err := eng.VotingPower("alice", *clock)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), power)
}

func TestFullExitClearsPosition(t *testing.T) {
	eng, repo, ledger, _ := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)
	require.NoError(t, eng.Unstake("alice", 100, "alice"))

	pos, err := repo.GetPosition("alice")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, uint64(100), ledger.balances["PRJ"]["alice"])
}

func TestAccrueCarryForward(t *testing.T) {
	eng, repo, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)
	ledger.mint("RWD", "funder", 1000)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)

	// 600 units over a 3-day window
	_, err = eng.Accrue("RWD", "funder", 600)
	require.NoError(t, err)

	// one day in: 200 vested, 400 unvested; a 1-unit top-up must carry the
	// 400 forward, not destroy it
	*clock += day
	_, err = eng.Accrue("RWD", "funder", 1)
	require.NoError(t, err)

	state, err := repo.GetRewardToken("RWD")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), state.AvailablePool)
	assert.Equal(t, uint64(401), state.StreamTotal)

	// run the fresh window out; the sole staker can claim everything
	*clock += 3 * day
	claimed, err := eng.Claim("alice", []string{"RWD"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(601), claimed["RWD"])
	assert.Equal(t, uint64(601), ledger.balances["RWD"]["alice"])

	state, _ = repo.GetRewardToken("RWD")
	assert.Equal(t, uint64(0), state.AvailablePool)
	assert.Equal(t, uint64(0), state.StreamTotal)
}

func TestRewardConservation(t *testing.T) {
	eng, repo, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)
	ledger.mint("RWD", "funder", 10_000)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)

	credited := uint64(0)
	claimed := uint64(0)
	steps := []struct {
		advance int64
		accrue  uint64
		claim   bool
	}{
		{0, 600, false},
		{day / 2, 0, true},
		{day / 3, 777, false},
		{day, 0, true},
		{5 * day, 13, true},
		{4 * day, 0, true},
	}
	for _, s := range steps {
		*clock += s.advance
		if s.accrue > 0 {
			got, err := eng.Accrue("RWD", "funder", s.accrue)
			require.NoError(t, err)
			credited += got
		}
		if s.claim {
			got, err := eng.Claim("alice", []string{"RWD"}, "alice")
			require.NoError(t, err)
			claimed += got["RWD"]
		}
		state, err := repo.GetRewardToken("RWD")
		require.NoError(t, err)
		require.Equal(t, credited, claimed+state.AvailablePool+state.StreamTotal,
			"conservation must hold at every step")
	}
}

func TestStreamPausesWithNoStakers(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)
	ledger.mint("RWD", "funder", 300)

	// rewards land before anyone stakes
	_, err := eng.Accrue("RWD", "funder", 300)
	require.NoError(t, err)

	// a day of nobody staked must not vest into a void
	*clock += day
	_, err = eng.Stake("alice", 100)
	require.NoError(t, err)

	*clock += 3 * day
	claimed, err := eng.Claim("alice", []string{"RWD"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), claimed["RWD"])
}

func TestUnstakeDoesNotAutoClaim(t *testing.T) {
	eng, repo, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)
	ledger.mint("RWD", "funder", 600)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)
	_, err = eng.Accrue("RWD", "funder", 600)
	require.NoError(t, err)

	*clock += 4 * day
	require.NoError(t, eng.Unstake("alice", 100, "alice"))

	// rewards stay behind in the pool
	assert.Equal(t, uint64(0), ledger.balances["RWD"]["alice"])
	state, _ := repo.GetRewardToken("RWD")
	assert.Equal(t, uint64(600), state.AvailablePool)
}

func TestAccrueDustRejected(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	eng.cfg.MinAccrual = 1000
	ledger.mint("RWD", "funder", 500)

	_, err := eng.Accrue("RWD", "funder", 500)
	assert.ErrorIs(t, err, ErrDustAccrual)
}

func TestRewardTokenSlotCap(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	for _, sym := range []string{"AAA", "BBB", "CCC", "DDD"} {
		ledger.mint(sym, "funder", 100)
	}

	_, err := eng.Accrue("AAA", "funder", 100)
	require.NoError(t, err)
	_, err = eng.Accrue("BBB", "funder", 100)
	require.NoError(t, err)
	_, err = eng.Accrue("CCC", "funder", 100)
	assert.ErrorIs(t, err, ErrRewardSlotsFull)

	// whitelisted tokens are exempt from the cap
	require.NoError(t, eng.SetWhitelisted("admin", "DDD", true))
	_, err = eng.Accrue("DDD", "funder", 100)
	require.NoError(t, err)
}

func TestValidateAccrualMatchesAccrue(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	for _, sym := range []string{"AAA", "BBB"} {
		ledger.mint(sym, "funder", 100)
	}

	assert.ErrorIs(t, eng.ValidateAccrual("", 100), ErrZeroAddress)
	assert.ErrorIs(t, eng.ValidateAccrual("AAA", 0), ErrZeroAmount)

	_, err := eng.Accrue("AAA", "funder", 100)
	require.NoError(t, err)
	_, err = eng.Accrue("BBB", "funder", 100)
	require.NoError(t, err)

	// both slots taken: a new token is refused, known ones and the
	// principal still pass
	assert.ErrorIs(t, eng.ValidateAccrual("CCC", 100), ErrRewardSlotsFull)
	assert.NoError(t, eng.ValidateAccrual("AAA", 100))
	assert.NoError(t, eng.ValidateAccrual("PRJ", 100))

	eng.cfg.MinAccrual = 1000
	assert.ErrorIs(t, eng.ValidateAccrual("AAA", 500), ErrDustAccrual)
}

func TestWhitelistRequiresAdmin(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	err := eng.SetWhitelisted("mallory", "RWD", true)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCleanupSafety(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)
	ledger.mint("RWD", "funder", 600)

	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)
	_, err = eng.Accrue("RWD", "funder", 600)
	require.NoError(t, err)

	// pool or stream nonzero: cleanup must refuse
	err = eng.Cleanup("RWD")
	assert.ErrorIs(t, err, ErrRewardTokenNotDone)

	*clock += 4 * day
	_, err = eng.Claim("alice", []string{"RWD"}, "alice")
	require.NoError(t, err)

	require.NoError(t, eng.Cleanup("RWD"))
	states, _ := eng.RewardTokens()
	assert.Empty(t, states)
}

func TestCleanupProtectsWhitelistedAndPrincipal(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	ledger.mint("PRJ", "funder", 100)

	require.NoError(t, eng.SetWhitelisted("admin", "WL", true))
	assert.ErrorIs(t, eng.Cleanup("WL"), ErrProtectedRewardToken)

	_, err := eng.Accrue("PRJ", "funder", 100)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Cleanup("PRJ"), ErrProtectedRewardToken)
}

func TestClaimProportionalAcrossStakers(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t)
	ledger.mint("PRJ", "alice", 75)
	ledger.mint("PRJ", "bob", 25)
	ledger.mint("RWD", "funder", 400)

	_, err := eng.Stake("alice", 75)
	require.NoError(t, err)
	_, err = eng.Stake("bob", 25)
	require.NoError(t, err)
	_, err = eng.Accrue("RWD", "funder", 400)
	require.NoError(t, err)

	*clock += 4 * day
	got, err := eng.Claim("alice", []string{"RWD"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), got["RWD"])

	// bob claims from the reduced pool: 25/100 of the remaining 100
	got, err = eng.Claim("bob", []string{"RWD"}, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(25), got["RWD"])
}

func TestClaimUnknownToken(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	ledger.mint("PRJ", "alice", 100)
	_, err := eng.Stake("alice", 100)
	require.NoError(t, err)

	_, err = eng.Claim("alice", []string{"NOPE"}, "alice")
	assert.ErrorIs(t, err, ErrUnknownRewardToken)
}
