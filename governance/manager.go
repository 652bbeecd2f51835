package governance

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"govstake-project/logger"
	"govstake-project/metrics"
	"govstake-project/models"
	"govstake-project/repository"
	"govstake-project/rewardmath"
	"govstake-project/token"
)

// StakingBackend is what the manager reads from the staking engine: live
// supply and voting power for quorum and tallies, positions for the
// flash-stake guard, and the boost accrual entry point.
type StakingBackend interface {
	TotalStaked() (uint64, error)
	Position(staker string) (*models.StakerPosition, error)
	VotingPower(staker string, at int64) (uint64, error)
	ValidateAccrual(symbol string, amount uint64) error
	AccrueFromTreasury(symbol string, received uint64) error
	Account() string
}

// Vault moves treasury funds on the manager's behalf. The manager must be
// the only holder of the reference; nothing else may move vault funds.
type Vault interface {
	MoveFunds(symbol, to string, amount uint64) error
	Balance(symbol string) (uint64, error)
	Account() string
}

// Manager runs the proposal/voting/execution cycle state machine. Public
// operations are serialized by a single in-flight guard; a call arriving
// while another is mid-flight is rejected rather than queued, which also
// rejects reentrant calls made from inside the isolated movement boundary.
type Manager struct {
	repo    repository.GovernanceRepositoryInterface
	staking StakingBackend
	vault   Vault
	tokens  token.Resolver // handles bound to the staking account, for boost measurement and refunds
	params  ParamSource

	now  func() int64
	busy atomic.Bool

	proposalCounter metrics.Counter
	voteCounter     metrics.Counter
	executionVec    metrics.CounterVec
}

func NewManager(
	repo repository.GovernanceRepositoryInterface,
	stakingBackend StakingBackend,
	vault Vault,
	tokens token.Resolver,
	params ParamSource,
) *Manager {
	return &Manager{
		repo:    repo,
		staking: stakingBackend,
		vault:   vault,
		tokens:  tokens,
		params:  params,
		now:     func() int64 { return time.Now().Unix() },

		proposalCounter: metrics.GetCounter("governance_proposals_total"),
		voteCounter:     metrics.GetCounter("governance_votes_total"),
		executionVec:    metrics.GetCounterVec("governance_executions_total", []string{"outcome"}),
	}
}

func (g *Manager) enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *Manager) exit() { g.busy.Store(false) }

// Propose creates a proposal inside the current cycle, auto-starting a cycle
// when none is current or the previous one has lapsed. On success the live
// total supply and the two governance-math parameters are frozen into the
// record, and the cycle's window bounds are copied verbatim.
func (g *Manager) Propose(proposer string, kind models.ProposalKind, symbol string, amount uint64, recipient string) (uint64, error) {
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	if kind == models.KindTransfer && recipient == "" {
		return 0, ErrZeroRecipient
	}
	if proposer == "" {
		return 0, ErrInsufficientProposerStake
	}
	if err := g.enter(); err != nil {
		return 0, err
	}
	defer g.exit()

	now := g.now()
	cycle, err := g.ensureCurrentCycle(now)
	if err != nil {
		return 0, err
	}
	if now > cycle.ProposalWindowEnd {
		return 0, ErrProposalWindowClosed
	}

	supply, err := g.staking.TotalStaked()
	if err != nil {
		return 0, err
	}
	pos, err := g.staking.Position(proposer)
	if err != nil {
		return 0, err
	}
	p := g.params.Params()
	minStake := rewardmath.BpsOf(supply, p.MinStakeBps)
	if pos == nil || pos.Balance == 0 || pos.Balance < minStake {
		return 0, ErrInsufficientProposerStake
	}

	vaultBal, err := g.vault.Balance(symbol)
	if err != nil {
		return 0, err
	}
	if vaultBal < amount {
		return 0, ErrInsufficientVaultBalance
	}
	if amount > rewardmath.BpsOf(vaultBal, p.MaxAmountBps) {
		return 0, ErrAmountExceedsCap
	}

	active := cycle.ActiveBoost
	if kind == models.KindTransfer {
		active = cycle.ActiveTransfer
	}
	if active >= p.MaxActivePerKind {
		return 0, ErrTooManyProposals
	}
	proposed, err := g.repo.HasProposed(cycle.ID, kind, proposer)
	if err != nil {
		return 0, err
	}
	if proposed {
		return 0, ErrAlreadyProposedKind
	}

	meta, err := g.repo.GetGovernanceMeta()
	if err != nil {
		return 0, err
	}
	meta.NextProposalID++

	prop := &models.Proposal{
		ID:        meta.NextProposalID,
		Kind:      kind,
		Proposer:  proposer,
		Token:     symbol,
		Amount:    amount,
		Recipient: recipient,
		CycleID:   cycle.ID,

		VotingStartsAt: cycle.ProposalWindowEnd,
		VotingEndsAt:   cycle.VotingWindowEnd,

		TotalSupplySnapshot: supply,
		QuorumBpsSnapshot:   p.QuorumBps,
		ApprovalBpsSnapshot: p.ApprovalBps,
	}

	if kind == models.KindBoost {
		cycle.ActiveBoost++
	} else {
		cycle.ActiveTransfer++
	}
	if err := g.repo.PutProposal(prop); err != nil {
		return 0, err
	}
	if err := g.repo.MarkProposed(cycle.ID, kind, proposer); err != nil {
		return 0, err
	}
	if err := g.repo.PutCycle(cycle); err != nil {
		return 0, err
	}
	if err := g.repo.PutGovernanceMeta(meta); err != nil {
		return 0, err
	}

	g.proposalCounter.Add(1)
	logger.Logger.Info("proposal created",
		zap.Uint64("id", prop.ID),
		zap.Uint64("cycle", cycle.ID),
		zap.String("kind", string(kind)),
		zap.String("token", symbol),
		zap.Uint64("amount", amount))
	return prop.ID, nil
}

// Vote casts the voter's current voting power on a proposal. Power is never
// snapshotted; its own time weighting is the manipulation defense. A stake
// made at the instant of the vote is rejected outright even though its power
// would already be zero.
func (g *Manager) Vote(voter string, proposalID uint64, support bool) error {
	if voter == "" {
		return ErrNoVotingPower
	}
	if err := g.enter(); err != nil {
		return err
	}
	defer g.exit()

	prop, err := g.repo.GetProposal(proposalID)
	if err != nil {
		return err
	}
	if prop == nil {
		return ErrProposalNotFound
	}
	now := g.now()
	if now < prop.VotingStartsAt {
		return ErrVotingNotStarted
	}
	if now > prop.VotingEndsAt || prop.Executed || prop.Defeated {
		return ErrVotingClosed
	}

	voted, err := g.repo.HasVoted(proposalID, voter)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}

	pos, err := g.staking.Position(voter)
	if err != nil {
		return err
	}
	if pos == nil || pos.Balance == 0 {
		return ErrNoVotingPower
	}
	if pos.StakeStart >= now {
		return ErrStakeTooRecent
	}
	power, err := g.staking.VotingPower(voter, now)
	if err != nil {
		return err
	}
	if power == 0 {
		return ErrNoVotingPower
	}

	if support {
		prop.YesVotes += power
	} else {
		prop.NoVotes += power
	}
	prop.VotedBalance += pos.Balance

	if err := g.repo.PutVote(&models.VoteRecord{
		ProposalID: proposalID,
		Voter:      voter,
		Support:    support,
		Power:      power,
		VotedAt:    now,
	}); err != nil {
		return err
	}
	if err := g.repo.PutProposal(prop); err != nil {
		return err
	}

	g.voteCounter.Add(1)
	logger.Logger.Info("vote",
		zap.Uint64("proposal", proposalID),
		zap.String("voter", voter),
		zap.Bool("support", support),
		zap.Uint64("power", power))
	return nil
}

// ensureCurrentCycle returns the cycle proposals should join, starting a new
// one when none exists or the previous one's voting window has elapsed.
func (g *Manager) ensureCurrentCycle(now int64) (*models.Cycle, error) {
	meta, err := g.repo.GetGovernanceMeta()
	if err != nil {
		return nil, err
	}
	if meta.CurrentCycleID != 0 {
		cycle, err := g.repo.GetCycle(meta.CurrentCycleID)
		if err != nil {
			return nil, err
		}
		if cycle != nil && now <= cycle.VotingWindowEnd {
			return cycle, nil
		}
	}
	return g.startCycle(now, meta)
}

// startCycle creates and persists the next cycle after verifying no
// legitimate winner of the previous cycle would be silently discarded.
func (g *Manager) startCycle(now int64, meta *models.GovernanceMeta) (*models.Cycle, error) {
	if meta.CurrentCycleID != 0 {
		supply, err := g.staking.TotalStaked()
		if err != nil {
			return nil, err
		}
		winner, err := g.winner(meta.CurrentCycleID, supply)
		if err != nil {
			return nil, err
		}
		if winner != nil && !winner.Executed {
			return nil, ErrWinnerUnexecuted
		}
	}
	p := g.params.Params()
	cycle := &models.Cycle{
		ID:                meta.CurrentCycleID + 1,
		ProposalWindowEnd: now + p.ProposalWindow,
		VotingWindowEnd:   now + p.ProposalWindow + p.VotingWindow,
	}
	if err := g.repo.PutCycle(cycle); err != nil {
		return nil, err
	}
	meta.CurrentCycleID = cycle.ID
	if err := g.repo.PutGovernanceMeta(meta); err != nil {
		return nil, err
	}
	logger.Logger.Info("cycle started",
		zap.Uint64("cycle", cycle.ID),
		zap.Int64("proposal_window_end", cycle.ProposalWindowEnd),
		zap.Int64("voting_window_end", cycle.VotingWindowEnd))
	return cycle, nil
}

// StartNewCycle is permissionless: anyone may advance governance once the
// current cycle's voting window has elapsed, unless a succeeded proposal is
// still awaiting execution.
func (g *Manager) StartNewCycle() (*models.Cycle, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.exit()
	return g.startNewCycleLocked(g.now())
}

func (g *Manager) startNewCycleLocked(now int64) (*models.Cycle, error) {
	meta, err := g.repo.GetGovernanceMeta()
	if err != nil {
		return nil, err
	}
	if meta.CurrentCycleID != 0 {
		cycle, err := g.repo.GetCycle(meta.CurrentCycleID)
		if err != nil {
			return nil, err
		}
		if cycle != nil && now <= cycle.VotingWindowEnd {
			return nil, ErrCycleStillRunning
		}
	}
	return g.startCycle(now, meta)
}

// CurrentCycle returns the cycle proposals currently join, nil before the
// first one starts.
func (g *Manager) CurrentCycle() (*models.Cycle, error) {
	meta, err := g.repo.GetGovernanceMeta()
	if err != nil {
		return nil, err
	}
	if meta.CurrentCycleID == 0 {
		return nil, nil
	}
	return g.repo.GetCycle(meta.CurrentCycleID)
}

// Now reports the manager clock, injectable in tests.
func (g *Manager) Now() int64 { return g.now() }
