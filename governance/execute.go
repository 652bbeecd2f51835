package governance

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"govstake-project/logger"
	"govstake-project/models"
	"govstake-project/rewardmath"
)

// requiredQuorum computes the adaptive turnout requirement. The effective
// supply is min(current, snapshot): growth after creation cannot dilute the
// denominator, shrinkage cannot deadlock it. The floor is always taken from
// the snapshot so a tiny-snapshot proposal cannot dodge it.
func (g *Manager) requiredQuorum(p *models.Proposal, currentSupply uint64) uint64 {
	effective := currentSupply
	if p.TotalSupplySnapshot < effective {
		effective = p.TotalSupplySnapshot
	}
	percentage := rewardmath.BpsOf(effective, p.QuorumBpsSnapshot)
	minimum := rewardmath.BpsOf(p.TotalSupplySnapshot, g.params.Params().MinimumQuorumBps)
	if minimum > percentage {
		return minimum
	}
	return percentage
}

func (g *Manager) quorumMet(p *models.Proposal, currentSupply uint64) bool {
	return p.VotedBalance >= g.requiredQuorum(p, currentSupply)
}

// approvalMet checks the yes ratio against the snapshot threshold. A ratio,
// not an absolute count: voting "no" on a rival cannot raise one's own
// standing.
func approvalMet(p *models.Proposal) bool {
	return rewardmath.RatioAtLeastBps(p.YesVotes, p.YesVotes+p.NoVotes, p.ApprovalBpsSnapshot)
}

// winner returns the cycle's single winning proposal: among those meeting
// quorum and approval, the highest yes ratio; ties go to the earliest stored.
func (g *Manager) winner(cycleID uint64, currentSupply uint64) (*models.Proposal, error) {
	props, err := g.repo.ListProposalsByCycle(cycleID)
	if err != nil {
		return nil, err
	}
	var best *models.Proposal
	for _, p := range props {
		if p.Defeated || p.Abandoned {
			continue
		}
		if !g.quorumMet(p, currentSupply) || !approvalMet(p) {
			continue
		}
		if best == nil || rewardmath.RatioGreater(p.YesVotes, p.NoVotes, best.YesVotes, best.NoVotes) {
			best = p
		}
	}
	return best, nil
}

// ProposalState derives the lifecycle state from stored fields and time.
func (g *Manager) ProposalState(p *models.Proposal, now int64, currentSupply uint64) (models.ProposalState, error) {
	switch {
	case p.Executed:
		return models.StateExecuted, nil
	case p.Defeated:
		return models.StateDefeated, nil
	case now < p.VotingStartsAt:
		return models.StatePending, nil
	case now <= p.VotingEndsAt:
		return models.StateActive, nil
	}
	w, err := g.winner(p.CycleID, currentSupply)
	if err != nil {
		return "", err
	}
	if w != nil && w.ID == p.ID {
		return models.StateSucceeded, nil
	}
	return models.StateDefeated, nil
}

// Execute settles a proposal once its voting window has closed. A loser is
// marked defeated and the call returns cleanly: the state change must persist
// even on the failure path. The winner's executed flag and counter decrement
// are committed before the fund movement is attempted, and a movement failure
// is recorded rather than propagated so no token can jam the cycle.
func (g *Manager) Execute(proposalID uint64) (models.ProposalState, error) {
	if err := g.enter(); err != nil {
		return "", err
	}
	defer g.exit()

	prop, err := g.repo.GetProposal(proposalID)
	if err != nil {
		return "", err
	}
	if prop == nil {
		return "", ErrProposalNotFound
	}
	if prop.Executed {
		return models.StateExecuted, ErrAlreadyExecuted
	}
	now := g.now()
	if now <= prop.VotingEndsAt {
		return "", ErrVotingStillOpen
	}

	supply, err := g.staking.TotalStaked()
	if err != nil {
		return "", err
	}
	w, err := g.winner(prop.CycleID, supply)
	if err != nil {
		return "", err
	}
	if w == nil || w.ID != prop.ID {
		prop.Defeated = true
		if err := g.repo.PutProposal(prop); err != nil {
			return "", err
		}
		g.executionVec.AddWithLabels(1, map[string]string{"outcome": "defeated"})
		logger.Logger.Info("proposal defeated", zap.Uint64("proposal", prop.ID))
		return models.StateDefeated, nil
	}

	// commit before moving funds: whatever the token does next, the cycle
	// has already advanced past this proposal
	prop.Executed = true
	prop.ExecAttempts = 1
	prop.LastAttemptAt = now
	cycle, err := g.repo.GetCycle(prop.CycleID)
	if err != nil {
		return "", err
	}
	if cycle != nil {
		if prop.Kind == models.KindBoost {
			cycle.ActiveBoost--
		} else {
			cycle.ActiveTransfer--
		}
		cycle.Executed = true
		if err := g.repo.PutCycle(cycle); err != nil {
			return "", err
		}
	}
	if err := g.repo.PutProposal(prop); err != nil {
		return "", err
	}

	if err := g.attemptMovement(prop); err != nil {
		prop.ExecutionFailed = true
		prop.FailureReason = err.Error()
		if putErr := g.repo.PutProposal(prop); putErr != nil {
			return models.StateExecuted, putErr
		}
		g.executionVec.AddWithLabels(1, map[string]string{"outcome": "failed"})
		logger.Logger.Warn("proposal executed, movement failed",
			zap.Uint64("proposal", prop.ID),
			zap.String("reason", prop.FailureReason))
		return models.StateExecuted, nil
	}

	g.executionVec.AddWithLabels(1, map[string]string{"outcome": "executed"})
	logger.Logger.Info("proposal executed",
		zap.Uint64("proposal", prop.ID),
		zap.String("kind", string(prop.Kind)),
		zap.Uint64("amount", prop.Amount))
	return models.StateExecuted, nil
}

// attemptMovement performs the winning proposal's fund movement behind an
// isolation boundary: any failure, including a panic inside collaborator
// code, comes back as an error value.
func (g *Manager) attemptMovement(p *models.Proposal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("movement panicked: %v", r)
		}
	}()

	switch p.Kind {
	case models.KindBoost:
		// reject before debiting the treasury: a dust or slot-cap failure
		// after MoveFunds would strand the amount in the staking account
		if err := g.staking.ValidateAccrual(p.Token, p.Amount); err != nil {
			return errors.Wrap(err, "boost accrual rejected")
		}
		tok, err := g.tokens.Token(p.Token)
		if err != nil {
			return err
		}
		before, err := tok.BalanceOf(g.staking.Account())
		if err != nil {
			return err
		}
		if err := g.vault.MoveFunds(p.Token, g.staking.Account(), p.Amount); err != nil {
			return errors.Wrap(err, "move boost funds")
		}
		after, err := tok.BalanceOf(g.staking.Account())
		if err != nil {
			return err
		}
		delta := after - before
		if err := g.staking.AccrueFromTreasury(p.Token, delta); err != nil {
			// the treasury was already debited; return the measured delta so
			// a retry starts from the same vault balance
			if delta > 0 {
				if refundErr := tok.Transfer(g.vault.Account(), delta); refundErr != nil {
					return errors.Wrapf(err, "accrue boost (refund failed: %v)", refundErr)
				}
			}
			return errors.Wrap(err, "accrue boost")
		}
		return nil
	case models.KindTransfer:
		return errors.Wrap(g.vault.MoveFunds(p.Token, p.Recipient, p.Amount), "move transfer funds")
	}
	return ErrInvalidKind
}

// RetryExecution reattempts a recorded-failed movement after the cooldown.
// Attempts are bounded; past the limit only SkipExecution remains.
func (g *Manager) RetryExecution(proposalID uint64) error {
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
	if !prop.Executed || !prop.ExecutionFailed || prop.Abandoned {
		return ErrNotFailed
	}
	p := g.params.Params()
	if prop.ExecAttempts >= p.MaxExecAttempts {
		return ErrRetriesExhausted
	}
	now := g.now()
	if now < prop.LastAttemptAt+p.RetryCooldown {
		return ErrCooldownActive
	}

	prop.ExecAttempts++
	prop.LastAttemptAt = now
	if err := g.attemptMovement(prop); err != nil {
		prop.FailureReason = err.Error()
		if putErr := g.repo.PutProposal(prop); putErr != nil {
			return putErr
		}
		g.executionVec.AddWithLabels(1, map[string]string{"outcome": "retry_failed"})
		logger.Logger.Warn("movement retry failed",
			zap.Uint64("proposal", prop.ID),
			zap.Int("attempts", prop.ExecAttempts))
		return nil
	}
	prop.ExecutionFailed = false
	prop.FailureReason = ""
	if err := g.repo.PutProposal(prop); err != nil {
		return err
	}
	g.executionVec.AddWithLabels(1, map[string]string{"outcome": "retry_succeeded"})
	logger.Logger.Info("movement retry succeeded", zap.Uint64("proposal", prop.ID))
	return nil
}

// SkipExecution abandons a movement that failed the maximum number of times
// and, when the cycle windows allow, forces the next cycle to start.
func (g *Manager) SkipExecution(proposalID uint64) error {
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
	if !prop.Executed || !prop.ExecutionFailed || prop.Abandoned {
		return ErrNotFailed
	}
	if prop.ExecAttempts < g.params.Params().MaxExecAttempts {
		return ErrRetriesRemaining
	}

	prop.Abandoned = true
	if err := g.repo.PutProposal(prop); err != nil {
		return err
	}
	logger.Logger.Warn("proposal movement abandoned", zap.Uint64("proposal", prop.ID))

	// best effort: advance governance immediately if the cycle is due
	if _, err := g.startNewCycleLocked(g.now()); err != nil && err != ErrCycleStillRunning {
		return err
	}
	return nil
}

// ProposalStatus bundles a proposal with its derived evaluation, for views.
type ProposalStatus struct {
	Proposal       *models.Proposal     `json:"proposal"`
	State          models.ProposalState `json:"state"`
	RequiredQuorum uint64               `json:"required_quorum"`
	QuorumMet      bool                 `json:"quorum_met"`
	ApprovalMet    bool                 `json:"approval_met"`
	IsWinner       bool                 `json:"is_winner"`
}

// Status evaluates a proposal against live supply at the current time.
func (g *Manager) Status(proposalID uint64) (*ProposalStatus, error) {
	prop, err := g.repo.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, ErrProposalNotFound
	}
	supply, err := g.staking.TotalStaked()
	if err != nil {
		return nil, err
	}
	state, err := g.ProposalState(prop, g.now(), supply)
	if err != nil {
		return nil, err
	}
	w, err := g.winner(prop.CycleID, supply)
	if err != nil {
		return nil, err
	}
	return &ProposalStatus{
		Proposal:       prop,
		State:          state,
		RequiredQuorum: g.requiredQuorum(prop, supply),
		QuorumMet:      g.quorumMet(prop, supply),
		ApprovalMet:    approvalMet(prop),
		IsWinner:       w != nil && w.ID == prop.ID,
	}, nil
}
