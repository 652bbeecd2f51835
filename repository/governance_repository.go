package repository

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"govstake-project/db"
	"govstake-project/models"
)

const (
	proposalPrefix  = "gov:prop:"
	cyclePrefix     = "gov:cycle:"
	votePrefix      = "gov:vote:"
	proposedPrefix  = "gov:once:"
	governanceMetaK = "gov:meta"
)

// GovernanceRepositoryInterface abstracts the cycle manager's storage.
// Get methods return (nil, nil) when the record does not exist.
type GovernanceRepositoryInterface interface {
	PutProposal(p *models.Proposal) error
	GetProposal(id uint64) (*models.Proposal, error)
	ListProposalsByCycle(cycleID uint64) ([]*models.Proposal, error)
	PutCycle(c *models.Cycle) error
	GetCycle(id uint64) (*models.Cycle, error)
	PutVote(v *models.VoteRecord) error
	HasVoted(proposalID uint64, voter string) (bool, error)
	MarkProposed(cycleID uint64, kind models.ProposalKind, proposer string) error
	HasProposed(cycleID uint64, kind models.ProposalKind, proposer string) (bool, error)
	GetGovernanceMeta() (*models.GovernanceMeta, error)
	PutGovernanceMeta(m *models.GovernanceMeta) error
}

// GovernanceRepository implements GovernanceRepositoryInterface on LevelDB.
// Proposal keys are zero-padded so prefix iteration yields ascending IDs,
// which is what makes winner tie-breaking deterministic.
type GovernanceRepository struct {
	db *db.LevelDB
}

func NewGovernanceRepository(db *db.LevelDB) *GovernanceRepository {
	return &GovernanceRepository{db: db}
}

func proposalKey(cycleID, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", proposalPrefix, cycleID, id))
}

func (r *GovernanceRepository) PutProposal(p *models.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.db.Put(proposalKey(p.CycleID, p.ID), data); err != nil {
		return errors.Wrap(err, "put proposal")
	}
	// id -> cycle index so GetProposal can find the ordered key
	idx, err := json.Marshal(p.CycleID)
	if err != nil {
		return err
	}
	return errors.Wrap(r.db.Put([]byte(fmt.Sprintf("%sid:%020d", proposalPrefix, p.ID)), idx), "index proposal")
}

func (r *GovernanceRepository) GetProposal(id uint64) (*models.Proposal, error) {
	// proposals are keyed by cycle for ordered listing; the id index maps back
	data, err := r.db.Get([]byte(fmt.Sprintf("%sid:%020d", proposalPrefix, id)))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get proposal index")
	}
	var cycleID uint64
	if err := json.Unmarshal(data, &cycleID); err != nil {
		return nil, err
	}
	raw, err := r.db.Get(proposalKey(cycleID, id))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get proposal")
	}
	var p models.Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GovernanceRepository) ListProposalsByCycle(cycleID uint64) ([]*models.Proposal, error) {
	prefix := []byte(fmt.Sprintf("%s%020d:", proposalPrefix, cycleID))
	iter := r.db.NewPrefixIterator(prefix)
	defer iter.Release()

	var out []*models.Proposal
	for iter.Next() {
		var p models.Proposal
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, errors.Wrap(iter.Error(), "iterate proposals")
}

func (r *GovernanceRepository) PutCycle(c *models.Cycle) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%s%020d", cyclePrefix, c.ID))
	return errors.Wrap(r.db.Put(key, data), "put cycle")
}

func (r *GovernanceRepository) GetCycle(id uint64) (*models.Cycle, error) {
	data, err := r.db.Get([]byte(fmt.Sprintf("%s%020d", cyclePrefix, id)))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get cycle")
	}
	var c models.Cycle
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GovernanceRepository) PutVote(v *models.VoteRecord) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%s%020d:%s", votePrefix, v.ProposalID, v.Voter))
	return errors.Wrap(r.db.Put(key, data), "put vote")
}

func (r *GovernanceRepository) HasVoted(proposalID uint64, voter string) (bool, error) {
	ok, err := r.db.Has([]byte(fmt.Sprintf("%s%020d:%s", votePrefix, proposalID, voter)))
	return ok, errors.Wrap(err, "check vote")
}

func (r *GovernanceRepository) MarkProposed(cycleID uint64, kind models.ProposalKind, proposer string) error {
	key := []byte(fmt.Sprintf("%s%020d:%s:%s", proposedPrefix, cycleID, kind, proposer))
	return errors.Wrap(r.db.Put(key, []byte{1}), "mark proposed")
}

func (r *GovernanceRepository) HasProposed(cycleID uint64, kind models.ProposalKind, proposer string) (bool, error) {
	ok, err := r.db.Has([]byte(fmt.Sprintf("%s%020d:%s:%s", proposedPrefix, cycleID, kind, proposer)))
	return ok, errors.Wrap(err, "check proposed")
}

func (r *GovernanceRepository) GetGovernanceMeta() (*models.GovernanceMeta, error) {
	data, err := r.db.Get([]byte(governanceMetaK))
	if err != nil {
		if db.IsNotFound(err) {
			return &models.GovernanceMeta{}, nil
		}
		return nil, errors.Wrap(err, "get governance meta")
	}
	var m models.GovernanceMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *GovernanceRepository) PutGovernanceMeta(m *models.GovernanceMeta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return errors.Wrap(r.db.Put([]byte(governanceMetaK), data), "put governance meta")
}
