package repository

import (
	"encoding/json"

	"github.com/pkg/errors"

	"govstake-project/db"
	"govstake-project/models"
)

const (
	positionPrefix    = "stk:pos:"
	rewardTokenPrefix = "stk:rwd:"
	stakingMetaKey    = "stk:meta"
)

// StakingRepositoryInterface abstracts the staking engine's storage.
// Get methods return (nil, nil) when the record does not exist.
type StakingRepositoryInterface interface {
	PutPosition(p *models.StakerPosition) error
	GetPosition(staker string) (*models.StakerPosition, error)
	DeletePosition(staker string) error
	PutRewardToken(r *models.RewardTokenState) error
	GetRewardToken(token string) (*models.RewardTokenState, error)
	DeleteRewardToken(token string) error
	ListRewardTokens() ([]*models.RewardTokenState, error)
	GetStakingMeta() (*models.StakingMeta, error)
	PutStakingMeta(m *models.StakingMeta) error
}

// StakingRepository implements StakingRepositoryInterface on LevelDB with a
// JSON codec, one keyspace prefix per record type.
type StakingRepository struct {
	db *db.LevelDB
}

func NewStakingRepository(db *db.LevelDB) *StakingRepository {
	return &StakingRepository{db: db}
}

func (r *StakingRepository) PutPosition(p *models.StakerPosition) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return errors.Wrap(r.db.Put([]byte(positionPrefix+p.Staker), data), "put position")
}

func (r *StakingRepository) GetPosition(staker string) (*models.StakerPosition, error) {
	data, err := r.db.Get([]byte(positionPrefix + staker))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get position")
	}
	var p models.StakerPosition
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *StakingRepository) DeletePosition(staker string) error {
	return errors.Wrap(r.db.Delete([]byte(positionPrefix+staker)), "delete position")
}

func (r *StakingRepository) PutRewardToken(state *models.RewardTokenState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return errors.Wrap(r.db.Put([]byte(rewardTokenPrefix+state.Token), data), "put reward token")
}

func (r *StakingRepository) GetRewardToken(token string) (*models.RewardTokenState, error) {
	data, err := r.db.Get([]byte(rewardTokenPrefix + token))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get reward token")
	}
	var state models.RewardTokenState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *StakingRepository) DeleteRewardToken(token string) error {
	return errors.Wrap(r.db.Delete([]byte(rewardTokenPrefix+token)), "delete reward token")
}

func (r *StakingRepository) ListRewardTokens() ([]*models.RewardTokenState, error) {
	iter := r.db.NewPrefixIterator([]byte(rewardTokenPrefix))
	defer iter.Release()

	var states []*models.RewardTokenState
	for iter.Next() {
		var state models.RewardTokenState
		if err := json.Unmarshal(iter.Value(), &state); err != nil {
			return nil, err
		}
		states = append(states, &state)
	}
	return states, errors.Wrap(iter.Error(), "iterate reward tokens")
}

func (r *StakingRepository) GetStakingMeta() (*models.StakingMeta, error) {
	data, err := r.db.Get([]byte(stakingMetaKey))
	if err != nil {
		if db.IsNotFound(err) {
			return &models.StakingMeta{}, nil
		}
		return nil, errors.Wrap(err, "get staking meta")
	}
	var m models.StakingMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *StakingRepository) PutStakingMeta(m *models.StakingMeta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return errors.Wrap(r.db.Put([]byte(stakingMetaKey), data), "put staking meta")
}
