// Package economy implements karma staking and network-level aggregates.
package economy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/pulse/internal/kernel"
	"github.com/lazypower/pulse/internal/store"
)

// Event names published by the economy module.
const (
	EventStakeCreated  = "stake:created"
	EventStakeUnlocked = "stake:unlocked"
)

// ErrNotMatured is returned when unlocking a stake before its unlock date.
var ErrNotMatured = errors.New("stake not yet matured")

// Service exposes staking operations over the kernel.
type Service struct {
	k  *kernel.Kernel
	db *store.DB
}

// New creates an economy Service.
func New(k *kernel.Kernel) *Service {
	return &Service{k: k, db: k.DB()}
}

// CreateStake locks an amount for the given number of days. The emitted
// pulse carries impact amount*0.1, so large stakes still hit the cap.
func (s *Service) CreateStake(amount float64, durationDays int) (*store.Stake, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", kernel.ErrInvalidArgument)
	}
	if durationDays <= 0 {
		durationDays = 30
	}

	now := time.Now()
	st := &store.Stake{
		StakeID:      uuid.NewString(),
		DID:          did,
		Amount:       amount,
		DurationDays: durationDays,
		StakedAt:     now.UnixMilli(),
		UnlocksAt:    now.Add(time.Duration(durationDays) * 24 * time.Hour).UnixMilli(),
		Status:       "active",
	}
	if err := s.db.SaveStake(st); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]any{"stakeId": st.StakeID, "amount": amount})
	if _, err := s.k.Emit("stake_created", amount*0.1, ctx, "", nil); err != nil {
		return nil, err
	}

	s.k.Publish(EventStakeCreated, st)
	return st, nil
}

// Stakes lists the current identity's stakes.
func (s *Service) Stakes() ([]store.Stake, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}
	return s.db.GetStakes(did)
}

// UnlockStake releases a matured stake. Unlocking early fails with
// ErrNotMatured; unlocking twice fails with ErrAlreadyDone.
func (s *Service) UnlockStake(stakeID string) (*store.Stake, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}

	st, err := s.db.GetStake(stakeID, did)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("stake %s: %w", stakeID, kernel.ErrNotFound)
	}
	if st.Status != "active" {
		return nil, fmt.Errorf("stake %s: %w", stakeID, kernel.ErrAlreadyDone)
	}

	now := time.Now().UnixMilli()
	if now < st.UnlocksAt {
		return nil, fmt.Errorf("stake %s unlocks at %d: %w", stakeID, st.UnlocksAt, ErrNotMatured)
	}

	st.Status = "unlocked"
	st.UnlockedAt = &now
	if err := s.db.SaveStake(st); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]any{"stakeId": stakeID, "amount": st.Amount})
	if _, err := s.k.Emit("stake_unlocked", 1, ctx, "", nil); err != nil {
		return nil, err
	}

	s.k.Publish(EventStakeUnlocked, st)
	return st, nil
}

// Stats returns network-wide aggregates.
func (s *Service) Stats() (*store.NetworkStats, error) {
	return s.db.Stats()
}

// RewardMultiplier scales rewards by karma on a logarithmic curve so high
// scores cannot run away.
func RewardMultiplier(karma float64) float64 {
	if karma <= 0 {
		return 1
	}
	return 1 + math.Log10(karma+1)*0.5
}

// StakingAPY returns the advertised APY tier for a lock duration.
func StakingAPY(durationDays int) float64 {
	switch {
	case durationDays <= 7:
		return 5
	case durationDays <= 30:
		return 10
	case durationDays <= 90:
		return 15
	case durationDays <= 180:
		return 20
	default:
		return 25
	}
}
