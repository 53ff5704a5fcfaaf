package store

import (
	"database/sql"
	"fmt"
)

// Stake is a locked karma commitment with a maturity date.
type Stake struct {
	ID           int64   `json:"-"`
	StakeID      string  `json:"id"`
	DID          string  `json:"did"`
	Amount       float64 `json:"amount"`
	DurationDays int     `json:"durationDays"`
	StakedAt     int64   `json:"stakedAt"`
	UnlocksAt    int64   `json:"unlocksAt"`
	UnlockedAt   *int64  `json:"unlockedAt,omitempty"`
	Status       string  `json:"status"`
}

// SaveStake inserts or replaces a stake.
func (db *DB) SaveStake(s *Stake) error {
	_, err := db.Exec(`
		INSERT INTO stakes (stake_id, did, amount, duration_days, staked_at, unlocks_at, unlocked_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stake_id) DO UPDATE SET
			unlocked_at = excluded.unlocked_at,
			status      = excluded.status
	`, s.StakeID, s.DID, s.Amount, s.DurationDays, s.StakedAt, s.UnlocksAt, s.UnlockedAt, s.Status)
	if err != nil {
		return fmt.Errorf("save stake: %w", err)
	}
	return nil
}

func scanStake(row interface{ Scan(...any) error }) (*Stake, error) {
	var s Stake
	err := row.Scan(&s.ID, &s.StakeID, &s.DID, &s.Amount, &s.DurationDays, &s.StakedAt, &s.UnlocksAt, &s.UnlockedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStake returns a stake by id, owner-checked. Returns nil if absent.
func (db *DB) GetStake(stakeID, did string) (*Stake, error) {
	row := db.QueryRow(`
		SELECT id, stake_id, did, amount, duration_days, staked_at, unlocks_at, unlocked_at, status
		FROM stakes WHERE stake_id = ? AND did = ?
	`, stakeID, did)
	s, err := scanStake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stake: %w", err)
	}
	return s, nil
}

// GetStakes returns all stakes owned by a DID, newest-first.
func (db *DB) GetStakes(did string) ([]Stake, error) {
	rows, err := db.Query(`
		SELECT id, stake_id, did, amount, duration_days, staked_at, unlocks_at, unlocked_at, status
		FROM stakes WHERE did = ? ORDER BY staked_at DESC
	`, did)
	if err != nil {
		return nil, fmt.Errorf("get stakes: %w", err)
	}
	defer rows.Close()

	var stakes []Stake
	for rows.Next() {
		s, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stake: %w", err)
		}
		stakes = append(stakes, *s)
	}
	return stakes, rows.Err()
}

// TotalStaked returns the summed amount of all active stakes.
func (db *DB) TotalStaked() (float64, error) {
	var total float64
	err := db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM stakes WHERE status = 'active'
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total staked: %w", err)
	}
	return total, nil
}
