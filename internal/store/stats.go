package store

import "fmt"

// NetworkStats is the aggregate view of the whole ledger.
type NetworkStats struct {
	TotalKarma      float64 `json:"totalKarma"`
	TotalStaked     float64 `json:"totalStaked"`
	TotalPulses     int64   `json:"totalPulses"`
	TotalIdentities int64   `json:"totalIdentities"`
}

// Stats computes network-wide aggregates.
func (db *DB) Stats() (*NetworkStats, error) {
	var s NetworkStats
	err := db.QueryRow(`
		SELECT COALESCE(SUM(karma), 0), COUNT(*) FROM identities
	`).Scan(&s.TotalKarma, &s.TotalIdentities)
	if err != nil {
		return nil, fmt.Errorf("identity stats: %w", err)
	}

	s.TotalPulses, err = db.CountPulses()
	if err != nil {
		return nil, err
	}

	s.TotalStaked, err = db.TotalStaked()
	if err != nil {
		return nil, err
	}
	return &s, nil
}
