package kernel

import (
	"time"

	"github.com/lazypower/pulse/internal/store"
)

// SnapshotVersion tags exported backups.
const SnapshotVersion = "1.2"

// Snapshot is a full backup of the current identity's ledger state.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportedAt int64             `json:"exportedAt"`
	Identity   *store.Identity   `json:"identity"`
	Pulses     []store.Pulse     `json:"pulses"`
	Agents     []store.Agent     `json:"agents"`
	PolicyKeys []store.PolicyKey `json:"policyKeys"`
	Stakes     []store.Stake     `json:"stakes"`
}

// Export assembles the current identity's records into one versioned
// snapshot.
func (k *Kernel) Export() (*Snapshot, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}

	ident, err := k.db.GetIdentity(did)
	if err != nil {
		return nil, err
	}

	pulses, err := k.db.GetPulses(did, 10000, "")
	if err != nil {
		return nil, err
	}
	agents, err := k.db.GetAgents(did)
	if err != nil {
		return nil, err
	}
	keys, err := k.db.GetPolicyKeys(did)
	if err != nil {
		return nil, err
	}
	stakes, err := k.db.GetStakes(did)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: time.Now().UnixMilli(),
		Identity:   ident,
		Pulses:     pulses,
		Agents:     agents,
		PolicyKeys: keys,
		Stakes:     stakes,
	}, nil
}
