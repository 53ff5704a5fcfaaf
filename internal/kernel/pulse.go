package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/pulse/internal/store"
)

// ImpactCap bounds how much karma a single pulse can add. min(impact, cap)
// is applied at append time, so negative impacts pass through uncapped.
const ImpactCap = 10

// lockFor returns the append lock for a DID, creating it on first use.
// Appends are serialized per identity so two concurrent emits can never
// read the same previous hash.
func (k *Kernel) lockFor(did string) *sync.Mutex {
	k.appendMu.Lock()
	defer k.appendMu.Unlock()
	l, ok := k.appends[did]
	if !ok {
		l = &sync.Mutex{}
		k.appends[did] = l
	}
	return l
}

// pulseHash computes the linkage hash over the fields that prove chain
// order. Impact and context are deliberately excluded: the hash is an
// ordering proof, not a content-integrity proof.
func pulseHash(originDID string, timestamp int64, action string, prevHash *string) string {
	payload := struct {
		OriginDID string  `json:"originDID"`
		Timestamp int64   `json:"timestamp"`
		Action    string  `json:"actionType"`
		PrevHash  *string `json:"prevHash"`
	}{originDID, timestamp, action, prevHash}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Emit appends a pulse to the current identity's chain and applies the
// capped impact to its karma. The insert and the karma update commit in
// one transaction; appends for one identity are serialized.
func (k *Kernel) Emit(action string, impact float64, context json.RawMessage, agentID string, deps []string) (*store.Pulse, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}

	l := k.lockFor(did)
	l.Lock()
	defer l.Unlock()

	ident, err := k.db.GetIdentity(did)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, fmt.Errorf("identity %s: %w", did, ErrNotFound)
	}

	last, err := k.db.LastPulse(did)
	if err != nil {
		return nil, err
	}
	var prevHash *string
	if last != nil {
		prevHash = &last.Hash
	}

	now := time.Now().UnixMilli()
	p := &store.Pulse{
		PulseID:   uuid.NewString(),
		OriginDID: did,
		AgentID:   agentID,
		CreatedAt: now,
		Action:    action,
		Impact:    impact,
		Context:   context,
		Deps:      deps,
		Hash:      pulseHash(did, now, action, prevHash),
		PrevHash:  prevHash,
	}

	delta := impact
	if delta > ImpactCap {
		delta = ImpactCap
	}
	if err := k.db.AppendPulse(p, delta); err != nil {
		return nil, err
	}

	k.bus.Publish(EventPulseCreated, p)
	return p, nil
}

// ChainReport is the result of verifying one identity's pulse chain.
type ChainReport struct {
	Valid    bool   `json:"valid"`
	Count    int    `json:"pulseCount"`
	BrokenAt string `json:"brokenAt,omitempty"`
}

// VerifyChain walks an identity's pulses oldest-first and checks that
// every prev_hash matches its predecessor's hash. An empty chain is
// vacuously valid; the first mismatch is reported and the walk stops.
func (k *Kernel) VerifyChain(did string) (*ChainReport, error) {
	pulses, err := k.db.GetPulsesAsc(did)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{Valid: true, Count: len(pulses)}
	for i := range pulses {
		var expected *string
		if i > 0 {
			expected = &pulses[i-1].Hash
		}
		got := pulses[i].PrevHash
		if (got == nil) != (expected == nil) || (got != nil && *got != *expected) {
			report.Valid = false
			report.BrokenAt = pulses[i].PulseID
			break
		}
	}
	return report, nil
}

// Pulses returns an identity's pulses newest-first, optionally filtered
// by action kind.
func (k *Kernel) Pulses(did string, limit int, action string) ([]store.Pulse, error) {
	return k.db.GetPulses(did, limit, action)
}

// AllPulses returns the global feed newest-first across identities.
func (k *Kernel) AllPulses(limit int) ([]store.Pulse, error) {
	return k.db.AllPulses(limit)
}
