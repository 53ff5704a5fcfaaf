package kernel

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lazypower/pulse/internal/store"
)

// Kernel is the core identity and pulse-chain engine. It owns the
// current-identity session and the event bus; every other module is a
// producer/consumer of its log.
type Kernel struct {
	db  *store.DB
	bus *Bus

	mu         sync.Mutex
	currentDID string

	appendMu sync.Mutex
	appends  map[string]*sync.Mutex
}

// New creates a Kernel over an open store, restoring any persisted
// session whose identity still exists.
func New(db *store.DB) (*Kernel, error) {
	k := &Kernel{
		db:      db,
		bus:     NewBus(),
		appends: make(map[string]*sync.Mutex),
	}

	did, err := db.CurrentDID()
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if did != "" {
		ident, err := db.GetIdentity(did)
		if err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
		if ident != nil {
			k.currentDID = did
		}
	}
	return k, nil
}

// DB exposes the underlying store to collaborator modules.
func (k *Kernel) DB() *store.DB { return k.db }

// Subscribe registers an event handler on the kernel bus.
func (k *Kernel) Subscribe(event string, h Handler) (unsubscribe func()) {
	return k.bus.Subscribe(event, h)
}

// Publish fans out an event to subscribers.
func (k *Kernel) Publish(event string, data any) {
	k.bus.Publish(event, data)
}

// CurrentDID returns the current identity id, or "" if none is set.
func (k *Kernel) CurrentDID() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.currentDID
}

// CurrentIdentity returns the current identity record, or nil if no
// session is active.
func (k *Kernel) CurrentIdentity() (*store.Identity, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, nil
	}
	return k.db.GetIdentity(did)
}

func (k *Kernel) setCurrent(did string) error {
	k.mu.Lock()
	k.currentDID = did
	k.mu.Unlock()
	return k.db.SetCurrentDID(did)
}

// Logout clears the current session. No data is deleted.
func (k *Kernel) Logout() error {
	if err := k.setCurrent(""); err != nil {
		return err
	}
	k.bus.Publish(EventIdentityLogout, nil)
	return nil
}

// CreateResult is the outcome of CreateIdentity: the identity, the phrase
// it derives from, and whether an existing record was recovered instead
// of created.
type CreateResult struct {
	Identity  *store.Identity
	Mnemonic  string
	Recovered bool
}

// CreateIdentity derives an identity from the given mnemonic (generating
// one when empty) and persists it. If the derived id already exists the
// existing record is returned marked recovered, making create and recover
// the same deterministic operation.
func (k *Kernel) CreateIdentity(mnemonic string) (*CreateResult, error) {
	if mnemonic == "" {
		var err error
		mnemonic, err = GenerateMnemonic()
		if err != nil {
			return nil, fmt.Errorf("generate mnemonic: %w", err)
		}
	}
	keys := DeriveFromMnemonic(mnemonic)

	existing, err := k.db.GetIdentity(keys.DID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := k.setCurrent(keys.DID); err != nil {
			return nil, err
		}
		return &CreateResult{Identity: existing, Mnemonic: mnemonic, Recovered: true}, nil
	}

	ident := &store.Identity{
		DID:       keys.DID,
		PublicKey: keys.PublicKey,
		CreatedAt: time.Now().UnixMilli(),
		Karma:     0,
		Status:    "active",
	}
	if err := k.db.SaveIdentity(ident); err != nil {
		return nil, err
	}
	if err := k.setCurrent(keys.DID); err != nil {
		return nil, err
	}

	// Genesis pulse anchors the chain.
	if _, err := k.Emit("identity_created", 10, json.RawMessage(`{"event":"genesis"}`), "", nil); err != nil {
		return nil, fmt.Errorf("genesis pulse: %w", err)
	}

	ident, err = k.db.GetIdentity(keys.DID)
	if err != nil {
		return nil, err
	}
	k.bus.Publish(EventIdentityCreated, ident)

	return &CreateResult{Identity: ident, Mnemonic: mnemonic}, nil
}

// RecoverIdentity restores the identity derived from a mnemonic, or
// creates it when absent.
func (k *Kernel) RecoverIdentity(mnemonic string) (*CreateResult, error) {
	keys := DeriveFromMnemonic(mnemonic)

	existing, err := k.db.GetIdentity(keys.DID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := k.setCurrent(keys.DID); err != nil {
			return nil, err
		}
		k.bus.Publish(EventIdentityRecovered, existing)
		return &CreateResult{Identity: existing, Mnemonic: mnemonic, Recovered: true}, nil
	}

	return k.CreateIdentity(mnemonic)
}

// Leaderboard returns the top identities by karma, descending.
func (k *Kernel) Leaderboard(limit int) ([]store.Identity, error) {
	return k.db.Leaderboard(limit)
}

// Stats returns network-wide aggregates.
func (k *Kernel) Stats() (*store.NetworkStats, error) {
	return k.db.Stats()
}

// Reset wipes every collection and clears the session. Irreversible.
func (k *Kernel) Reset() error {
	if err := k.db.Reset(); err != nil {
		return err
	}
	k.mu.Lock()
	k.currentDID = ""
	k.mu.Unlock()
	k.bus.Publish(EventReset, nil)
	return nil
}
