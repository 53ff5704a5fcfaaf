package kernel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/pulse/internal/store"
)

// CreatePolicyKey issues a capability grant for the current identity and
// records it on the chain.
func (k *Kernel) CreatePolicyKey(subject, verb, objectRef string, constraints json.RawMessage, expiresAt *time.Time) (*store.PolicyKey, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}

	key := &store.PolicyKey{
		KeyID:       uuid.NewString(),
		DID:         did,
		Subject:     subject,
		Verb:        verb,
		ObjectRef:   objectRef,
		Constraints: constraints,
		CreatedAt:   time.Now().UnixMilli(),
	}
	if expiresAt != nil {
		ms := expiresAt.UnixMilli()
		key.ExpiresAt = &ms
	}

	if err := k.db.SavePolicyKey(key); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"keyId": key.KeyID, "verb": verb})
	if _, err := k.Emit("policy_key_created", 2, ctx, "", nil); err != nil {
		return nil, err
	}

	k.bus.Publish(EventKeyCreated, key)
	return key, nil
}

// RevokePolicyKey revokes a key owned by the current identity.
func (k *Kernel) RevokePolicyKey(keyID string) error {
	did := k.CurrentDID()
	if did == "" {
		return ErrNoActiveIdentity
	}

	changed, err := k.db.RevokePolicyKey(keyID, did)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("policy key %s: %w", keyID, ErrNotFound)
	}

	ctx, _ := json.Marshal(map[string]string{"keyId": keyID})
	if _, err := k.Emit("policy_key_revoked", -1, ctx, "", nil); err != nil {
		return err
	}

	k.bus.Publish(EventKeyRevoked, keyID)
	return nil
}

// PolicyKeys lists the current identity's live keys.
func (k *Kernel) PolicyKeys() ([]store.PolicyKey, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}
	return k.db.GetPolicyKeys(did)
}
