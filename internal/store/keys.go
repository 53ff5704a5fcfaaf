package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// PolicyKey is a scoped capability grant issued by an identity.
type PolicyKey struct {
	ID          int64           `json:"-"`
	KeyID       string          `json:"id"`
	DID         string          `json:"did"`
	Subject     string          `json:"subject"`
	Verb        string          `json:"verb"`
	ObjectRef   string          `json:"objectRef"`
	Constraints json.RawMessage `json:"constraints,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	ExpiresAt   *int64          `json:"expiresAt,omitempty"`
	Revoked     bool            `json:"revoked"`
}

// SavePolicyKey inserts or replaces a policy key.
func (db *DB) SavePolicyKey(k *PolicyKey) error {
	var constraints any
	if len(k.Constraints) > 0 {
		constraints = string(k.Constraints)
	}
	_, err := db.Exec(`
		INSERT INTO policy_keys (key_id, did, subject, verb, object_ref, constraints, created_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key_id) DO UPDATE SET revoked = excluded.revoked
	`, k.KeyID, k.DID, k.Subject, k.Verb, k.ObjectRef, constraints, k.CreatedAt, k.ExpiresAt, k.Revoked)
	if err != nil {
		return fmt.Errorf("save policy key: %w", err)
	}
	return nil
}

// GetPolicyKeys returns an identity's non-revoked policy keys.
func (db *DB) GetPolicyKeys(did string) ([]PolicyKey, error) {
	rows, err := db.Query(`
		SELECT id, key_id, did, subject, verb, object_ref, constraints, created_at, expires_at, revoked
		FROM policy_keys WHERE did = ? AND revoked = 0
	`, did)
	if err != nil {
		return nil, fmt.Errorf("get policy keys: %w", err)
	}
	defer rows.Close()

	var keys []PolicyKey
	for rows.Next() {
		k, err := scanPolicyKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

func scanPolicyKey(row interface{ Scan(...any) error }) (*PolicyKey, error) {
	var k PolicyKey
	var constraints sql.NullString
	var revoked int
	err := row.Scan(&k.ID, &k.KeyID, &k.DID, &k.Subject, &k.Verb, &k.ObjectRef, &constraints, &k.CreatedAt, &k.ExpiresAt, &revoked)
	if err != nil {
		return nil, err
	}
	if constraints.Valid {
		k.Constraints = json.RawMessage(constraints.String)
	}
	k.Revoked = revoked != 0
	return &k, nil
}

// RevokePolicyKey marks a key revoked if it belongs to the given DID.
// Returns false if no matching live key exists.
func (db *DB) RevokePolicyKey(keyID, did string) (bool, error) {
	res, err := db.Exec(`
		UPDATE policy_keys SET revoked = 1
		WHERE key_id = ? AND did = ? AND revoked = 0
	`, keyID, did)
	if err != nil {
		return false, fmt.Errorf("revoke policy key: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}
