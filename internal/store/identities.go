package store

import (
	"database/sql"
	"fmt"
)

// Identity is a derived principal with an accumulating karma score.
type Identity struct {
	ID        int64   `json:"-"`
	DID       string  `json:"did"`
	PublicKey string  `json:"publicKey"`
	CreatedAt int64   `json:"createdAt"`
	Karma     float64 `json:"karma"`
	Status    string  `json:"status"`
}

// SaveIdentity inserts or replaces an identity keyed by DID.
func (db *DB) SaveIdentity(ident *Identity) error {
	_, err := db.Exec(`
		INSERT INTO identities (did, public_key, created_at, karma, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(did) DO UPDATE SET
			public_key = excluded.public_key,
			karma      = excluded.karma,
			status     = excluded.status
	`, ident.DID, ident.PublicKey, ident.CreatedAt, ident.Karma, ident.Status)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// GetIdentity returns an identity by DID, or nil if absent.
func (db *DB) GetIdentity(did string) (*Identity, error) {
	var ident Identity
	err := db.QueryRow(`
		SELECT id, did, public_key, created_at, karma, status
		FROM identities WHERE did = ?
	`, did).Scan(&ident.ID, &ident.DID, &ident.PublicKey, &ident.CreatedAt, &ident.Karma, &ident.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &ident, nil
}

// Leaderboard returns the top identities by karma, descending.
func (db *DB) Leaderboard(limit int) ([]Identity, error) {
	rows, err := db.Query(`
		SELECT id, did, public_key, created_at, karma, status
		FROM identities ORDER BY karma DESC, did ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var idents []Identity
	for rows.Next() {
		var ident Identity
		if err := rows.Scan(&ident.ID, &ident.DID, &ident.PublicKey, &ident.CreatedAt, &ident.Karma, &ident.Status); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		idents = append(idents, ident)
	}
	return idents, rows.Err()
}

// CurrentDID returns the persisted session pointer, or "" if none.
func (db *DB) CurrentDID() (string, error) {
	var did sql.NullString
	err := db.QueryRow(`SELECT current_did FROM session WHERE id = 1`).Scan(&did)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	return did.String, nil
}

// SetCurrentDID persists the session pointer. An empty DID clears it.
func (db *DB) SetCurrentDID(did string) error {
	var v any
	if did != "" {
		v = did
	}
	_, err := db.Exec(`
		INSERT INTO session (id, current_did) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET current_did = excluded.current_did
	`, v)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}
