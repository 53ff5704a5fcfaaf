package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Pulse is one immutable, hash-linked append to an identity's log.
type Pulse struct {
	ID        int64           `json:"-"`
	PulseID   string          `json:"id"`
	OriginDID string          `json:"originDID"`
	AgentID   string          `json:"agentId,omitempty"`
	CreatedAt int64           `json:"timestamp"`
	Action    string          `json:"actionType"`
	Impact    float64         `json:"impactScore"`
	Context   json.RawMessage `json:"context,omitempty"`
	Deps      []string        `json:"dependencies,omitempty"`
	Hash      string          `json:"hash"`
	PrevHash  *string         `json:"prevHash"`
}

// AppendPulse inserts a pulse and applies its capped karma delta to the
// owning identity in one transaction, so the log entry and the score can
// never diverge on a crash between the two writes.
func (db *DB) AppendPulse(p *Pulse, karmaDelta float64) error {
	context := "{}"
	if len(p.Context) > 0 {
		context = string(p.Context)
	}
	deps, err := json.Marshal(p.Deps)
	if err != nil {
		return fmt.Errorf("marshal deps: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}

	var agentID any
	if p.AgentID != "" {
		agentID = p.AgentID
	}
	result, err := tx.Exec(`
		INSERT INTO pulses (pulse_id, origin_did, agent_id, created_at, action, impact, context, deps, hash, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PulseID, p.OriginDID, agentID, p.CreatedAt, p.Action, p.Impact, context, string(deps), p.Hash, p.PrevHash)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert pulse: %w", err)
	}
	p.ID, _ = result.LastInsertId()

	res, err := tx.Exec(`UPDATE identities SET karma = karma + ? WHERE did = ?`, karmaDelta, p.OriginDID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update karma: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		tx.Rollback()
		return fmt.Errorf("update karma: identity %s not found", p.OriginDID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

const pulseColumns = `id, pulse_id, origin_did, agent_id, created_at, action, impact, context, deps, hash, prev_hash`

func scanPulse(row interface{ Scan(...any) error }) (*Pulse, error) {
	var p Pulse
	var agentID sql.NullString
	var context, deps string
	err := row.Scan(&p.ID, &p.PulseID, &p.OriginDID, &agentID, &p.CreatedAt, &p.Action, &p.Impact, &context, &deps, &p.Hash, &p.PrevHash)
	if err != nil {
		return nil, err
	}
	p.AgentID = agentID.String
	if context != "" {
		p.Context = json.RawMessage(context)
	}
	if deps != "" && deps != "null" {
		if err := json.Unmarshal([]byte(deps), &p.Deps); err != nil {
			return nil, fmt.Errorf("unmarshal deps: %w", err)
		}
	}
	return &p, nil
}

// LastPulse returns the newest pulse for a DID, or nil if the chain is empty.
// Ties on created_at fall back to insert order.
func (db *DB) LastPulse(did string) (*Pulse, error) {
	row := db.QueryRow(`
		SELECT `+pulseColumns+` FROM pulses
		WHERE origin_did = ? ORDER BY created_at DESC, id DESC LIMIT 1
	`, did)
	p, err := scanPulse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last pulse: %w", err)
	}
	return p, nil
}

func collectPulses(rows *sql.Rows) ([]Pulse, error) {
	defer rows.Close()
	var pulses []Pulse
	for rows.Next() {
		p, err := scanPulse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pulse: %w", err)
		}
		pulses = append(pulses, *p)
	}
	return pulses, rows.Err()
}

// GetPulses returns an identity's pulses newest-first, optionally filtered
// by action, capped at limit.
func (db *DB) GetPulses(did string, limit int, action string) ([]Pulse, error) {
	var rows *sql.Rows
	var err error
	if action != "" {
		rows, err = db.Query(`
			SELECT `+pulseColumns+` FROM pulses
			WHERE origin_did = ? AND action = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		`, did, action, limit)
	} else {
		rows, err = db.Query(`
			SELECT `+pulseColumns+` FROM pulses
			WHERE origin_did = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		`, did, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("get pulses: %w", err)
	}
	return collectPulses(rows)
}

// GetPulsesAsc returns every pulse for a DID oldest-first, for chain
// verification.
func (db *DB) GetPulsesAsc(did string) ([]Pulse, error) {
	rows, err := db.Query(`
		SELECT `+pulseColumns+` FROM pulses
		WHERE origin_did = ? ORDER BY created_at ASC, id ASC
	`, did)
	if err != nil {
		return nil, fmt.Errorf("get pulses asc: %w", err)
	}
	return collectPulses(rows)
}

// AllPulses returns the global feed newest-first across all identities.
func (db *DB) AllPulses(limit int) ([]Pulse, error) {
	rows, err := db.Query(`
		SELECT ` + pulseColumns + ` FROM pulses
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("all pulses: %w", err)
	}
	return collectPulses(rows)
}

// CountPulses returns the total number of pulses across all identities.
func (db *DB) CountPulses() (int64, error) {
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM pulses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pulses: %w", err)
	}
	return n, nil
}
