package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Agent is a worker spawned by an identity.
type Agent struct {
	ID        int64           `json:"-"`
	AgentID   string          `json:"id"`
	DID       string          `json:"did"`
	Name      string          `json:"name"`
	Type      string          `json:"agentType"`
	Status    string          `json:"status"`
	Config    json.RawMessage `json:"config,omitempty"`
	Karma     float64         `json:"karma"`
	CreatedAt int64           `json:"createdAt"`
}

// Checkpoint is a point-in-time state hash of an agent.
type Checkpoint struct {
	ID           int64  `json:"-"`
	CheckpointID string `json:"id"`
	AgentID      string `json:"agentId"`
	StateHash    string `json:"stateHash"`
	CreatedAt    int64  `json:"timestamp"`
}

// SaveAgent inserts or replaces an agent.
func (db *DB) SaveAgent(a *Agent) error {
	var config any
	if len(a.Config) > 0 {
		config = string(a.Config)
	}
	_, err := db.Exec(`
		INSERT INTO agents (agent_id, did, name, agent_type, status, config, karma, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			status = excluded.status,
			karma  = excluded.karma
	`, a.AgentID, a.DID, a.Name, a.Type, a.Status, config, a.Karma, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var config sql.NullString
	err := row.Scan(&a.ID, &a.AgentID, &a.DID, &a.Name, &a.Type, &a.Status, &config, &a.Karma, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if config.Valid {
		a.Config = json.RawMessage(config.String)
	}
	return &a, nil
}

// GetAgent returns an agent by id, scoped to its owning DID. Returns nil
// if the agent does not exist or belongs to another identity.
func (db *DB) GetAgent(agentID, did string) (*Agent, error) {
	row := db.QueryRow(`
		SELECT id, agent_id, did, name, agent_type, status, config, karma, created_at
		FROM agents WHERE agent_id = ? AND did = ?
	`, agentID, did)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// GetAgents returns all agents owned by a DID.
func (db *DB) GetAgents(did string) ([]Agent, error) {
	rows, err := db.Query(`
		SELECT id, agent_id, did, name, agent_type, status, config, karma, created_at
		FROM agents WHERE did = ? ORDER BY created_at DESC
	`, did)
	if err != nil {
		return nil, fmt.Errorf("get agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgentStatus sets an agent's status, owner-checked. Returns false
// if no matching agent exists.
func (db *DB) UpdateAgentStatus(agentID, did, status string) (bool, error) {
	res, err := db.Exec(`
		UPDATE agents SET status = ? WHERE agent_id = ? AND did = ?
	`, status, agentID, did)
	if err != nil {
		return false, fmt.Errorf("update agent status: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// AddCheckpoint records an agent checkpoint.
func (db *DB) AddCheckpoint(cp *Checkpoint) error {
	_, err := db.Exec(`
		INSERT INTO agent_checkpoints (checkpoint_id, agent_id, state_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, cp.CheckpointID, cp.AgentID, cp.StateHash, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("add checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoints returns an agent's checkpoints oldest-first.
func (db *DB) GetCheckpoints(agentID string) ([]Checkpoint, error) {
	rows, err := db.Query(`
		SELECT id, checkpoint_id, agent_id, state_hash, created_at
		FROM agent_checkpoints WHERE agent_id = ? ORDER BY created_at ASC, id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("get checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(&cp.ID, &cp.CheckpointID, &cp.AgentID, &cp.StateHash, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}
