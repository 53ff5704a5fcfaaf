package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/pulse/internal/store"
)

// SpawnAgent creates a worker owned by the current identity.
func (k *Kernel) SpawnAgent(name, agentType string, config json.RawMessage) (*store.Agent, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}
	if agentType == "" {
		agentType = "worker"
	}

	agent := &store.Agent{
		AgentID:   uuid.NewString(),
		DID:       did,
		Name:      name,
		Type:      agentType,
		Status:    "active",
		Config:    config,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := k.db.SaveAgent(agent); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"agentId": agent.AgentID, "name": name})
	if _, err := k.Emit("agent_spawned", 5, ctx, "", nil); err != nil {
		return nil, err
	}

	k.bus.Publish(EventAgentSpawned, agent)
	return agent, nil
}

// Agents lists the current identity's agents.
func (k *Kernel) Agents() ([]store.Agent, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}
	return k.db.GetAgents(did)
}

// CheckpointAgent hashes an agent's current state and records it as a
// checkpoint, scoped to the agent on the chain.
func (k *Kernel) CheckpointAgent(agentID string) (*store.Checkpoint, error) {
	did := k.CurrentDID()
	if did == "" {
		return nil, ErrNoActiveIdentity
	}

	agent, err := k.db.GetAgent(agentID, did)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}

	state, err := json.Marshal(agent)
	if err != nil {
		return nil, fmt.Errorf("marshal agent state: %w", err)
	}
	sum := sha256.Sum256(state)

	cp := &store.Checkpoint{
		CheckpointID: uuid.NewString(),
		AgentID:      agentID,
		StateHash:    hex.EncodeToString(sum[:]),
		CreatedAt:    time.Now().UnixMilli(),
	}
	if err := k.db.AddCheckpoint(cp); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"agentId": agentID, "checkpointId": cp.CheckpointID})
	if _, err := k.Emit("agent_checkpoint", 1, ctx, agentID, nil); err != nil {
		return nil, err
	}
	return cp, nil
}

// TerminateAgent marks an agent terminated and records the action.
func (k *Kernel) TerminateAgent(agentID string) error {
	did := k.CurrentDID()
	if did == "" {
		return ErrNoActiveIdentity
	}

	changed, err := k.db.UpdateAgentStatus(agentID, did, "terminated")
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}

	ctx, _ := json.Marshal(map[string]string{"agentId": agentID})
	if _, err := k.Emit("agent_terminated", -2, ctx, agentID, nil); err != nil {
		return err
	}

	k.bus.Publish(EventAgentTerminated, agentID)
	return nil
}
