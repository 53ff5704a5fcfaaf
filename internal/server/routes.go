package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/pulse/internal/kernel"
)

func limitParam(r *http.Request, def int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// --- identity ---

func (s *Server) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mnemonic string `json:"mnemonic"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.kernel.CreateIdentity(req.Mnemonic)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{
		"identity":  res.Identity,
		"recovered": res.Recovered,
	}
	// The phrase is returned exactly once, on first creation.
	if !res.Recovered {
		body["mnemonic"] = res.Mnemonic
	}
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) handleRecoverIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mnemonic string `json:"mnemonic"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mnemonic == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mnemonic required"})
		return
	}

	res, err := s.kernel.RecoverIdentity(req.Mnemonic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":  res.Identity,
		"recovered": res.Recovered,
	})
}

func (s *Server) handleCurrentIdentity(w http.ResponseWriter, r *http.Request) {
	ident, err := s.kernel.CurrentIdentity()
	if err != nil {
		writeError(w, err)
		return
	}
	if ident == nil {
		writeError(w, kernel.ErrNoActiveIdentity)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.Logout(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// --- pulses ---

func (s *Server) handleEmitPulse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  string          `json:"action"`
		Impact  float64         `json:"impact"`
		Context json.RawMessage `json:"context"`
		AgentID string          `json:"agent_id"`
		Deps    []string        `json:"dependencies"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action required"})
		return
	}

	p, err := s.kernel.Emit(req.Action, req.Impact, req.Context, req.AgentID, req.Deps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPulses(w http.ResponseWriter, r *http.Request) {
	did := s.kernel.CurrentDID()
	if did == "" {
		writeError(w, kernel.ErrNoActiveIdentity)
		return
	}

	pulses, err := s.kernel.Pulses(did, limitParam(r, 50), r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pulses": pulses})
}

func (s *Server) handleGlobalPulses(w http.ResponseWriter, r *http.Request) {
	pulses, err := s.kernel.AllPulses(limitParam(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pulses": pulses})
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	did := s.kernel.CurrentDID()
	if did == "" {
		writeError(w, kernel.ErrNoActiveIdentity)
		return
	}

	report, err := s.kernel.VerifyChain(did)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- aggregates ---

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	idents, err := s.kernel.Leaderboard(limitParam(r, 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": idents})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.kernel.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.kernel.Export()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// --- policy keys ---

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject     string          `json:"subject"`
		Verb        string          `json:"verb"`
		ObjectRef   string          `json:"object_ref"`
		Constraints json.RawMessage `json:"constraints"`
		ExpiresAt   *int64          `json:"expires_at"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var expires *time.Time
	if req.ExpiresAt != nil {
		t := time.UnixMilli(*req.ExpiresAt)
		expires = &t
	}

	key, err := s.kernel.CreatePolicyKey(req.Subject, req.Verb, req.ObjectRef, req.Constraints, expires)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (s *Server) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.kernel.PolicyKeys()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.RevokePolicyKey(chi.URLParam(r, "keyID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// --- agents ---

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string          `json:"name"`
		Type   string          `json:"agent_type"`
		Config json.RawMessage `json:"config"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}

	agent, err := s.kernel.SpawnAgent(req.Name, req.Type, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleGetAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.kernel.Agents()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleCheckpointAgent(w http.ResponseWriter, r *http.Request) {
	cp, err := s.kernel.CheckpointAgent(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleTerminateAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.TerminateAgent(chi.URLParam(r, "agentID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}

// --- governance ---

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		Type          string `json:"proposal_type"`
		DeadlineHours int    `json:"deadline_hours"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.gov.CreateProposal(req.Title, req.Description, req.Type, req.DeadlineHours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := s.gov.Proposals(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.gov.CloseIfExpired(chi.URLParam(r, "proposalID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice string `json:"choice"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	weight, p, err := s.gov.Vote(chi.URLParam(r, "proposalID"), req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"weight": weight, "proposal": p})
}

// --- economy ---

func (s *Server) handleCreateStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount       float64 `json:"amount"`
		DurationDays int     `json:"duration_days"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := s.eco.CreateStake(req.Amount, req.DurationDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetStakes(w http.ResponseWriter, r *http.Request) {
	stakes, err := s.eco.Stakes()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": stakes})
}

func (s *Server) handleUnlockStake(w http.ResponseWriter, r *http.Request) {
	st, err := s.eco.UnlockStake(chi.URLParam(r, "stakeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- social ---

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Private     bool   `json:"is_private"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := s.soc.CreateChannel(req.Name, req.Description, req.Private)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.soc.Channels()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (s *Server) handleJoinChannel(w http.ResponseWriter, r *http.Request) {
	c, err := s.soc.JoinChannel(chi.URLParam(r, "channelID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := s.soc.SendMessage(chi.URLParam(r, "channelID"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.soc.Messages(chi.URLParam(r, "channelID"), limitParam(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.soc.CreatePost(req.Content, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	posts, err := s.soc.Posts(limitParam(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reaction string `json:"reaction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.soc.React(chi.URLParam(r, "postID"), req.Reaction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
