// Package governance implements proposals with karma-weighted voting on
// top of the kernel's pulse chain.
package governance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/pulse/internal/kernel"
	"github.com/lazypower/pulse/internal/store"
)

// Event names published by the governance module.
const (
	EventProposalCreated = "proposal:created"
	EventProposalClosed  = "proposal:closed"
	EventVoteCast        = "vote:cast"
)

// Service exposes governance operations over the kernel.
type Service struct {
	k  *kernel.Kernel
	db *store.DB
}

// New creates a governance Service.
func New(k *kernel.Kernel) *Service {
	return &Service{k: k, db: k.DB()}
}

// CreateProposal opens a proposal with a voting deadline the given number
// of hours from now.
func (s *Service) CreateProposal(title, description, proposalType string, deadlineHours int) (*store.Proposal, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return nil, kernel.ErrNoActiveIdentity
	}
	if title == "" {
		return nil, fmt.Errorf("title required: %w", kernel.ErrInvalidArgument)
	}
	if proposalType == "" {
		proposalType = "general"
	}
	if deadlineHours <= 0 {
		deadlineHours = 168
	}

	now := time.Now()
	p := &store.Proposal{
		ProposalID:  uuid.NewString(),
		DID:         did,
		Title:       title,
		Description: description,
		Type:        proposalType,
		Status:      "active",
		CreatedAt:   now.UnixMilli(),
		Deadline:    now.Add(time.Duration(deadlineHours) * time.Hour).UnixMilli(),
	}
	if err := s.db.SaveProposal(p); err != nil {
		return nil, err
	}

	ctx, _ := json.Marshal(map[string]string{"proposalId": p.ProposalID, "title": title})
	if _, err := s.k.Emit("proposal_created", 3, ctx, "", nil); err != nil {
		return nil, err
	}

	s.k.Publish(EventProposalCreated, p)
	return p, nil
}

// Proposals lists proposals newest-first, optionally filtered by status.
func (s *Service) Proposals(status string) ([]store.Proposal, error) {
	return s.db.GetProposals(status)
}

// Proposal returns one proposal, or ErrNotFound.
func (s *Service) Proposal(proposalID string) (*store.Proposal, error) {
	p, err := s.db.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, kernel.ErrNotFound)
	}
	return p, nil
}

// Vote casts a karma-weighted vote. Weight is max(1, karma/10). Voting on
// a closed proposal, voting twice, or voting past the deadline all fail;
// a past-deadline vote also closes the proposal.
func (s *Service) Vote(proposalID, choice string) (float64, *store.Proposal, error) {
	did := s.k.CurrentDID()
	if did == "" {
		return 0, nil, kernel.ErrNoActiveIdentity
	}
	if choice != "for" && choice != "against" {
		return 0, nil, fmt.Errorf("choice %q: %w", choice, kernel.ErrInvalidArgument)
	}

	p, err := s.Proposal(proposalID)
	if err != nil {
		return 0, nil, err
	}
	if p.Status != "active" {
		return 0, nil, fmt.Errorf("voting closed: %w", kernel.ErrExpired)
	}

	voted, err := s.db.HasVoted(proposalID, did)
	if err != nil {
		return 0, nil, err
	}
	if voted {
		return 0, nil, fmt.Errorf("already voted: %w", kernel.ErrAlreadyDone)
	}

	now := time.Now()
	if now.UnixMilli() > p.Deadline {
		p.Status = "closed"
		if err := s.db.SaveProposal(p); err != nil {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("voting deadline passed: %w", kernel.ErrExpired)
	}

	ident, err := s.db.GetIdentity(did)
	if err != nil {
		return 0, nil, err
	}
	weight := 1.0
	if ident != nil && ident.Karma/10 > weight {
		weight = ident.Karma / 10
	}

	if err := s.db.RecordVote(&store.Vote{
		ProposalID: proposalID,
		DID:        did,
		Choice:     choice,
		Weight:     weight,
		CreatedAt:  now.UnixMilli(),
	}); err != nil {
		return 0, nil, err
	}

	ctx, _ := json.Marshal(map[string]any{"proposalId": proposalID, "vote": choice, "weight": weight})
	if _, err := s.k.Emit("vote_cast", 1, ctx, "", nil); err != nil {
		return 0, nil, err
	}

	p, err = s.Proposal(proposalID)
	if err != nil {
		return 0, nil, err
	}
	s.k.Publish(EventVoteCast, p)
	return weight, p, nil
}

// CloseIfExpired resolves a proposal whose deadline has passed, setting
// result to passed or rejected. Active proposals before their deadline
// are returned unchanged.
func (s *Service) CloseIfExpired(proposalID string) (*store.Proposal, error) {
	p, err := s.Proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != "active" || time.Now().UnixMilli() <= p.Deadline {
		return p, nil
	}

	p.Status = "closed"
	if p.VotesFor > p.VotesAgainst {
		p.Result = "passed"
	} else {
		p.Result = "rejected"
	}
	if err := s.db.SaveProposal(p); err != nil {
		return nil, err
	}
	s.k.Publish(EventProposalClosed, p)
	return p, nil
}
