package store

import (
	"database/sql"
	"fmt"
)

// Proposal is a governance item open for karma-weighted voting.
type Proposal struct {
	ID           int64   `json:"-"`
	ProposalID   string  `json:"id"`
	DID          string  `json:"did"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Type         string  `json:"proposalType"`
	Status       string  `json:"status"`
	VotesFor     float64 `json:"votesFor"`
	VotesAgainst float64 `json:"votesAgainst"`
	Result       string  `json:"result,omitempty"`
	CreatedAt    int64   `json:"createdAt"`
	Deadline     int64   `json:"votingDeadline"`
}

// Vote is one identity's weighted vote on a proposal.
type Vote struct {
	ProposalID string  `json:"proposalId"`
	DID        string  `json:"did"`
	Choice     string  `json:"choice"`
	Weight     float64 `json:"weight"`
	CreatedAt  int64   `json:"createdAt"`
}

// SaveProposal inserts or replaces a proposal.
func (db *DB) SaveProposal(p *Proposal) error {
	var result any
	if p.Result != "" {
		result = p.Result
	}
	_, err := db.Exec(`
		INSERT INTO proposals (proposal_id, did, title, description, proposal_type, status, votes_for, votes_against, result, created_at, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(proposal_id) DO UPDATE SET
			status        = excluded.status,
			votes_for     = excluded.votes_for,
			votes_against = excluded.votes_against,
			result        = excluded.result
	`, p.ProposalID, p.DID, p.Title, p.Description, p.Type, p.Status, p.VotesFor, p.VotesAgainst, result, p.CreatedAt, p.Deadline)
	if err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	return nil
}

func scanProposal(row interface{ Scan(...any) error }) (*Proposal, error) {
	var p Proposal
	var result sql.NullString
	err := row.Scan(&p.ID, &p.ProposalID, &p.DID, &p.Title, &p.Description, &p.Type, &p.Status, &p.VotesFor, &p.VotesAgainst, &result, &p.CreatedAt, &p.Deadline)
	if err != nil {
		return nil, err
	}
	p.Result = result.String
	return &p, nil
}

const proposalColumns = `id, proposal_id, did, title, description, proposal_type, status, votes_for, votes_against, result, created_at, deadline`

// GetProposal returns a proposal by id, or nil if absent.
func (db *DB) GetProposal(proposalID string) (*Proposal, error) {
	row := db.QueryRow(`SELECT `+proposalColumns+` FROM proposals WHERE proposal_id = ?`, proposalID)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// GetProposals returns proposals newest-first, optionally filtered by status.
func (db *DB) GetProposals(status string) ([]Proposal, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = db.Query(`SELECT `+proposalColumns+` FROM proposals WHERE status = ? ORDER BY created_at DESC`, status)
	} else {
		rows, err = db.Query(`SELECT ` + proposalColumns + ` FROM proposals ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposals: %w", err)
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// HasVoted reports whether a DID has already voted on a proposal.
func (db *DB) HasVoted(proposalID, did string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM proposal_votes WHERE proposal_id = ? AND did = ?
	`, proposalID, did).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return n > 0, nil
}

// RecordVote inserts a vote and applies its weight to the proposal tally
// in one transaction. The unique (proposal_id, did) constraint rejects
// double votes at the storage layer too.
func (db *DB) RecordVote(v *Vote) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin vote: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO proposal_votes (proposal_id, did, choice, weight, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.ProposalID, v.DID, v.Choice, v.Weight, v.CreatedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert vote: %w", err)
	}

	column := "votes_for"
	if v.Choice == "against" {
		column = "votes_against"
	}
	if _, err := tx.Exec(`
		UPDATE proposals SET `+column+` = `+column+` + ? WHERE proposal_id = ?
	`, v.Weight, v.ProposalID); err != nil {
		tx.Rollback()
		return fmt.Errorf("tally vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vote: %w", err)
	}
	return nil
}
