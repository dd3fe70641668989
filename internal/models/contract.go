package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract соглашение, возникающее из принятого предложения.
type Contract struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ProposalID   uuid.UUID  `db:"proposal_id" json:"proposalId"`
	JobID        uuid.UUID  `db:"job_id" json:"jobId"`
	ClientID     uuid.UUID  `db:"client_id" json:"clientId"`
	FreelancerID uuid.UUID  `db:"freelancer_id" json:"freelancerId"`
	Amount       float64    `db:"amount" json:"amount"`
	Status       string     `db:"status" json:"status"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	EndedAt      *time.Time `db:"ended_at" json:"endedAt,omitempty"`
}

// IsParticipant сообщает, является ли пользователь стороной контракта.
func (c *Contract) IsParticipant(userID uuid.UUID) bool {
	return c.ClientID == userID || c.FreelancerID == userID
}

// Counterparty возвращает другую сторону контракта.
func (c *Contract) Counterparty(userID uuid.UUID) uuid.UUID {
	if c.ClientID == userID {
		return c.FreelancerID
	}
	return c.ClientID
}
