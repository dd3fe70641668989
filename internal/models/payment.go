package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment escrow-платёж по предложению.
// При выплате или возврате строка переписывается на месте.
type Payment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"userId"`
	ProposalID   uuid.UUID `db:"proposal_id" json:"proposalId"`
	Amount       float64   `db:"amount" json:"amount"`
	Type         string    `db:"type" json:"type"`
	Status       string    `db:"status" json:"status"`
	RefundReason *string   `db:"refund_reason" json:"refundReason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	Proposal *Proposal `db:"-" json:"proposal,omitempty"`
}

// IsHeld истинно, пока средства находятся в escrow.
func (p *Payment) IsHeld() bool {
	return p.Type == PaymentTypeEscrow && p.Status == PaymentStatusPending
}
