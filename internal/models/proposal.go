package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal отклик фрилансера на заказ.
type Proposal struct {
	ID           uuid.UUID `db:"id" json:"id"`
	JobID        uuid.UUID `db:"job_id" json:"jobId"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancerId"`
	CoverLetter  string    `db:"cover_letter" json:"coverLetter"`
	Amount       float64   `db:"amount" json:"amount"`
	Duration     *string   `db:"duration" json:"duration,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	Freelancer *UserSummary `db:"-" json:"freelancer,omitempty"`
	Job        *Job         `db:"-" json:"job,omitempty"`
}
