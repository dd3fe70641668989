package models

import (
	"time"

	"github.com/google/uuid"
)

// Certification сертификат в профиле фрилансера.
type Certification struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"userId"`
	Name          string     `db:"name" json:"name"`
	Issuer        string     `db:"issuer" json:"issuer"`
	IssueDate     time.Time  `db:"issue_date" json:"issueDate"`
	ExpiryDate    *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	CredentialID  *string    `db:"credential_id" json:"credentialId,omitempty"`
	CredentialURL *string    `db:"credential_url" json:"credentialUrl,omitempty"`
	DocumentPath  *string    `db:"document_path" json:"documentPath,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
