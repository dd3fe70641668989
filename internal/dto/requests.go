package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ignatzorin/marketplace-api/internal/models"
)

var (
	// ErrInvalidSkills skills не массив строк и не строка.
	ErrInvalidSkills = errors.New("skills должен быть массивом строк или строкой")
	// ErrInvalidNumber значение не число и не строка с числом.
	ErrInvalidNumber = errors.New("ожидается число")
	// ErrInvalidDate дата не в формате YYYY-MM-DD или RFC3339.
	ErrInvalidDate = errors.New("дата должна быть в формате YYYY-MM-DD или RFC3339")
)

var null = []byte("null")

// SkillList принимает навыки массивом, строкой с JSON массивом или строкой через запятую.
type SkillList []string

func (s *SkillList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*s = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidSkills
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return ErrInvalidSkills
		}
		*s = list
		return nil
	}

	list = []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			list = append(list, p)
		}
	}
	*s = list
	return nil
}

// Number число, которое клиенты иногда присылают строкой ("500").
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Number(f)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidNumber
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrInvalidNumber
	}
	*n = Number(f)
	return nil
}

// Float возвращает nil, если поле не передано.
func (n *Number) Float() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// Date дата в формате YYYY-MM-DD или RFC3339.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidDate
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return ErrInvalidDate
}

// Ptr возвращает nil, если дата не передана.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// RegisterRequest тело POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest тело POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest тело POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateJobRequest тело POST /jobs.
type CreateJobRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Budget      *Number   `json:"budget"`
	Skills      SkillList `json:"skills"`
	Deadline    *Date     `json:"deadline"`
	JobType     *string   `json:"jobType"`
	Experience  *string   `json:"experience"`
	Duration    *string   `json:"duration"`
	Location    *string   `json:"location"`
	Status      string    `json:"status"`
}

// UpdateJobRequest тело PUT /jobs/:id. Поля вне списка, включая status, игнорируются.
type UpdateJobRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Budget      *Number   `json:"budget"`
	Skills      SkillList `json:"skills"`
	Deadline    *Date     `json:"deadline"`
	JobType     *string   `json:"jobType"`
	Experience  *string   `json:"experience"`
	Duration    *string   `json:"duration"`
	Location    *string   `json:"location"`
}

// Patch превращает запрос в патч заказа.
func (r UpdateJobRequest) Patch() models.JobPatch {
	var skills []string
	if r.Skills != nil {
		skills = []string(r.Skills)
	}
	return models.JobPatch{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Budget:      r.Budget.Float(),
		Skills:      skills,
		Deadline:    r.Deadline.Ptr(),
		JobType:     r.JobType,
		Experience:  r.Experience,
		Duration:    r.Duration,
		Location:    r.Location,
	}
}

// JobStatusRequest тело PATCH /jobs/:id/status.
type JobStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ProposalRequest тело POST /jobs/:id/proposals.
type ProposalRequest struct {
	CoverLetter string  `json:"coverLetter"`
	Amount      *Number `json:"amount"`
	Duration    *string `json:"duration"`
}

// EscrowRequest тело POST /payments/escrow.
type EscrowRequest struct {
	ProposalID string  `json:"proposalId" binding:"required"`
	Amount     *Number `json:"amount"`
}

// RefundRequest тело POST /payments/:id/refund.
type RefundRequest struct {
	Reason string `json:"reason"`
}

// PurchaseRequest тело POST /connect-purchase/purchase.
type PurchaseRequest struct {
	PackageID *int `json:"packageId"`
}

// CertificationRequest тело создания и изменения сертификата.
type CertificationRequest struct {
	Name          string  `json:"name"`
	Issuer        string  `json:"issuer"`
	IssueDate     *Date   `json:"issueDate"`
	ExpiryDate    *Date   `json:"expiryDate"`
	CredentialID  *string `json:"credentialId"`
	CredentialURL *string `json:"credentialUrl"`
}
