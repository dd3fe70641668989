package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

// Ошибки репозитория предложений.
var (
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrDuplicateProposal = errors.New("proposal already exists for job and freelancer")
)

const proposalUniqueConstraint = "proposals_job_freelancer_key"

const proposalColumns = `id, job_id, freelancer_id, cover_letter, amount, duration, status, created_at, updated_at`

const proposalSelect = `
	SELECT p.id, p.job_id, p.freelancer_id, p.cover_letter, p.amount, p.duration, p.status, p.created_at, p.updated_at,
		u.name AS freelancer_name, u.image AS freelancer_image
	FROM proposals p
	JOIN users u ON u.id = p.freelancer_id
`

// proposalRow предложение вместе с карточкой фрилансера.
type proposalRow struct {
	models.Proposal
	FreelancerName  string  `db:"freelancer_name"`
	FreelancerImage *string `db:"freelancer_image"`
}

func (r proposalRow) toModel() models.Proposal {
	p := r.Proposal
	p.Freelancer = &models.UserSummary{ID: p.FreelancerID, Name: r.FreelancerName, Image: r.FreelancerImage}
	return p
}

// proposalJobRow предложение с краткими данными заказа.
type proposalJobRow struct {
	models.Proposal
	JobTitle    string    `db:"job_title"`
	JobClientID uuid.UUID `db:"job_client_id"`
	JobStatus   string    `db:"job_status"`
	JobBudget   float64   `db:"job_budget"`
	JobCategory string    `db:"job_category"`
}

func (r proposalJobRow) toModel() models.Proposal {
	p := r.Proposal
	p.Job = &models.Job{
		ID:       p.JobID,
		ClientID: r.JobClientID,
		Title:    r.JobTitle,
		Status:   r.JobStatus,
		Budget:   r.JobBudget,
		Category: r.JobCategory,
	}
	return p
}

// ProposalRepository отвечает за работу с откликами.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository создаёт экземпляр репозитория.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Create добавляет отклик. Повторный отклик на тот же заказ даёт ErrDuplicateProposal.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	query := `
		INSERT INTO proposals (id, job_id, freelancer_id, cover_letter, amount, duration, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if proposal.ID == uuid.Nil {
		proposal.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		proposal.ID, proposal.JobID, proposal.FreelancerID, proposal.CoverLetter, proposal.Amount,
		proposal.Duration, proposal.Status,
	).Scan(&proposal.CreatedAt, &proposal.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, proposalUniqueConstraint) {
			return ErrDuplicateProposal
		}
		return fmt.Errorf("proposal repository: create %w", err)
	}

	return nil
}

// GetByID возвращает отклик по идентификатору.
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var proposal models.Proposal
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &proposal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("proposal repository: get by id %w", err)
	}
	return &proposal, nil
}

// GetWithJob возвращает отклик вместе с данными его заказа.
func (r *ProposalRepository) GetWithJob(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	rows, err := r.ListWithJobs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrProposalNotFound
	}
	return &rows[0], nil
}

// ListWithJobs возвращает отклики с данными заказов одним запросом.
func (r *ProposalRepository) ListWithJobs(ctx context.Context, ids []uuid.UUID) ([]models.Proposal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT p.id, p.job_id, p.freelancer_id, p.cover_letter, p.amount, p.duration, p.status, p.created_at, p.updated_at,
			j.title AS job_title, j.client_id AS job_client_id, j.status AS job_status,
			j.budget AS job_budget, j.category AS job_category
		FROM proposals p
		JOIN jobs j ON j.id = p.job_id
		WHERE p.id = ANY($1)
	`

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	var rows []proposalJobRow
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &rows, query, pq.Array(strIDs)); err != nil {
		return nil, fmt.Errorf("proposal repository: list with jobs %w", err)
	}

	proposals := make([]models.Proposal, len(rows))
	for i, row := range rows {
		proposals[i] = row.toModel()
	}
	return proposals, nil
}

// ListByJob возвращает отклики на заказ с карточками фрилансеров.
func (r *ProposalRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Proposal, error) {
	return r.list(ctx, proposalSelect+` WHERE p.job_id = $1 ORDER BY p.created_at DESC`, jobID)
}

// ListByFreelancer возвращает все отклики фрилансера.
func (r *ProposalRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error) {
	return r.list(ctx, proposalSelect+` WHERE p.freelancer_id = $1 ORDER BY p.created_at DESC`, freelancerID)
}

func (r *ProposalRepository) list(ctx context.Context, query string, arg interface{}) ([]models.Proposal, error) {
	var rows []proposalRow
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("proposal repository: list %w", err)
	}

	proposals := make([]models.Proposal, len(rows))
	for i, row := range rows {
		proposals[i] = row.toModel()
	}
	return proposals, nil
}

// Exists проверяет, откликался ли фрилансер на заказ.
func (r *ProposalRepository) Exists(ctx context.Context, jobID, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM proposals WHERE job_id = $1 AND freelancer_id = $2)`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &exists, query, jobID, freelancerID); err != nil {
		return false, fmt.Errorf("proposal repository: exists %w", err)
	}
	return exists, nil
}

// TransitionStatus меняет статус только из from. Иначе common.ErrNoRowsChanged.
func (r *ProposalRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Proposal, error) {
	var proposal models.Proposal
	query := `
		UPDATE proposals SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + proposalColumns
	if err := common.Executor(ctx, r.db).GetContext(ctx, &proposal, query, id, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoRowsChanged
		}
		return nil, fmt.Errorf("proposal repository: transition status %w", err)
	}
	return &proposal, nil
}
