package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

// ErrContractNotFound возвращается, когда контракт не найден.
var ErrContractNotFound = errors.New("contract not found")

const contractColumns = `id, proposal_id, job_id, client_id, freelancer_id, amount, status, started_at, ended_at`

// ContractRepository отвечает за работу с контрактами.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository создаёт экземпляр репозитория.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create сохраняет контракт.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	query := `
		INSERT INTO contracts (id, proposal_id, job_id, client_id, freelancer_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING started_at
	`

	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		contract.ID, contract.ProposalID, contract.JobID, contract.ClientID, contract.FreelancerID,
		contract.Amount, contract.Status,
	).Scan(&contract.StartedAt); err != nil {
		return fmt.Errorf("contract repository: create %w", err)
	}

	return nil
}

// GetByID возвращает контракт по идентификатору.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &contract, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract repository: get by id %w", err)
	}
	return &contract, nil
}

// ListByUser возвращает контракты, где пользователь клиент или исполнитель.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY started_at DESC
	`

	var contracts []models.Contract
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &contracts, query, userID); err != nil {
		return nil, fmt.Errorf("contract repository: list by user %w", err)
	}
	return contracts, nil
}

// HasActiveForJob проверяет наличие активного контракта по откликам заказа.
func (r *ContractRepository) HasActiveForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM contracts c
			JOIN proposals p ON p.id = c.proposal_id
			WHERE p.job_id = $1 AND c.status = 'ACTIVE'
		)
	`

	var exists bool
	if err := common.Executor(ctx, r.db).GetContext(ctx, &exists, query, jobID); err != nil {
		return false, fmt.Errorf("contract repository: has active %w", err)
	}
	return exists, nil
}

// TransitionStatus завершает контракт из статуса from. Иначе common.ErrNoRowsChanged.
func (r *ContractRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Contract, error) {
	query := `
		UPDATE contracts
		SET status = $3, ended_at = CASE WHEN $3 = 'ACTIVE' THEN NULL ELSE NOW() END
		WHERE id = $1 AND status = $2
		RETURNING ` + contractColumns

	var contract models.Contract
	if err := common.Executor(ctx, r.db).GetContext(ctx, &contract, query, id, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoRowsChanged
		}
		return nil, fmt.Errorf("contract repository: transition status %w", err)
	}
	return &contract, nil
}
