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

// ErrPaymentNotFound возвращается, когда платёж не найден.
var ErrPaymentNotFound = errors.New("payment not found")

const paymentColumns = `id, user_id, proposal_id, amount, type, status, refund_reason, created_at, updated_at`

// PaymentRepository отвечает за escrow-платежи.
type PaymentRepository struct {
	db        *sqlx.DB
	proposals *ProposalRepository
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB, proposals *ProposalRepository) *PaymentRepository {
	return &PaymentRepository{db: db, proposals: proposals}
}

// Create сохраняет платёж.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, proposal_id, amount, type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		payment.ID, payment.UserID, payment.ProposalID, payment.Amount, payment.Type, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return fmt.Errorf("payment repository: create %w", err)
	}

	return nil
}

// GetByID возвращает платёж по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &payment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}
	return &payment, nil
}

// ListByUser возвращает платежи пользователя, новые первыми, с откликом и заказом.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`

	var payments []models.Payment
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &payments, query, userID); err != nil {
		return nil, fmt.Errorf("payment repository: list by user %w", err)
	}
	if len(payments) == 0 {
		return payments, nil
	}

	// Подтягиваем отклики одним запросом вместо N+1
	seen := make(map[uuid.UUID]struct{}, len(payments))
	ids := make([]uuid.UUID, 0, len(payments))
	for _, p := range payments {
		if _, ok := seen[p.ProposalID]; ok {
			continue
		}
		seen[p.ProposalID] = struct{}{}
		ids = append(ids, p.ProposalID)
	}

	proposals, err := r.proposals.ListWithJobs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list proposals %w", err)
	}
	byID := make(map[uuid.UUID]*models.Proposal, len(proposals))
	for i := range proposals {
		byID[proposals[i].ID] = &proposals[i]
	}
	for i := range payments {
		payments[i].Proposal = byID[payments[i].ProposalID]
	}

	return payments, nil
}

// Settle переписывает escrow-платёж в итоговое состояние.
// Срабатывает только для строки {ESCROW, PENDING}, иначе common.ErrNoRowsChanged.
func (r *PaymentRepository) Settle(ctx context.Context, id uuid.UUID, paymentType, status string, reason *string) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET type = $2, status = $3, refund_reason = $4, updated_at = NOW()
		WHERE id = $1 AND type = 'ESCROW' AND status = 'PENDING'
		RETURNING ` + paymentColumns

	var payment models.Payment
	if err := common.Executor(ctx, r.db).GetContext(ctx, &payment, query, id, paymentType, status, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoRowsChanged
		}
		return nil, fmt.Errorf("payment repository: settle %w", err)
	}
	return &payment, nil
}
