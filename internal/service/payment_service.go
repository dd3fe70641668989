package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
	"github.com/ignatzorin/marketplace-api/internal/validation"
)

// PaymentRepository описывает зависимости сервиса от хранилища платежей.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
	Settle(ctx context.Context, id uuid.UUID, paymentType, status string, reason *string) (*models.Payment, error)
}

var paymentErrors = map[error]*apperror.AppError{
	repository.ErrPaymentNotFound:  apperror.ErrPaymentNotFound,
	repository.ErrProposalNotFound: apperror.ErrProposalNotFound,
}

// PaymentService содержит бизнес-логику escrow-платежей.
type PaymentService struct {
	tx          Transactor
	payments    PaymentRepository
	proposals   ProposalRepository
	idempotency IdempotencyStore
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(tx Transactor, payments PaymentRepository, proposals ProposalRepository, idempotency IdempotencyStore) *PaymentService {
	return &PaymentService{
		tx:          tx,
		payments:    payments,
		proposals:   proposals,
		idempotency: idempotency,
	}
}

// List возвращает платежи пользователя с откликами и заказами.
func (s *PaymentService) List(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}

// CreateEscrow резервирует средства по отклику. Доступно только клиенту заказа.
func (s *PaymentService) CreateEscrow(ctx context.Context, actor Actor, proposalID uuid.UUID, amount *float64, idempotencyKey string) (*models.Payment, error) {
	proposal, err := s.proposals.GetWithJob(ctx, proposalID)
	if err != nil {
		return nil, storeError(err, paymentErrors)
	}
	if proposal.Job == nil || proposal.Job.ClientID != actor.ID {
		return nil, apperror.ErrForbidden
	}
	if amount == nil {
		return nil, apperror.Validation("amount обязателен")
	}
	if err := validation.ValidateBudget("amount", *amount); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	var payment *models.Payment
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		payment, err = idempotent(ctx, s.idempotency, actor.ID, OpEscrow, idempotencyKey, s.load,
			func(ctx context.Context) (*models.Payment, uuid.UUID, error) {
				p := &models.Payment{
					UserID:     actor.ID,
					ProposalID: proposalID,
					Amount:     *amount,
					Type:       models.PaymentTypeEscrow,
					Status:     models.PaymentStatusPending,
				}
				if err := s.payments.Create(ctx, p); err != nil {
					return nil, uuid.Nil, storeError(err, nil)
				}
				return p, p.ID, nil
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"payment_id":  payment.ID,
		"proposal_id": proposalID,
		"amount":      payment.Amount,
	}).Info("payment service: средства зарезервированы")

	return payment, nil
}

// Release выплачивает зарезервированные средства: строка становится {RELEASE, COMPLETED}.
func (s *PaymentService) Release(ctx context.Context, actor Actor, paymentID uuid.UUID, idempotencyKey string) (*models.Payment, error) {
	return s.settle(ctx, actor, paymentID, OpRelease, idempotencyKey, models.PaymentTypeRelease, models.PaymentStatusCompleted, nil)
}

// Refund возвращает средства клиенту: строка становится {REFUND, REFUNDED}, причина сохраняется.
func (s *PaymentService) Refund(ctx context.Context, actor Actor, paymentID uuid.UUID, reason, idempotencyKey string) (*models.Payment, error) {
	var stored *string
	if r := strings.TrimSpace(reason); r != "" {
		if err := validation.ValidateLength("reason", r, 0, validation.MaxCoverLetterLength); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
		stored = &r
	}
	return s.settle(ctx, actor, paymentID, OpRefund, idempotencyKey, models.PaymentTypeRefund, models.PaymentStatusRefunded, stored)
}

func (s *PaymentService) settle(
	ctx context.Context,
	actor Actor,
	paymentID uuid.UUID,
	operation, idempotencyKey string,
	paymentType, status string,
	reason *string,
) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, storeError(err, paymentErrors)
	}
	proposal, err := s.proposals.GetWithJob(ctx, payment.ProposalID)
	if err != nil {
		return nil, storeError(err, paymentErrors)
	}
	if proposal.Job == nil || proposal.Job.ClientID != actor.ID {
		return nil, apperror.ErrForbidden
	}

	var settled *models.Payment
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		settled, err = idempotent(ctx, s.idempotency, actor.ID, operation, idempotencyKey, s.load,
			func(ctx context.Context) (*models.Payment, uuid.UUID, error) {
				p, err := s.payments.Settle(ctx, paymentID, paymentType, status, reason)
				if err != nil {
					if errors.Is(err, common.ErrNoRowsChanged) {
						return nil, uuid.Nil, apperror.ErrPaymentSettled
					}
					return nil, uuid.Nil, storeError(err, paymentErrors)
				}
				return p, p.ID, nil
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"payment_id": paymentID,
		"type":       settled.Type,
		"status":     settled.Status,
	}).Info("payment service: платёж завершён")

	return settled, nil
}

func (s *PaymentService) load(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, paymentErrors)
	}
	return p, nil
}
