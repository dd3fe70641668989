package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/dto"
	"github.com/ignatzorin/marketplace-api/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-api/internal/http/response"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/service"
)

// PaymentUseCases операции эскроу.
type PaymentUseCases interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
	CreateEscrow(ctx context.Context, actor service.Actor, proposalID uuid.UUID, amount *float64, idempotencyKey string) (*models.Payment, error)
	Release(ctx context.Context, actor service.Actor, paymentID uuid.UUID, idempotencyKey string) (*models.Payment, error)
	Refund(ctx context.Context, actor service.Actor, paymentID uuid.UUID, reason, idempotencyKey string) (*models.Payment, error)
}

// PaymentHandler обслуживает /payments.
type PaymentHandler struct {
	payments PaymentUseCases
}

// NewPaymentHandler создаёт хэндлер платежей.
func NewPaymentHandler(payments PaymentUseCases) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// History обрабатывает GET /payments/history.
func (h *PaymentHandler) History(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	payments, err := h.payments.List(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, payments)
}

// CreateEscrow обрабатывает POST /payments/escrow.
func (h *PaymentHandler) CreateEscrow(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	key, ok := common.IdempotencyKey(c)
	if !ok {
		return
	}

	var req dto.EscrowRequest
	if !common.BindJSON(c, &req) {
		return
	}
	proposalID, err := uuid.Parse(req.ProposalID)
	if err != nil {
		response.Validation(c, "proposalId должен быть валидным UUID")
		return
	}

	payment, err := h.payments.CreateEscrow(c.Request.Context(), actor, proposalID, req.Amount.Float(), key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, payment)
}

// Release обрабатывает POST /payments/release/:paymentId.
func (h *PaymentHandler) Release(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	paymentID, ok := common.UUIDParam(c, "paymentId")
	if !ok {
		return
	}
	key, ok := common.IdempotencyKey(c)
	if !ok {
		return
	}

	payment, err := h.payments.Release(c.Request.Context(), actor, paymentID, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, payment)
}

// Refund обрабатывает POST /payments/refund/:paymentId. Тело необязательно.
func (h *PaymentHandler) Refund(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	paymentID, ok := common.UUIDParam(c, "paymentId")
	if !ok {
		return
	}
	key, ok := common.IdempotencyKey(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if c.Request.ContentLength != 0 && !common.BindJSON(c, &req) {
		return
	}

	payment, err := h.payments.Refund(c.Request.Context(), actor, paymentID, req.Reason, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, payment)
}
