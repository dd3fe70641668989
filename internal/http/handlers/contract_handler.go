package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-api/internal/http/response"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/service"
)

// ContractUseCases операции над контрактами.
type ContractUseCases interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Contract, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Contract, error)
	Complete(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Contract, error)
	Cancel(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Contract, error)
}

// ContractHandler обслуживает /contracts.
type ContractHandler struct {
	contracts ContractUseCases
}

// NewContractHandler создаёт хэндлер контрактов.
func NewContractHandler(contracts ContractUseCases) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// List обрабатывает GET /contracts.
func (h *ContractHandler) List(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	contracts, err := h.contracts.List(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, contracts)
}

// Get обрабатывает GET /contracts/:id.
func (h *ContractHandler) Get(c *gin.Context) {
	h.withContract(c, h.contracts.Get)
}

// Complete обрабатывает PATCH /contracts/:id/complete.
func (h *ContractHandler) Complete(c *gin.Context) {
	h.withContract(c, h.contracts.Complete)
}

// Cancel обрабатывает PATCH /contracts/:id/cancel.
func (h *ContractHandler) Cancel(c *gin.Context) {
	h.withContract(c, h.contracts.Cancel)
}

func (h *ContractHandler) withContract(
	c *gin.Context,
	op func(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Contract, error),
) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	contract, err := op(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, contract)
}
