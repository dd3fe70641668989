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

// ConnectUseCases операции с connects.
type ConnectUseCases interface {
	Packages() []models.ConnectPackage
	Purchase(ctx context.Context, actor service.Actor, packageID int, idempotencyKey string) (*models.ConnectPurchase, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.ConnectTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

// ConnectHandler обслуживает /connect-purchase.
type ConnectHandler struct {
	connects ConnectUseCases
}

// NewConnectHandler создаёт хэндлер покупки connects.
func NewConnectHandler(connects ConnectUseCases) *ConnectHandler {
	return &ConnectHandler{connects: connects}
}

// Packages обрабатывает GET /connect-purchase/packages. Доступен без авторизации.
func (h *ConnectHandler) Packages(c *gin.Context) {
	response.OK(c, h.connects.Packages())
}

// Purchase обрабатывает POST /connect-purchase/purchase.
func (h *ConnectHandler) Purchase(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	key, ok := common.IdempotencyKey(c)
	if !ok {
		return
	}

	var req dto.PurchaseRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if req.PackageID == nil {
		response.Validation(c, "packageId обязателен")
		return
	}

	purchase, err := h.connects.Purchase(c.Request.Context(), actor, *req.PackageID, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPurchaseResponse(purchase))
}

// History обрабатывает GET /connect-purchase/history.
func (h *ConnectHandler) History(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	history, err := h.connects.History(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, history)
}

// Balance обрабатывает GET /connect-purchase/balance.
func (h *ConnectHandler) Balance(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	balance, err := h.connects.Balance(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Connects: balance})
}
