package dto

import (
	"time"

	"github.com/ignatzorin/marketplace-api/internal/models"
)

// HealthResponse ответ GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ActiveContractResponse ответ GET /jobs/:id/contract.
type ActiveContractResponse struct {
	HasActiveContract bool `json:"hasActiveContract"`
}

// UnreadCountResponse ответ GET /notifications/unread/count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// BalanceResponse ответ GET /connect-purchase/balance.
type BalanceResponse struct {
	Connects int `json:"connects"`
}

// PurchaseResponse ответ покупки пакета connects.
type PurchaseResponse struct {
	Success     bool                      `json:"success"`
	Message     string                    `json:"message"`
	Transaction models.ConnectTransaction `json:"transaction"`
	Connects    models.ConnectGrant       `json:"connects"`
	Balance     int                       `json:"balance"`
}

// NewPurchaseResponse оборачивает результат покупки.
func NewPurchaseResponse(p *models.ConnectPurchase) PurchaseResponse {
	return PurchaseResponse{
		Success:     true,
		Message:     "Connects purchased successfully",
		Transaction: p.Transaction,
		Connects:    p.Connects,
		Balance:     p.Balance,
	}
}
