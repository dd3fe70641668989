package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectPackage позиция каталога connects.
type ConnectPackage struct {
	ID          int      `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Connects    int      `yaml:"connects" json:"connects"`
	Price       float64  `yaml:"price" json:"price"`
	Description string   `yaml:"description" json:"description"`
	Features    []string `yaml:"features" json:"features"`
}

// ConnectTransaction запись о покупке пакета connects.
type ConnectTransaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"userId"`
	PackageID     int        `db:"package_id" json:"packageId"`
	Amount        int        `db:"amount" json:"amount"`
	Price         float64    `db:"price" json:"price"`
	Currency      string     `db:"currency" json:"currency"`
	Status        string     `db:"status" json:"status"`
	TransactionID *string    `db:"transaction_id" json:"transactionId,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt   *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// ConnectGrant начисление connects с ограниченным сроком действия.
type ConnectGrant struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"userId"`
	TransactionID *uuid.UUID `db:"transaction_id" json:"transactionId,omitempty"`
	Amount        int        `db:"amount" json:"amount"`
	Source        string     `db:"source" json:"source"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// ConnectPurchase результат покупки пакета.
type ConnectPurchase struct {
	Transaction ConnectTransaction `json:"transaction"`
	Connects    ConnectGrant       `json:"connects"`
	Balance     int                `json:"balance"`
}
