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

// ErrConnectTransactionNotFound возвращается, когда покупка не найдена.
var ErrConnectTransactionNotFound = errors.New("connect transaction not found")

const connectTxColumns = `id, user_id, package_id, amount, price, currency, status, transaction_id, created_at, completed_at`

const connectGrantColumns = `id, user_id, transaction_id, amount, source, expires_at, created_at`

// ConnectRepository отвечает за покупки и начисления connects.
type ConnectRepository struct {
	db *sqlx.DB
}

// NewConnectRepository создаёт экземпляр репозитория.
func NewConnectRepository(db *sqlx.DB) *ConnectRepository {
	return &ConnectRepository{db: db}
}

// CreateTransaction сохраняет покупку в статусе из tx.Status.
func (r *ConnectRepository) CreateTransaction(ctx context.Context, tx *models.ConnectTransaction) error {
	query := `
		INSERT INTO connect_transactions (id, user_id, package_id, amount, price, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		tx.ID, tx.UserID, tx.PackageID, tx.Amount, tx.Price, tx.Currency, tx.Status,
	).Scan(&tx.CreatedAt); err != nil {
		return fmt.Errorf("connect repository: create transaction %w", err)
	}

	return nil
}

// CompleteTransaction переводит покупку из PENDING в COMPLETED с внешним номером.
func (r *ConnectRepository) CompleteTransaction(ctx context.Context, id uuid.UUID, reference string) (*models.ConnectTransaction, error) {
	query := `
		UPDATE connect_transactions
		SET status = 'COMPLETED', transaction_id = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + connectTxColumns

	var tx models.ConnectTransaction
	if err := common.Executor(ctx, r.db).GetContext(ctx, &tx, query, id, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoRowsChanged
		}
		return nil, fmt.Errorf("connect repository: complete transaction %w", err)
	}
	return &tx, nil
}

// GetTransaction возвращает покупку по идентификатору.
func (r *ConnectRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.ConnectTransaction, error) {
	var tx models.ConnectTransaction
	query := `SELECT ` + connectTxColumns + ` FROM connect_transactions WHERE id = $1`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &tx, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectTransactionNotFound
		}
		return nil, fmt.Errorf("connect repository: get transaction %w", err)
	}
	return &tx, nil
}

// ListTransactions возвращает историю покупок пользователя.
func (r *ConnectRepository) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.ConnectTransaction, error) {
	query := `SELECT ` + connectTxColumns + ` FROM connect_transactions WHERE user_id = $1 ORDER BY created_at DESC`

	var txs []models.ConnectTransaction
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &txs, query, userID); err != nil {
		return nil, fmt.Errorf("connect repository: list transactions %w", err)
	}
	return txs, nil
}

// CreateGrant сохраняет начисление connects.
func (r *ConnectRepository) CreateGrant(ctx context.Context, grant *models.ConnectGrant) error {
	query := `
		INSERT INTO connects (id, user_id, transaction_id, amount, source, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		grant.ID, grant.UserID, grant.TransactionID, grant.Amount, grant.Source, grant.ExpiresAt,
	).Scan(&grant.CreatedAt); err != nil {
		return fmt.Errorf("connect repository: create grant %w", err)
	}

	return nil
}

// GetGrantByTransaction возвращает начисление по покупке.
func (r *ConnectRepository) GetGrantByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ConnectGrant, error) {
	var grant models.ConnectGrant
	query := `SELECT ` + connectGrantColumns + ` FROM connects WHERE transaction_id = $1`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &grant, query, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectTransactionNotFound
		}
		return nil, fmt.Errorf("connect repository: get grant %w", err)
	}
	return &grant, nil
}
