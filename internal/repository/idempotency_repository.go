package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

// IdempotencyRepository хранит ключи идемпотентности мутирующих операций.
// Ключ уникален в пределах (user_id, operation, key).
type IdempotencyRepository struct {
	db *sqlx.DB
}

// NewIdempotencyRepository создаёт экземпляр репозитория.
func NewIdempotencyRepository(db *sqlx.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Claim пытается занять ключ. Если ключ уже занят, возвращает claimed=false
// и идентификатор ресурса, созданного первым вызовом (nil, пока тот не завершён).
// Вызывать внутри транзакции операции, чтобы откат освобождал ключ.
func (r *IdempotencyRepository) Claim(ctx context.Context, userID uuid.UUID, operation, key string) (bool, *uuid.UUID, error) {
	exec := common.Executor(ctx, r.db)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO idempotency_keys (user_id, operation, key)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, operation, key) DO NOTHING
	`, userID, operation, key)
	if err != nil {
		return false, nil, fmt.Errorf("idempotency repository: claim %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("idempotency repository: claim rows affected %w", err)
	}
	if rowsAffected == 1 {
		return true, nil, nil
	}

	var resourceID uuid.NullUUID
	if err := exec.GetContext(ctx, &resourceID, `
		SELECT resource_id FROM idempotency_keys
		WHERE user_id = $1 AND operation = $2 AND key = $3
	`, userID, operation, key); err != nil {
		return false, nil, fmt.Errorf("idempotency repository: lookup %w", err)
	}

	if !resourceID.Valid {
		return false, nil, nil
	}
	return false, &resourceID.UUID, nil
}

// Complete привязывает к ключу созданный ресурс.
func (r *IdempotencyRepository) Complete(ctx context.Context, userID uuid.UUID, operation, key string, resourceID uuid.UUID) error {
	_, err := common.Executor(ctx, r.db).ExecContext(ctx, `
		UPDATE idempotency_keys SET resource_id = $4
		WHERE user_id = $1 AND operation = $2 AND key = $3
	`, userID, operation, key, resourceID)
	if err != nil {
		return fmt.Errorf("idempotency repository: complete %w", err)
	}
	return nil
}
