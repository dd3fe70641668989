package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
)

// Actor аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin сообщает, что пользователь администратор.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Transactor выполняет функцию в одной транзакции хранилища.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyStore хранит ключи идемпотентности.
type IdempotencyStore interface {
	Claim(ctx context.Context, userID uuid.UUID, operation, key string) (bool, *uuid.UUID, error)
	Complete(ctx context.Context, userID uuid.UUID, operation, key string, resourceID uuid.UUID) error
}

// Операции, защищённые ключом идемпотентности.
const (
	OpEscrow   = "escrow"
	OpRelease  = "release"
	OpRefund   = "refund"
	OpPurchase = "purchase"
)

// storeError переводит ошибку хранилища в AppError.
// Уже типизированные ошибки пропускаются как есть, неизвестные становятся 500.
func storeError(err error, known map[error]*apperror.AppError) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	for sentinel, mapped := range known {
		if errors.Is(err, sentinel) {
			return mapped
		}
	}
	return apperror.Internal(err)
}

// idempotent выполняет run не более одного раза на ключ. Должна вызываться внутри транзакции,
// тогда ключ фиксируется вместе с результатом. Повтор возвращает ресурс первого вызова через load.
func idempotent[T any](
	ctx context.Context,
	store IdempotencyStore,
	userID uuid.UUID,
	operation, key string,
	load func(ctx context.Context, id uuid.UUID) (T, error),
	run func(ctx context.Context) (T, uuid.UUID, error),
) (T, error) {
	var zero T

	if key == "" {
		result, _, err := run(ctx)
		return result, err
	}

	claimed, existing, err := store.Claim(ctx, userID, operation, key)
	if err != nil {
		return zero, apperror.Internal(err)
	}
	if !claimed {
		if existing == nil {
			return zero, apperror.ErrRequestInFlight
		}
		return load(ctx, *existing)
	}

	result, resourceID, err := run(ctx)
	if err != nil {
		return zero, err
	}
	if err := store.Complete(ctx, userID, operation, key, resourceID); err != nil {
		return zero, apperror.Internal(err)
	}
	return result, nil
}
