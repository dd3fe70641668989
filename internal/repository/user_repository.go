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

// Ошибки репозитория пользователей.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const userColumns = `id, email, name, image, password_hash, role, connects, is_active, created_at, updated_at`

// UserRepository отвечает за работу с таблицей users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, image, password_hash, role, connects, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`

	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		user.Email, user.Name, user.Image, user.PasswordHash, user.Role, user.Connects,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := common.Executor(ctx, r.db).GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get %w", err)
	}
	return &user, nil
}

// GetConnects возвращает текущий баланс connects.
func (r *UserRepository) GetConnects(ctx context.Context, id uuid.UUID) (int, error) {
	var connects int
	if err := common.Executor(ctx, r.db).GetContext(ctx, &connects, `SELECT connects FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("user repository: get connects %w", err)
	}
	return connects, nil
}

// AdjustConnects меняет баланс на delta и возвращает новый баланс.
// Списание сверх остатка не выполняется и возвращает common.ErrNoRowsChanged.
func (r *UserRepository) AdjustConnects(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	query := `
		UPDATE users
		SET connects = connects + $2, updated_at = NOW()
		WHERE id = $1 AND connects + $2 >= 0
		RETURNING connects
	`

	var balance int
	if err := common.Executor(ctx, r.db).GetContext(ctx, &balance, query, id, delta); err != nil {
		// CHECK (connects >= 0) дублирует условие WHERE, его нарушение значит то же самое.
		if errors.Is(err, sql.ErrNoRows) || common.IsCheckViolation(err) {
			return 0, common.ErrNoRowsChanged
		}
		return 0, fmt.Errorf("user repository: adjust connects %w", err)
	}
	return balance, nil
}
