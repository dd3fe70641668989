package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

// ErrCertificationNotFound возвращается, когда сертификат не найден.
var ErrCertificationNotFound = errors.New("certification not found")

const certificationColumns = `id, user_id, name, issuer, issue_date, expiry_date, credential_id, credential_url,
	document_path, created_at, updated_at`

// CertificationRepository отвечает за сертификаты пользователей.
type CertificationRepository struct {
	db *sqlx.DB
}

// NewCertificationRepository создаёт экземпляр репозитория.
func NewCertificationRepository(db *sqlx.DB) *CertificationRepository {
	return &CertificationRepository{db: db}
}

func (r *CertificationRepository) Create(ctx context.Context, c *models.Certification) error {
	query := `
		INSERT INTO certifications (id, user_id, name, issuer, issue_date, expiry_date, credential_id, credential_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		c.ID, c.UserID, c.Name, c.Issuer, c.IssueDate, c.ExpiryDate, c.CredentialID, c.CredentialURL,
	).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("certification repository: create %w", err)
	}

	return nil
}

// GetByID возвращает сертификат, принадлежащий пользователю.
func (r *CertificationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Certification, error) {
	var c models.Certification
	query := `SELECT ` + certificationColumns + ` FROM certifications WHERE id = $1 AND user_id = $2`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &c, query, id, userID); err != nil {
		if isNoRows(err) {
			return nil, ErrCertificationNotFound
		}
		return nil, fmt.Errorf("certification repository: get by id %w", err)
	}
	return &c, nil
}

func (r *CertificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Certification, error) {
	certs := []models.Certification{}
	query := `SELECT ` + certificationColumns + ` FROM certifications WHERE user_id = $1 ORDER BY issue_date DESC`
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &certs, query, userID); err != nil {
		return nil, fmt.Errorf("certification repository: list %w", err)
	}
	return certs, nil
}

// Update перезаписывает редактируемые поля сертификата.
func (r *CertificationRepository) Update(ctx context.Context, c *models.Certification) error {
	query := `
		UPDATE certifications
		SET name = $3, issuer = $4, issue_date = $5, expiry_date = $6,
			credential_id = $7, credential_url = $8, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`

	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		c.ID, c.UserID, c.Name, c.Issuer, c.IssueDate, c.ExpiryDate, c.CredentialID, c.CredentialURL,
	).Scan(&c.UpdatedAt); err != nil {
		if isNoRows(err) {
			return ErrCertificationNotFound
		}
		return fmt.Errorf("certification repository: update %w", err)
	}
	return nil
}

// SetDocument сохраняет путь к загруженному документу.
func (r *CertificationRepository) SetDocument(ctx context.Context, id, userID uuid.UUID, path string) error {
	result, err := common.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE certifications SET document_path = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		id, userID, path)
	if err != nil {
		return fmt.Errorf("certification repository: set document %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCertificationNotFound
	}
	return nil
}

func (r *CertificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := common.Executor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM certifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("certification repository: delete %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCertificationNotFound
	}
	return nil
}
