package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/storage"
	"github.com/ignatzorin/marketplace-api/internal/validation"
)

// CertificationRepository описывает зависимости сервиса от хранилища сертификатов.
type CertificationRepository interface {
	Create(ctx context.Context, c *models.Certification) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Certification, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Certification, error)
	Update(ctx context.Context, c *models.Certification) error
	SetDocument(ctx context.Context, id, userID uuid.UUID, path string) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// DocumentStorage хранилище файлов документов.
type DocumentStorage interface {
	Save(ctx context.Context, userID uuid.UUID, r io.Reader) (*storage.StoredFile, error)
	Delete(ctx context.Context, relativePath string) error
}

var certificationErrors = map[error]*apperror.AppError{
	repository.ErrCertificationNotFound: apperror.ErrCertificationNotFound,
}

// CertificationInput поля сертификата.
type CertificationInput struct {
	Name          string
	Issuer        string
	IssueDate     *time.Time
	ExpiryDate    *time.Time
	CredentialID  *string
	CredentialURL *string
}

// CertificationService управляет сертификатами пользователя.
type CertificationService struct {
	repo      CertificationRepository
	documents DocumentStorage
}

// NewCertificationService создаёт сервис сертификатов.
func NewCertificationService(repo CertificationRepository, documents DocumentStorage) *CertificationService {
	return &CertificationService{repo: repo, documents: documents}
}

func (s *CertificationService) List(ctx context.Context, userID uuid.UUID) ([]models.Certification, error) {
	certs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if certs == nil {
		certs = []models.Certification{}
	}
	return certs, nil
}

func (s *CertificationService) Get(ctx context.Context, id, userID uuid.UUID) (*models.Certification, error) {
	cert, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, storeError(err, certificationErrors)
	}
	return cert, nil
}

// Create добавляет сертификат в профиль пользователя.
func (s *CertificationService) Create(ctx context.Context, userID uuid.UUID, in CertificationInput) (*models.Certification, error) {
	if err := validateCertification(in); err != nil {
		return nil, err
	}

	cert := &models.Certification{UserID: userID}
	applyCertification(cert, in)
	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, storeError(err, nil)
	}
	return cert, nil
}

// Update перезаписывает поля сертификата целиком.
func (s *CertificationService) Update(ctx context.Context, id, userID uuid.UUID, in CertificationInput) (*models.Certification, error) {
	if err := validateCertification(in); err != nil {
		return nil, err
	}

	cert, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, storeError(err, certificationErrors)
	}
	applyCertification(cert, in)
	if err := s.repo.Update(ctx, cert); err != nil {
		return nil, storeError(err, certificationErrors)
	}
	return cert, nil
}

// Delete удаляет сертификат и его документ.
func (s *CertificationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	cert, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return storeError(err, certificationErrors)
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return storeError(err, certificationErrors)
	}
	if cert.DocumentPath != nil {
		s.removeDocument(ctx, *cert.DocumentPath)
	}
	return nil
}

// AttachDocument сохраняет подтверждающий документ. Предыдущий документ удаляется.
func (s *CertificationService) AttachDocument(ctx context.Context, id, userID uuid.UUID, r io.Reader) (*models.Certification, error) {
	cert, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, storeError(err, certificationErrors)
	}

	stored, err := s.documents.Save(ctx, userID, r)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFile), errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge):
			return nil, apperror.Validation("%s", err.Error())
		default:
			return nil, apperror.Internal(err)
		}
	}

	if err := s.repo.SetDocument(ctx, id, userID, stored.Path); err != nil {
		s.removeDocument(ctx, stored.Path)
		return nil, storeError(err, certificationErrors)
	}

	if cert.DocumentPath != nil {
		s.removeDocument(ctx, *cert.DocumentPath)
	}
	cert.DocumentPath = &stored.Path
	return cert, nil
}

func (s *CertificationService) removeDocument(ctx context.Context, path string) {
	if err := s.documents.Delete(ctx, path); err != nil {
		logger.Log.WithError(err).WithField("path", path).Warn("certification service: не удалось удалить документ")
	}
}

func validateCertification(in CertificationInput) error {
	if err := validation.ValidateRequired("name", in.Name, validation.MaxCertificationField); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateRequired("issuer", in.Issuer, validation.MaxCertificationField); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	if in.IssueDate == nil {
		return apperror.Validation("issueDate обязателен")
	}
	if in.ExpiryDate != nil && in.ExpiryDate.Before(*in.IssueDate) {
		return apperror.Validation("expiryDate не может быть раньше issueDate")
	}
	if in.CredentialID != nil {
		if err := validation.ValidateLength("credentialId", *in.CredentialID, 0, validation.MaxCertificationField); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	if err := validation.ValidateURL("credentialUrl", in.CredentialURL); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	return nil
}

func applyCertification(cert *models.Certification, in CertificationInput) {
	cert.Name = strings.TrimSpace(in.Name)
	cert.Issuer = strings.TrimSpace(in.Issuer)
	cert.IssueDate = *in.IssueDate
	cert.ExpiryDate = in.ExpiryDate
	cert.CredentialID = in.CredentialID
	cert.CredentialURL = in.CredentialURL
}
