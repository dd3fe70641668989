package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/dto"
	"github.com/ignatzorin/marketplace-api/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-api/internal/http/response"
	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/service"
)

// CertificationUseCases операции с сертификатами пользователя.
type CertificationUseCases interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Certification, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*models.Certification, error)
	Create(ctx context.Context, userID uuid.UUID, in service.CertificationInput) (*models.Certification, error)
	Update(ctx context.Context, id, userID uuid.UUID, in service.CertificationInput) (*models.Certification, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	AttachDocument(ctx context.Context, id, userID uuid.UUID, r io.Reader) (*models.Certification, error)
}

// CertificationHandler обслуживает /certifications.
type CertificationHandler struct {
	certifications CertificationUseCases
}

// NewCertificationHandler создаёт хэндлер сертификатов.
func NewCertificationHandler(certifications CertificationUseCases) *CertificationHandler {
	return &CertificationHandler{certifications: certifications}
}

// List обрабатывает GET /certifications.
func (h *CertificationHandler) List(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	items, err := h.certifications.List(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, items)
}

// Get обрабатывает GET /certifications/:id.
func (h *CertificationHandler) Get(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	cert, err := h.certifications.Get(c.Request.Context(), id, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cert)
}

// Create обрабатывает POST /certifications.
func (h *CertificationHandler) Create(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req dto.CertificationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	cert, err := h.certifications.Create(c.Request.Context(), actor.ID, certificationInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, cert)
}

// Update обрабатывает PUT /certifications/:id.
func (h *CertificationHandler) Update(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CertificationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	cert, err := h.certifications.Update(c.Request.Context(), id, actor.ID, certificationInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cert)
}

// Delete обрабатывает DELETE /certifications/:id.
func (h *CertificationHandler) Delete(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.certifications.Delete(c.Request.Context(), id, actor.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Certification deleted successfully")
}

// UploadDocument обрабатывает POST /certifications/:id/document (multipart, поле file).
func (h *CertificationHandler) UploadDocument(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		if common.IsBodyTooLarge(err) {
			response.Error(c, apperror.ErrPayloadTooLarge)
			return
		}
		response.Validation(c, "файл не передан (поле file)")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logger.Log.WithError(cerr).Warn("certification handler: не удалось закрыть файл")
		}
	}()

	cert, err := h.certifications.AttachDocument(c.Request.Context(), id, actor.ID, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cert)
}

func certificationInput(req dto.CertificationRequest) service.CertificationInput {
	return service.CertificationInput{
		Name:          req.Name,
		Issuer:        req.Issuer,
		IssueDate:     req.IssueDate.Ptr(),
		ExpiryDate:    req.ExpiryDate.Ptr(),
		CredentialID:  req.CredentialID,
		CredentialURL: req.CredentialURL,
	}
}
