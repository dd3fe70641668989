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

// JobUseCases операции ленты заказов и откликов.
type JobUseCases interface {
	ListJobs(ctx context.Context, in service.ListJobsInput) (*models.JobPage, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	CreateJob(ctx context.Context, actor service.Actor, in service.CreateJobInput) (*models.Job, error)
	UpdateJob(ctx context.Context, actor service.Actor, id uuid.UUID, patch models.JobPatch) (*models.Job, error)
	DeleteJob(ctx context.Context, actor service.Actor, id uuid.UUID) error
	UpdateStatus(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*models.Job, error)
	HasActiveContract(ctx context.Context, id uuid.UUID) (bool, error)
	CloseJob(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Job, error)
	SubmitProposal(ctx context.Context, actor service.Actor, jobID uuid.UUID, in service.ProposalInput) (*models.Proposal, error)
	AcceptProposal(ctx context.Context, actor service.Actor, jobID, proposalID uuid.UUID) (*models.Proposal, error)
	RejectProposal(ctx context.Context, actor service.Actor, jobID, proposalID uuid.UUID) (*models.Proposal, error)
	ListByFreelancer(ctx context.Context, actor service.Actor, freelancerID uuid.UUID) ([]models.Job, error)
}

// JobHandler обслуживает /jobs.
type JobHandler struct {
	jobs JobUseCases
}

// NewJobHandler создаёт хэндлер заказов.
func NewJobHandler(jobs JobUseCases) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// List обрабатывает GET /jobs.
func (h *JobHandler) List(c *gin.Context) {
	page, ok := common.IntQuery(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := common.IntQuery(c, "limit", service.DefaultJobsLimit)
	if !ok {
		return
	}
	budgetMin, ok := common.FloatQuery(c, "budget[min]", "budget_min")
	if !ok {
		return
	}
	budgetMax, ok := common.FloatQuery(c, "budget[max]", "budget_max")
	if !ok {
		return
	}

	result, err := h.jobs.ListJobs(c.Request.Context(), service.ListJobsInput{
		Category:  c.Query("category"),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		BudgetMin: budgetMin,
		BudgetMax: budgetMax,
		Skills:    common.ListQuery(c, "skills"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Get обрабатывает GET /jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, job)
}

// Create обрабатывает POST /jobs.
func (h *JobHandler) Create(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if !common.BindJSON(c, &req) {
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), actor, service.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Budget:      req.Budget.Float(),
		Skills:      req.Skills,
		Deadline:    req.Deadline.Ptr(),
		JobType:     req.JobType,
		Experience:  req.Experience,
		Duration:    req.Duration,
		Location:    req.Location,
		Status:      req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, job)
}

// Update обрабатывает PUT /jobs/:id.
func (h *JobHandler) Update(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if !common.BindJSON(c, &req) {
		return
	}

	job, err := h.jobs.UpdateJob(c.Request.Context(), actor, id, req.Patch())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, job)
}

// Delete обрабатывает DELETE /jobs/:id.
func (h *JobHandler) Delete(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.jobs.DeleteJob(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Job deleted successfully")
}

// UpdateStatus обрабатывает PATCH /jobs/:id/status.
func (h *JobHandler) UpdateStatus(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.JobStatusRequest
	if !common.BindJSON(c, &req) {
		return
	}

	job, err := h.jobs.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, job)
}

// ActiveContract обрабатывает GET /jobs/:id/contract.
func (h *JobHandler) ActiveContract(c *gin.Context) {
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	active, err := h.jobs.HasActiveContract(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ActiveContractResponse{HasActiveContract: active})
}

// Close обрабатывает PATCH /jobs/:id/close.
func (h *JobHandler) Close(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.CloseJob(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, job)
}

// SubmitProposal обрабатывает POST /jobs/:id/proposals.
func (h *JobHandler) SubmitProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	jobID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ProposalRequest
	if !common.BindJSON(c, &req) {
		return
	}

	proposal, err := h.jobs.SubmitProposal(c.Request.Context(), actor, jobID, service.ProposalInput{
		CoverLetter: req.CoverLetter,
		Amount:      req.Amount.Float(),
		Duration:    req.Duration,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, proposal)
}

// AcceptProposal обрабатывает PUT /jobs/:id/proposals/:proposalId/accept.
func (h *JobHandler) AcceptProposal(c *gin.Context) {
	h.decide(c, h.jobs.AcceptProposal)
}

// RejectProposal обрабатывает PUT /jobs/:id/proposals/:proposalId/reject.
func (h *JobHandler) RejectProposal(c *gin.Context) {
	h.decide(c, h.jobs.RejectProposal)
}

func (h *JobHandler) decide(
	c *gin.Context,
	decision func(ctx context.Context, actor service.Actor, jobID, proposalID uuid.UUID) (*models.Proposal, error),
) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	jobID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	proposalID, ok := common.UUIDParam(c, "proposalId")
	if !ok {
		return
	}

	proposal, err := decision(c.Request.Context(), actor, jobID, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, proposal)
}

// ListByFreelancer обрабатывает GET /jobs/freelancer/:freelancerId.
func (h *JobHandler) ListByFreelancer(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	freelancerID, ok := common.UUIDParam(c, "freelancerId")
	if !ok {
		return
	}

	jobs, err := h.jobs.ListByFreelancer(c.Request.Context(), actor, freelancerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, jobs)
}
