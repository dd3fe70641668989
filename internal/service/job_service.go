package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
	"github.com/ignatzorin/marketplace-api/internal/validation"
)

// Ограничения пагинации ленты заказов.
const (
	DefaultJobsLimit = 10
	MaxJobsLimit     = 100
)

// JobRepository описывает зависимости сервиса от хранилища заказов.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error)
	Update(ctx context.Context, id uuid.UUID, patch models.JobPatch) (*models.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Job, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Job, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Job, error)
}

// ProposalRepository описывает зависимости сервисов от хранилища откликов.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetWithJob(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Proposal, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error)
	Exists(ctx context.Context, jobID, freelancerID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Proposal, error)
}

// ContractRepository описывает зависимости сервисов от хранилища контрактов.
type ContractRepository interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Contract, error)
	HasActiveForJob(ctx context.Context, jobID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Contract, error)
}

var jobErrors = map[error]*apperror.AppError{
	repository.ErrJobNotFound:       apperror.ErrJobNotFound,
	repository.ErrProposalNotFound:  apperror.ErrProposalNotFound,
	repository.ErrDuplicateProposal: apperror.ErrDuplicateProposal,
	repository.ErrUserNotFound:      apperror.ErrUserNotFound,
}

// JobService управляет заказами и откликами на них.
type JobService struct {
	tx           Transactor
	jobs         JobRepository
	proposals    ProposalRepository
	contracts    ContractRepository
	users        UserRepository
	notifier     Notifier
	proposalCost int
}

// NewJobService создаёт сервис заказов. proposalCost списывается с фрилансера за каждый отклик.
func NewJobService(
	tx Transactor,
	jobs JobRepository,
	proposals ProposalRepository,
	contracts ContractRepository,
	users UserRepository,
	notifier Notifier,
	proposalCost int,
) *JobService {
	return &JobService{
		tx:           tx,
		jobs:         jobs,
		proposals:    proposals,
		contracts:    contracts,
		users:        users,
		notifier:     notifier,
		proposalCost: proposalCost,
	}
}

// ListJobsInput параметры ленты заказов после разбора запроса.
type ListJobsInput struct {
	Category  string
	Status    string
	Search    string
	BudgetMin *float64
	BudgetMax *float64
	Skills    []string
	Page      int
	Limit     int
}

// CreateJobInput поля нового заказа. Budget nil означает, что поле не передано.
type CreateJobInput struct {
	Title       string
	Description string
	Category    string
	Budget      *float64
	Skills      []string
	Deadline    *time.Time
	JobType     *string
	Experience  *string
	Duration    *string
	Location    *string
	Status      string
}

// ProposalInput поля отклика.
type ProposalInput struct {
	CoverLetter string
	Amount      *float64
	Duration    *string
}

// ListJobs возвращает страницу ленты заказов.
func (s *JobService) ListJobs(ctx context.Context, in ListJobsInput) (*models.JobPage, error) {
	if in.Page < 1 {
		return nil, apperror.Validation("page должен быть положительным целым числом")
	}
	if in.Limit < 1 || in.Limit > MaxJobsLimit {
		return nil, apperror.Validation("limit должен быть от 1 до %d", MaxJobsLimit)
	}
	if in.Page > math.MaxInt32/in.Limit {
		return nil, apperror.Validation("page слишком большой")
	}
	if in.Status != "" {
		if _, ok := models.ValidJobStatuses[in.Status]; !ok {
			return nil, apperror.Validation("неизвестный статус заказа: %s", in.Status)
		}
	}
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMin > *in.BudgetMax {
		return nil, apperror.Validation("минимальный бюджет больше максимального")
	}

	category := strings.TrimSpace(in.Category)
	if strings.EqualFold(category, "all") {
		category = ""
	}

	filter := models.JobFilter{
		Category:  category,
		Status:    in.Status,
		Search:    strings.TrimSpace(in.Search),
		BudgetMin: in.BudgetMin,
		BudgetMax: in.BudgetMax,
		Skills:    validation.NormalizeSkills(in.Skills),
		Limit:     in.Limit,
		Offset:    (in.Page - 1) * in.Limit,
	}

	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	return &models.JobPage{
		Jobs: jobs,
		Pagination: models.Pagination{
			Total:   total,
			Pages:   (total + in.Limit - 1) / in.Limit,
			Current: in.Page,
			Limit:   in.Limit,
		},
	}, nil
}

// GetJob возвращает заказ с карточкой клиента и всеми откликами.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, jobErrors)
	}

	proposals, err := s.proposals.ListByJob(ctx, id)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	job.Proposals = proposals

	return job, nil
}

// CreateJob публикует заказ от имени клиента.
func (s *JobService) CreateJob(ctx context.Context, actor Actor, in CreateJobInput) (*models.Job, error) {
	if actor.Role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeForbidden, "публиковать заказы могут только клиенты")
	}

	if err := validation.ValidateRequired("title", in.Title, validation.MaxJobTitleLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateRequired("description", in.Description, validation.MaxJobDescriptionLen); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateRequired("category", in.Category, validation.MaxCategoryLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if in.Budget == nil {
		return nil, apperror.Validation("budget обязателен")
	}
	if err := validation.ValidateBudget("budget", *in.Budget); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	skills := validation.NormalizeSkills(in.Skills)
	if err := validation.ValidateSkills(skills); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	status := in.Status
	if status == "" {
		status = models.JobStatusOpen
	} else if _, ok := models.ValidJobStatuses[status]; !ok {
		return nil, apperror.Validation("неизвестный статус заказа: %s", status)
	}

	job := &models.Job{
		ClientID:    actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Budget:      *in.Budget,
		Skills:      pq.StringArray(skills),
		Deadline:    in.Deadline,
		JobType:     in.JobType,
		Experience:  in.Experience,
		Duration:    in.Duration,
		Location:    in.Location,
		Status:      status,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, storeError(err, jobErrors)
	}

	return job, nil
}

// UpdateJob применяет патч из разрешённых полей. Статус здесь не меняется.
func (s *JobService) UpdateJob(ctx context.Context, actor Actor, id uuid.UUID, patch models.JobPatch) (*models.Job, error) {
	job, err := s.ownedJob(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := validateJobPatch(&patch); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return job, nil
	}

	updated, err := s.jobs.Update(ctx, id, patch)
	if err != nil {
		return nil, storeError(err, jobErrors)
	}
	return updated, nil
}

// DeleteJob удаляет заказ вместе с откликами.
func (s *JobService) DeleteJob(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.ownedJob(ctx, actor, id); err != nil {
		return err
	}
	return storeError(s.jobs.Delete(ctx, id), jobErrors)
}

// UpdateStatus выставляет статус заказа владельцем.
// COMPLETED ставит только завершение контракта, завершённый заказ больше не меняется.
// CANCELLED и OPEN недоступны при активном контракте, OPEN ещё и при принятом отклике:
// иначе по заказу можно принять второй отклик.
func (s *JobService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*models.Job, error) {
	if _, ok := models.ValidJobStatuses[status]; !ok {
		return nil, apperror.Validation("неизвестный статус заказа: %s", status)
	}

	var updated *models.Job
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Блокировка строки сериализует смену статуса с принятием отклика.
		job, err := s.jobs.GetForUpdate(ctx, id)
		if err != nil {
			return storeError(err, jobErrors)
		}
		if job.ClientID != actor.ID {
			return apperror.ErrForbidden
		}

		if job.Status != status {
			if err := s.checkStatusChange(ctx, job, status); err != nil {
				return err
			}
			updated, err = s.jobs.SetStatus(ctx, id, status)
			return storeError(err, jobErrors)
		}

		updated, err = s.jobs.GetByID(ctx, id)
		return storeError(err, jobErrors)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"job_id": id,
		"status": updated.Status,
	}).Info("job service: статус заказа изменён")

	return updated, nil
}

func (s *JobService) checkStatusChange(ctx context.Context, job *models.Job, status string) error {
	if job.Status == models.JobStatusCompleted {
		return apperror.ErrJobFinished
	}

	switch status {
	case models.JobStatusCompleted:
		return apperror.ErrJobCompleteManually
	case models.JobStatusCancelled, models.JobStatusOpen:
		active, err := s.contracts.HasActiveForJob(ctx, job.ID)
		if err != nil {
			return storeError(err, nil)
		}
		if active {
			return apperror.ErrActiveContract
		}
	}

	if status == models.JobStatusOpen {
		proposals, err := s.proposals.ListByJob(ctx, job.ID)
		if err != nil {
			return storeError(err, nil)
		}
		for _, p := range proposals {
			if p.Status == models.ProposalStatusAccepted {
				return apperror.ErrJobReopenAccepted
			}
		}
	}
	return nil
}

// HasActiveContract сообщает, есть ли по заказу активный контракт.
func (s *JobService) HasActiveContract(ctx context.Context, id uuid.UUID) (bool, error) {
	active, err := s.contracts.HasActiveForJob(ctx, id)
	return active, storeError(err, nil)
}

// CloseJob отменяет заказ, если по нему нет активного контракта.
func (s *JobService) CloseJob(ctx context.Context, actor Actor, id uuid.UUID) (*models.Job, error) {
	return s.UpdateStatus(ctx, actor, id, models.JobStatusCancelled)
}

// SubmitProposal создаёт отклик фрилансера на открытый заказ.
func (s *JobService) SubmitProposal(ctx context.Context, actor Actor, jobID uuid.UUID, in ProposalInput) (*models.Proposal, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, storeError(err, jobErrors)
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.ErrJobNotOpen
	}
	if actor.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться на заказы могут только фрилансеры")
	}

	exists, err := s.proposals.Exists(ctx, jobID, actor.ID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if exists {
		return nil, apperror.ErrDuplicateProposal
	}

	if err := validation.ValidateRequired("coverLetter", in.CoverLetter, validation.MaxCoverLetterLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if in.Amount == nil {
		return nil, apperror.Validation("amount обязателен")
	}
	if err := validation.ValidateBudget("amount", *in.Amount); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	proposal := &models.Proposal{
		JobID:        jobID,
		FreelancerID: actor.ID,
		CoverLetter:  strings.TrimSpace(in.CoverLetter),
		Amount:       *in.Amount,
		Duration:     in.Duration,
		Status:       models.ProposalStatusPending,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if s.proposalCost > 0 {
			if _, err := s.users.AdjustConnects(ctx, actor.ID, -s.proposalCost); err != nil {
				if errors.Is(err, common.ErrNoRowsChanged) {
					return apperror.ErrInsufficientConnects
				}
				return storeError(err, nil)
			}
		}
		return storeError(s.proposals.Create(ctx, proposal), jobErrors)
	})
	if err != nil {
		return nil, err
	}

	return proposal, nil
}

// AcceptProposal принимает отклик: отклик ACCEPTED, заказ IN_PROGRESS, новый контракт
// и уведомление фрилансеру фиксируются одной транзакцией.
func (s *JobService) AcceptProposal(ctx context.Context, actor Actor, jobID, proposalID uuid.UUID) (*models.Proposal, error) {
	job, proposal, err := s.decisionTargets(ctx, actor, jobID, proposalID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.ErrJobNotOpen
	}

	var (
		accepted     *models.Proposal
		notification *models.Notification
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		accepted, err = s.proposals.TransitionStatus(ctx, proposalID, models.ProposalStatusPending, models.ProposalStatusAccepted)
		if err != nil {
			if errors.Is(err, common.ErrNoRowsChanged) {
				return apperror.ErrProposalNotPending
			}
			return storeError(err, jobErrors)
		}

		if _, err := s.jobs.TransitionStatus(ctx, jobID, models.JobStatusOpen, models.JobStatusInProgress); err != nil {
			if errors.Is(err, common.ErrNoRowsChanged) {
				return apperror.ErrJobStateChanged
			}
			return storeError(err, jobErrors)
		}

		contract := &models.Contract{
			ProposalID:   proposal.ID,
			JobID:        job.ID,
			ClientID:     job.ClientID,
			FreelancerID: proposal.FreelancerID,
			Amount:       proposal.Amount,
			Status:       models.ContractStatusActive,
		}
		if err := s.contracts.Create(ctx, contract); err != nil {
			return storeError(err, nil)
		}

		notification, err = s.notifier.Notify(ctx, proposal.FreelancerID, "Proposal Accepted",
			fmt.Sprintf(`Your proposal for "%s" has been accepted by %s`, job.Title, clientName(job)))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Deliver(notification)
	logger.Log.WithFields(map[string]interface{}{
		"job_id":      jobID,
		"proposal_id": proposalID,
	}).Info("job service: отклик принят")

	s.attachFreelancer(ctx, accepted)
	return accepted, nil
}

// RejectProposal отклоняет отклик. Статус заказа не меняется.
func (s *JobService) RejectProposal(ctx context.Context, actor Actor, jobID, proposalID uuid.UUID) (*models.Proposal, error) {
	job, proposal, err := s.decisionTargets(ctx, actor, jobID, proposalID)
	if err != nil {
		return nil, err
	}

	var (
		rejected     *models.Proposal
		notification *models.Notification
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		rejected, err = s.proposals.TransitionStatus(ctx, proposalID, models.ProposalStatusPending, models.ProposalStatusRejected)
		if err != nil {
			if errors.Is(err, common.ErrNoRowsChanged) {
				return apperror.ErrProposalNotPending
			}
			return storeError(err, jobErrors)
		}

		notification, err = s.notifier.Notify(ctx, proposal.FreelancerID, "Proposal Rejected",
			fmt.Sprintf(`Your proposal for "%s" has been rejected by %s`, job.Title, clientName(job)))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Deliver(notification)
	s.attachFreelancer(ctx, rejected)
	return rejected, nil
}

// ListByFreelancer возвращает заказы с откликами фрилансера.
// Доступно самому фрилансеру и администратору.
func (s *JobService) ListByFreelancer(ctx context.Context, actor Actor, freelancerID uuid.UUID) ([]models.Job, error) {
	if actor.ID != freelancerID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	jobs, err := s.jobs.ListByFreelancer(ctx, freelancerID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	proposals, err := s.proposals.ListByFreelancer(ctx, freelancerID)
	if err != nil {
		return nil, storeError(err, nil)
	}

	byJob := make(map[uuid.UUID][]models.Proposal, len(jobs))
	for _, p := range proposals {
		byJob[p.JobID] = append(byJob[p.JobID], p)
	}
	for i := range jobs {
		jobs[i].Proposals = byJob[jobs[i].ID]
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	return jobs, nil
}

// ownedJob загружает заказ и проверяет, что actor его владелец.
func (s *JobService) ownedJob(ctx context.Context, actor Actor, id uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, jobErrors)
	}
	if job.ClientID != actor.ID {
		return nil, apperror.ErrForbidden
	}
	return job, nil
}

// decisionTargets общие проверки принятия и отклонения отклика.
func (s *JobService) decisionTargets(ctx context.Context, actor Actor, jobID, proposalID uuid.UUID) (*models.Job, *models.Proposal, error) {
	job, err := s.ownedJob(ctx, actor, jobID)
	if err != nil {
		return nil, nil, err
	}

	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, nil, storeError(err, jobErrors)
	}
	if proposal.JobID != jobID {
		return nil, nil, apperror.ErrProposalJobMismatch
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, nil, apperror.ErrProposalNotPending
	}

	return job, proposal, nil
}

// attachFreelancer добавляет карточку фрилансера к ответу. Транзакция уже зафиксирована,
// поэтому ошибка чтения только логируется.
func (s *JobService) attachFreelancer(ctx context.Context, proposal *models.Proposal) {
	user, err := s.users.GetByID(ctx, proposal.FreelancerID)
	if err != nil {
		logger.Log.WithError(err).WithField("proposal_id", proposal.ID).Warn("job service: не удалось загрузить фрилансера")
		return
	}
	proposal.Freelancer = user.Summary()
}

func clientName(job *models.Job) string {
	if job.Client != nil && job.Client.Name != "" {
		return job.Client.Name
	}
	return "the client"
}

func validateJobPatch(patch *models.JobPatch) error {
	if patch.Title != nil {
		if err := validation.ValidateRequired("title", *patch.Title, validation.MaxJobTitleLength); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	if patch.Description != nil {
		if err := validation.ValidateRequired("description", *patch.Description, validation.MaxJobDescriptionLen); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	if patch.Category != nil {
		if err := validation.ValidateRequired("category", *patch.Category, validation.MaxCategoryLength); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	if patch.Budget != nil {
		if err := validation.ValidateBudget("budget", *patch.Budget); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	if patch.Skills != nil {
		patch.Skills = validation.NormalizeSkills(patch.Skills)
		if err := validation.ValidateSkills(patch.Skills); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	return nil
}
