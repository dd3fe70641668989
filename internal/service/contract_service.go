package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

var contractErrors = map[error]*apperror.AppError{
	repository.ErrContractNotFound: apperror.ErrContractNotFound,
	repository.ErrJobNotFound:      apperror.ErrJobNotFound,
}

// ContractService управляет контрактами, возникшими из принятых откликов.
type ContractService struct {
	tx        Transactor
	contracts ContractRepository
	jobs      JobRepository
	notifier  Notifier
}

// NewContractService создаёт сервис контрактов.
func NewContractService(tx Transactor, contracts ContractRepository, jobs JobRepository, notifier Notifier) *ContractService {
	return &ContractService{
		tx:        tx,
		contracts: contracts,
		jobs:      jobs,
		notifier:  notifier,
	}
}

// List возвращает контракты, где пользователь одна из сторон.
func (s *ContractService) List(ctx context.Context, userID uuid.UUID) ([]models.Contract, error) {
	contracts, err := s.contracts.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if contracts == nil {
		contracts = []models.Contract{}
	}
	return contracts, nil
}

// Get возвращает контракт участнику.
func (s *ContractService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, contractErrors)
	}
	if !contract.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

// Complete завершает контракт и заказ. Доступно только клиенту.
func (s *ContractService) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, contractErrors)
	}
	if contract.ClientID != actor.ID {
		return nil, apperror.ErrForbidden
	}

	var (
		completed    *models.Contract
		notification *models.Notification
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		completed, err = s.contracts.TransitionStatus(ctx, id, models.ContractStatusActive, models.ContractStatusCompleted)
		if err != nil {
			if errors.Is(err, common.ErrNoRowsChanged) {
				return apperror.ErrContractNotActive
			}
			return storeError(err, contractErrors)
		}

		job, err := s.jobs.TransitionStatus(ctx, contract.JobID, models.JobStatusInProgress, models.JobStatusCompleted)
		if err != nil {
			if errors.Is(err, common.ErrNoRowsChanged) {
				return apperror.ErrJobStateChanged
			}
			return storeError(err, contractErrors)
		}

		notification, err = s.notifier.Notify(ctx, contract.FreelancerID, "Contract Completed",
			fmt.Sprintf(`The contract for "%s" has been marked as completed`, job.Title))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Deliver(notification)
	return completed, nil
}

// Cancel отменяет активный контракт. Доступно обеим сторонам, вторая сторона получает уведомление.
// Заказ остаётся IN_PROGRESS, клиент закрывает его отдельно.
func (s *ContractService) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, contractErrors)
	}
	if !contract.IsParticipant(actor.ID) {
		return nil, apperror.ErrForbidden
	}

	var (
		cancelled    *models.Contract
		notification *models.Notification
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.contracts.TransitionStatus(ctx, id, models.ContractStatusActive, models.ContractStatusCancelled)
		if err != nil {
			if errors.Is(err, common.ErrNoRowsChanged) {
				return apperror.ErrContractNotActive
			}
			return storeError(err, contractErrors)
		}

		notification, err = s.notifier.Notify(ctx, contract.Counterparty(actor.ID), "Contract Cancelled",
			"A contract you are part of has been cancelled")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Deliver(notification)
	return cancelled, nil
}
