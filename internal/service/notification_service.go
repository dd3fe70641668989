package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/goroutine"
	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	DeleteAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Publisher доставляет события подключённым клиентам.
type Publisher interface {
	Publish(userID uuid.UUID, event string, data any) error
}

// Notifier то, что нужно менеджерам жизненного цикла от сервиса уведомлений.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, message string) (*models.Notification, error)
	Deliver(notifications ...*models.Notification)
}

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo      NotificationRepository
	publisher Publisher
	recovery  *goroutine.RecoveryHandler
}

var notificationErrors = map[error]*apperror.AppError{
	repository.ErrNotificationNotFound: apperror.ErrNotificationNotFound,
}

// NewNotificationService создаёт новый сервис уведомлений. publisher может быть nil.
func NewNotificationService(repo NotificationRepository, publisher Publisher) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		recovery:  goroutine.NewRecoveryHandler(logger.Log),
	}
}

// Notify создаёт непрочитанное уведомление. Если в ctx открыта транзакция,
// запись станет видна только после её фиксации.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, title, message string) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Read:    false,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, storeError(err, nil)
	}
	return n, nil
}

// Deliver отправляет уже сохранённые уведомления по WebSocket в фоне.
// Вызывать после фиксации транзакции. Ошибки доставки только логируются.
func (s *NotificationService) Deliver(notifications ...*models.Notification) {
	if s.publisher == nil {
		return
	}
	for _, n := range notifications {
		if n == nil {
			continue
		}
		n := n
		s.recovery.SafeGo(func() {
			if err := s.publisher.Publish(n.UserID, "notification", n); err != nil {
				logger.Log.WithError(err).WithField("notification_id", n.ID).Warn("notification service: доставка не удалась")
			}
		})
	}
}

// Wait дожидается фоновых доставок.
func (s *NotificationService) Wait() {
	s.recovery.Wait()
}

// List возвращает уведомления пользователя, новые первыми.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// UnreadCount возвращает количество непрочитанных уведомлений.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	return count, storeError(err, nil)
}

// MarkRead отмечает уведомление прочитанным. Чужое уведомление неотличимо от отсутствующего.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return nil, storeError(err, notificationErrors)
	}
	return n, nil
}

// MarkAllRead отмечает все уведомления пользователя.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	return n, storeError(err, nil)
}

// Delete удаляет уведомление пользователя.
func (s *NotificationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return storeError(s.repo.Delete(ctx, id, userID), notificationErrors)
}

// DeleteAllRead удаляет прочитанные уведомления пользователя.
func (s *NotificationService) DeleteAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.DeleteAllRead(ctx, userID)
	return n, storeError(err, nil)
}
