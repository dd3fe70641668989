package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/dto"
	"github.com/ignatzorin/marketplace-api/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-api/internal/http/response"
	"github.com/ignatzorin/marketplace-api/internal/models"
)

// NotificationUseCases операции с уведомлениями текущего пользователя.
type NotificationUseCases interface {
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	DeleteAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// NotificationHandler обслуживает маршруты уведомлений.
type NotificationHandler struct {
	notifications NotificationUseCases
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications NotificationUseCases) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List обрабатывает GET /notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	limit, ok := common.IntQuery(c, "limit", 20)
	if !ok {
		return
	}
	offset, ok := common.IntQuery(c, "offset", 0)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))

	items, err := h.notifications.List(c.Request.Context(), actor.ID, limit, offset, unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, items)
}

// UnreadCount обрабатывает GET /notifications/unread/count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.UnreadCountResponse{Count: count})
}

// MarkRead обрабатывает PUT /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifications.MarkRead(c.Request.Context(), id, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, n)
}

// MarkAllRead обрабатывает PUT /notifications/read/all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	if _, err := h.notifications.MarkAllRead(c.Request.Context(), actor.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "All notifications marked as read")
}

// Delete обрабатывает DELETE /notifications/:id.
func (h *NotificationHandler) Delete(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), id, actor.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Notification deleted successfully")
}

// DeleteAllRead обрабатывает DELETE /notifications/read/all.
func (h *NotificationHandler) DeleteAllRead(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	if _, err := h.notifications.DeleteAllRead(c.Request.Context(), actor.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "All read notifications deleted successfully")
}
