package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
)

// ErrorBody тело любого ответа с ошибкой.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// MessageBody тело ответов без данных.
type MessageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message отвечает {"success":true,"message":...}.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageBody{Success: true, Message: message})
}

// Error переводит ошибку в HTTP ответ. AppError отдаёт свой статус и код,
// всё остальное логируется и становится 500 без подробностей.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		c.AbortWithStatusJSON(appErr.HTTPStatus, ErrorBody{
			Success: false,
			Error:   appErr.Message,
			Code:    string(appErr.Code),
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, ErrorBody{
			Success: false,
			Error:   "превышено время обработки запроса",
		})
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Error("request failed")

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
		Success: false,
		Error:   "внутренняя ошибка сервера",
		Code:    string(apperror.ErrCodeInternal),
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeBadRequest, message))
}

func Validation(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeValidation, message))
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeUnauthorized, message))
}

func Forbidden(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeForbidden, message))
}

func NotFound(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeNotFound, message))
}

// TooManyRequests используется rate limiter'ом, у apperror нет отдельного кода.
func TooManyRequests(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{Success: false, Error: message})
}
