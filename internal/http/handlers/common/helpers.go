package common

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/http/middleware"
	"github.com/ignatzorin/marketplace-api/internal/http/response"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/service"
)

// IdempotencyHeader заголовок с ключом идемпотентности.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 200

var (
	// ErrUserNotFound is returned when user is not found in context
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID is returned when UUID parsing fails
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID extracts user ID from Gin context
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// CurrentActor собирает service.Actor из контекста. При ошибке ответ уже отправлен.
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	userID, err := CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return service.Actor{}, false
	}
	return service.Actor{ID: userID, Role: c.GetString(middleware.ContextRoleKey)}, true
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// UUIDParam как ParseUUIDParam, но сам отвечает 400.
func UUIDParam(c *gin.Context, paramName string) (uuid.UUID, bool) {
	id, err := ParseUUIDParam(c, paramName)
	if err != nil {
		response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON разбирает тело запроса. Ошибка разбора отдаётся как VALIDATION_ERROR.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if IsBodyTooLarge(err) {
			response.Error(c, apperror.ErrPayloadTooLarge)
			return false
		}
		response.Validation(c, "ошибка валидации запроса: "+err.Error())
		return false
	}
	return true
}

// IsBodyTooLarge сообщает, что чтение тела упёрлось в BodyLimit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// IdempotencyKey читает заголовок Idempotency-Key. Пустая строка означает «без ключа».
func IdempotencyKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if len(key) > maxIdempotencyKeyLength {
		response.Validation(c, fmt.Sprintf("%s не может быть длиннее %d символов", IdempotencyHeader, maxIdempotencyKeyLength))
		return "", false
	}
	return key, true
}

// IntQuery читает целый параметр запроса. Отсутствующий параметр даёт fallback,
// нечисловое значение отвечает 400.
func IntQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.Validation(c, fmt.Sprintf("%s должен быть целым числом", key))
		return 0, false
	}
	return v, true
}

// FloatQuery читает необязательный числовой параметр, пробуя ключи по порядку.
func FloatQuery(c *gin.Context, keys ...string) (*float64, bool) {
	for _, key := range keys {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			response.Validation(c, fmt.Sprintf("%s должен быть числом", key))
			return nil, false
		}
		return &v, true
	}
	return nil, true
}

// ListQuery собирает значения из повторяющихся параметров и списков через запятую.
func ListQuery(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
