package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation создаёт ошибку валидации с форматированным сообщением.
func Validation(format string, args ...any) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// Internal оборачивает неожиданную ошибку хранилища.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidState:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или пустую строку для не-AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsConflict истинно и для нарушенного предусловия, и для проигранной гонки.
func IsConflict(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeInvalidState || code == ErrCodeConflict
}

var (
	ErrJobNotFound           = New(ErrCodeNotFound, "заказ не найден")
	ErrProposalNotFound      = New(ErrCodeNotFound, "предложение не найдено")
	ErrContractNotFound      = New(ErrCodeNotFound, "контракт не найден")
	ErrPaymentNotFound       = New(ErrCodeNotFound, "платёж не найден")
	ErrNotificationNotFound  = New(ErrCodeNotFound, "уведомление не найдено")
	ErrCertificationNotFound = New(ErrCodeNotFound, "сертификат не найден")
	ErrUserNotFound          = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized          = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden             = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials    = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrPayloadTooLarge       = New(ErrCodeTooLarge, "тело запроса слишком большое")

	ErrJobNotOpen           = New(ErrCodeInvalidState, "заказ больше не принимает предложения")
	ErrDuplicateProposal    = New(ErrCodeInvalidState, "вы уже отправили предложение на этот заказ")
	ErrProposalJobMismatch  = New(ErrCodeInvalidState, "предложение не относится к этому заказу")
	ErrActiveContract       = New(ErrCodeInvalidState, "нельзя закрыть заказ с активным контрактом")
	ErrJobReopenAccepted    = New(ErrCodeInvalidState, "нельзя вернуть в OPEN заказ с принятым предложением")
	ErrJobCompleteManually  = New(ErrCodeInvalidState, "заказ завершается только через завершение контракта")
	ErrJobFinished          = New(ErrCodeInvalidState, "заказ уже завершён")
	ErrInsufficientConnects = New(ErrCodeInvalidState, "недостаточно connects")
	ErrProposalNotPending   = New(ErrCodeConflict, "предложение уже обработано")
	ErrJobStateChanged      = New(ErrCodeConflict, "статус заказа изменился, повторите попытку")
	ErrPaymentSettled       = New(ErrCodeConflict, "платёж уже завершён")
	ErrContractNotActive    = New(ErrCodeConflict, "контракт не активен")
	ErrRequestInFlight      = New(ErrCodeConflict, "запрос с этим ключом идемпотентности ещё выполняется")
)
