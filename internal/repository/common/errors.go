package common

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNoRowsChanged условный UPDATE не нашёл строку в ожидаемом состоянии.
var ErrNoRowsChanged = errors.New("no rows changed")

// IsUniqueViolation проверяет, что ошибка драйвера вызвана нарушением уникальности.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsCheckViolation проверяет нарушение CHECK-ограничения.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23514"
}
