package errs

import (
	"errors"
	"fmt"
)

// Сентинелы для состояний, у которых нет полезного сообщения кроме самого факта.
var (
	ErrAuthRequired        = errors.New("authentication required")
	ErrSessionExpired      = errors.New("session expired")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrOperationInProgress = errors.New("operation already in progress")
)

// ValidationError — ошибка входных данных. Не ретраится.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NetworkError — транзиентная ошибка шлюза (транспорт, 5xx, failure-envelope).
// StatusCode равен 0, если до HTTP-статуса дело не дошло.
type NetworkError struct {
	StatusCode int
	Msg        string
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway error (http %d): %s", e.StatusCode, e.Msg)
	}
	return "gateway error: " + e.Msg
}

func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// LookupError — неуспешный поиск посылки; сообщение показывается пользователю.
type LookupError struct {
	Msg string
}

func (e *LookupError) Error() string { return e.Msg }

func IsLookup(err error) bool {
	var l *LookupError
	return errors.As(err, &l)
}

func IsSessionExpired(err error) bool { return errors.Is(err, ErrSessionExpired) }
func IsAuthRequired(err error) bool   { return errors.Is(err, ErrAuthRequired) }
func IsInvalidState(err error) bool   { return errors.Is(err, ErrInvalidState) }

func IsOperationInProgress(err error) bool { return errors.Is(err, ErrOperationInProgress) }
