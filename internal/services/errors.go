package services

import (
	"errors"
	"fmt"

	"github.com/sjperalta/autolease-api/internal/repository"
)

// Common service errors
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("record not found")
	ErrForbidden             = errors.New("forbidden")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidPassword       = errors.New("invalid password")
	ErrInvalidState          = errors.New("invalid state transition")
	ErrDuplicate             = errors.New("duplicate record")
	ErrAlreadyApplied        = errors.New("payment already recorded for this due date")
	ErrDueDateUnavailable    = errors.New("invalid or already-satisfied due date")
	ErrLoanClosed            = errors.New("loan is closed")
	ErrCaptureFailed         = errors.New("payment failed, balance unchanged")
	ErrPaymentsNotConfigured = errors.New("card payments are not configured")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound converts a missing-row error into ErrNotFound naming the entity
func notFound(err error, entity string) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	}
	return err
}

// duplicate lifts repository.ErrDuplicate into the service sentinel
func duplicate(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
