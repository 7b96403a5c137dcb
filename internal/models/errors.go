package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidInstallmentCount = errors.New("invalid installment count")
	ErrStageTransitionRejected = errors.New("stage transition rejected")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrNotFound                = errors.New("not found")
)

var (
	ErrVersionConflict = fmt.Errorf("%w: debt changed concurrently", ErrStageTransitionRejected)
	ErrAgreementExists = fmt.Errorf("%w: agreement already exists", ErrStageTransitionRejected)
)

// StoreError classifies a driver error for operation op. Not-found and
// already-classified errors pass through; everything else is StoreUnavailable.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrStageTransitionRejected):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
