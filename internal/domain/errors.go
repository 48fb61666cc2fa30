package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("voice provider configuration is incomplete")
	ErrProvider      = errors.New("voice provider error")
	ErrPersistence   = errors.New("persistence error")
	ErrInternal      = errors.New("internal error")
	ErrNotFound      = errors.New("not found")

	ErrMissingPhone = fmt.Errorf("%w: phone number is required", ErrValidation)
)

// ProviderError is a non-2xx answer from the voice provider. Body is kept verbatim for diagnostics.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("voice provider returned status %d", e.StatusCode)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
