package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrWorkflowBusy  = errors.New("workflow busy")
	ErrNotReady      = errors.New("no image ready to mint")
	ErrStoreMetadata = errors.New("metadata update failed")
)

// ValidationError reports bad user input. It never changes workflow state.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "invalid request"
}

func (e *ValidationError) Unwrap() error { return e.Err }

// GenerationError is returned when the inference call fails.
type GenerationError struct {
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("image generation failed: http %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("image generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError is returned when content could not be stored.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage failed: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SigningError is returned when no signer is available or it refuses to sign.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// MintError carries the raw message of a contract level rejection or revert.
type MintError struct {
	Raw    string
	TxHash string
	Err    error
}

func (e *MintError) Error() string {
	if e.Raw != "" {
		return e.Raw
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "mint failed"
}

func (e *MintError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
