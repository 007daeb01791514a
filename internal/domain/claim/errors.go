package claim

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID means the store already holds the generated claim_id.
	// It points at a generator or storage fault, never at bad input.
	ErrDuplicateID = errors.New("duplicate claim identifier")

	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	ErrStorage = errors.New("storage fault")
)

// ValidationError reports malformed or out-of-range input. No side effects
// have been performed when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError names the kind of entity that was missing: member, procedure,
// provider or claim.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError is returned when an idempotency key is reused with a
// different payload.
type ConflictError struct {
	IdempotencyKey string
	ClaimID        string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q already used for claim %s with a different payload", e.IdempotencyKey, e.ClaimID)
}

// StorageError wraps an infrastructure failure of the claim store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("claim store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
