package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for store write classification. The write-back coordinator
// retries transient failures and gives up immediately on structural ones.
var (
	// ErrRateLimited signals the store rejected the call for pacing reasons
	ErrRateLimited = errors.New("store rate limited")

	// ErrSchemaMismatch signals the store rejected a payload because of an
	// unexpected field name or type. Retrying cannot help.
	ErrSchemaMismatch = errors.New("store schema mismatch")

	// ErrNotFound signals the target row no longer exists
	ErrNotFound = errors.New("store row not found")
)

// TransientError wraps a store failure that is worth retrying
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether a store error should be retried
func IsTransient(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var te *TransientError
	return errors.As(err, &te)
}
