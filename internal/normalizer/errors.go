package normalizer

import (
	"errors"
	"fmt"
)

var (
	ErrMissingItems    = errors.New("order has no items")
	ErrMissingCustomer = errors.New("order has no customer")
)

// MalformedJobError means no valid payload could be built; the job must not
// be enqueued.
type MalformedJobError struct {
	JobID string
	Err   error
}

func (e *MalformedJobError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("malformed job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("malformed job: %v", e.Err)
}

func (e *MalformedJobError) Unwrap() error { return e.Err }
