// internal/registration/submission/errors.go
package submission

import (
	"errors"
	"fmt"

	"msad-registration/internal/registration/wizard"
)

var (
	ErrSubmissionInProgress = errors.New("SUBMISSION_IN_PROGRESS")
	ErrIdentityRequired     = errors.New("IDENTITY_REQUIRED")
	ErrDuplicateReference   = errors.New("DUPLICATE_REFERENCE_CODE")
	ErrInsertFailed         = errors.New("DATABASE_INSERT_FAILED")
	ErrRecordNotFound       = errors.New("APPLICATION_NOT_FOUND")
)

// ValidationError reports the first step whose fields do not pass. It is
// produced before any network call.
type ValidationError struct {
	Step   int                `json:"step"`
	Fields wizard.FieldErrors `json:"errors"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Please complete all required fields in step %d", e.Step)
}

// SubmissionError reports a failed write of the application record. Message
// carries the store's error text; the draft is kept so the user can retry.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return "submission failed: " + e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }
