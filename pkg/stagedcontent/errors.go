package stagedcontent

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrTooManyFiles indicates staging would exceed the configured slot count
	ErrTooManyFiles = errors.New("too many files")

	// ErrFileTooLarge indicates a selected file exceeds the configured size bound
	ErrFileTooLarge = errors.New("file too large")

	// ErrIndexOutOfRange indicates an asset or section index does not exist
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrSubmissionInFlight indicates a submission is already running for the form
	ErrSubmissionInFlight = errors.New("submission already in flight")

	// ErrUploadFailed indicates an upload operation failed
	ErrUploadFailed = errors.New("upload failed")

	// ErrCommitFailed indicates the final create/update call failed
	ErrCommitFailed = errors.New("commit failed")

	// ErrEntityNotFound indicates an entity was not found
	ErrEntityNotFound = errors.New("entity not found")

	// ErrKeyNotFound indicates a storage key was not found
	ErrKeyNotFound = errors.New("storage key not found")
)

// StagingError reports why a file was rejected at selection time. Rejected
// files never enter staged state.
type StagingError struct {
	FileName string
	Err      error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging rejected %s: %v", e.FileName, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to gateway operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SubmitError wraps a failure inside the submission sequence. Step names the
// phase that failed; staged state is left untouched for retry.
type SubmitError struct {
	Step string
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission step %s failed: %v", e.Step, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// ValidationError is raised before any network call is issued. Field names
// the offending form field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}
