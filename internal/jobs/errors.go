package jobs

import "errors"

var (
	// ErrNotFound is returned when a job id does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidInput rejects a payload that does not match the job kind.
	ErrInvalidInput = errors.New("invalid job input")
	// ErrNotProcessing means a write targeted a job this execution does not own.
	ErrNotProcessing = errors.New("job is not processing")
)
