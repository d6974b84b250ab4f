package dataexplorer

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmission matches every *SubmissionError.
	ErrSubmission = errors.New("query job submission failed")
	// ErrPoll matches every *PollError.
	ErrPoll = errors.New("query job poll failed")
)

// SubmissionError reports a job that could not be started: network failure,
// non-2xx answer, malformed JSON or a missing job identifier.
type SubmissionError struct {
	Query  string
	Tag    string
	Status int
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("submit %s for tag %q: status %d: %v", e.Query, e.Tag, e.Status, e.Err)
	}
	return fmt.Sprintf("submit %s for tag %q: %v", e.Query, e.Tag, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

// PollError reports a status poll that failed outright, or a finished job
// whose result could not be read.
type PollError struct {
	Query  string
	JobID  string
	Status int
	Err    error
}

func (e *PollError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("poll %s job %s: status %d: %v", e.Query, e.JobID, e.Status, e.Err)
	}
	return fmt.Sprintf("poll %s job %s: %v", e.Query, e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

func (e *PollError) Is(target error) bool { return target == ErrPoll }

var (
	errMissingJobID  = errors.New("response carries no job_id")
	errNoResultSet   = errors.New("finished job carries no result set")
	errUnexpectedRow = errors.New("unexpected row shape")
)
