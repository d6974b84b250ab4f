package stackexchange

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when the API knows no user with the id.
	ErrUserNotFound = errors.New("user not found")
	// ErrUpstream matches every *APIError.
	ErrUpstream = errors.New("stack exchange request failed")
)

// APIError is a failed API call. ID and Name mirror the API's error_id and
// error_name when the body carried them.
type APIError struct {
	Status  int
	ID      int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("stack exchange error %d (%s): %s", e.ID, e.Name, e.Message)
	}
	return fmt.Sprintf("stack exchange status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool { return target == ErrUpstream }
