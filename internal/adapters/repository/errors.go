package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidLimit = errors.New("invalid league limit")
	ErrInvalidInput = errors.New("invalid store input")
)
