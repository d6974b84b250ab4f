package render

import "errors"

// Sentinel kinds for render errors.
var (
	ErrUnknownTemplate = errors.New("Invalid template")
	ErrUnknownTheme    = errors.New("Invalid theme")
)
