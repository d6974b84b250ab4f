package service

import "errors"

// Sentinel kinds returned by the service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrMisconfigured  = errors.New("service misconfigured")
	ErrInvalidTag     = errors.New("invalid tag")
	ErrInvalidLimit   = errors.New("invalid league limit")
	ErrBackpressure   = errors.New("league queue is full")
	ErrNotRunning     = errors.New("no league computation running for tag")
	ErrAlreadyRunning = errors.New("league computation already running for tag")
	ErrNotRanked      = errors.New("user not ranked in tag")
	ErrUserNotFound   = errors.New("User not found")
	ErrUpstream       = errors.New("profile data unavailable")
)
