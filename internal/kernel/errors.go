package kernel

import "errors"

// Sentinel errors shared across the kernel and its collaborator modules.
// Callers match with errors.Is; user-facing messaging is the caller's job.
var (
	ErrNoActiveIdentity = errors.New("no active identity")
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyDone      = errors.New("already done")
	ErrExpired          = errors.New("expired")
)
