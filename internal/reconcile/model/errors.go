package model

import "errors"

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrNotStaged        = errors.New("product is not staged in this run")
	ErrEntryNotFound    = errors.New("unmatched entry not found")
	ErrInvalidState     = errors.New("operation not allowed in current run state")
	ErrCommitInProgress = errors.New("commit already in progress")
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidValue     = errors.New("value must be positive")
)
