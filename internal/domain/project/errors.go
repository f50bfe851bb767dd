package project

import "errors"

var (
	// ErrNotFound indicates the project doesn't exist or is soft-deleted.
	ErrNotFound = errors.New("project not found")
	// ErrNotRecoverable indicates a recover was attempted on a live project.
	ErrNotRecoverable = errors.New("project not recoverable")
	// ErrInvalidInput indicates invalid input for project operations.
	ErrInvalidInput = errors.New("invalid project input")
	// ErrVersionMismatch indicates an optimistic concurrency check failed.
	ErrVersionMismatch = errors.New("project version mismatch")
)
