// Package common defines sentinel errors shared by the VoxKeeper client
// layers. Callers should match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Credential errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Pipeline errors.
	ErrCancelled          = errors.New("operation cancelled")
	ErrTranscodeExhausted = errors.New("compression failed")
	ErrEmptyOutput        = errors.New("encoder produced empty output")
	ErrTransfer           = errors.New("transfer failed")

	// Offline/sync errors.
	ErrOffline        = errors.New("no connectivity")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrDuplicate      = errors.New("capture already queued")
)
