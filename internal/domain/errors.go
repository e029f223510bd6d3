package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrVideoNotFound indicates the requested video does not exist
	ErrVideoNotFound = errors.New("video not found")

	// ErrServiceUnavailable indicates the streaming service is unreachable
	ErrServiceUnavailable = errors.New("streaming service is unreachable")

	// ErrAuthFailed indicates the session is not authenticated
	ErrAuthFailed = errors.New("session is not authenticated")

	// ErrKeyResolution indicates a dynamically resolved identifier does not exist
	ErrKeyResolution = errors.New("identifier could not be resolved")
)

// KeyResolutionError reports that no video list exists for a known list type.
// It matches ErrKeyResolution with errors.Is.
type KeyResolutionError struct {
	ListType string
}

func (e *KeyResolutionError) Error() string {
	return fmt.Sprintf("no lists of type %q available", e.ListType)
}

func (e *KeyResolutionError) Is(target error) bool {
	return target == ErrKeyResolution
}
