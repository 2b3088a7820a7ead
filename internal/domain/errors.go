package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when an operation receives empty or malformed text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexNotReady is returned by lexical retrieval before an index snapshot is built.
	ErrIndexNotReady = errors.New("lexical index not ready")
	// ErrCollaboratorUnavailable marks a failed call to an external collaborator
	// (embedder, vector store, statute store, LLM).
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrRetrievalUnavailable is returned when every retriever failed for a request.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrNativeSearchUnavailable is returned by stores without native similarity search.
	ErrNativeSearchUnavailable = errors.New("native vector search unavailable")
)

// CollaboratorError wraps a failure of a named external collaborator.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

// NewCollaboratorError wraps err for the named collaborator. It returns nil for a nil err.
func NewCollaboratorError(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is makes every CollaboratorError match ErrCollaboratorUnavailable.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}
