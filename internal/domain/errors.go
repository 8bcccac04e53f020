package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInputRejected signals a query rejected by the injection detector.
	ErrInputRejected = errors.New("input rejected")
	// ErrNoUserMessage signals a chat request without a trailing user message.
	ErrNoUserMessage = errors.New("no user message found")
	// ErrEmptyMessage signals an empty user message.
	ErrEmptyMessage = errors.New("empty user message")
	// ErrMissingIdentity signals a request without department or user identity.
	ErrMissingIdentity = errors.New("no organization ID or user ID provided")

	// ErrVectorStoreUnavailable signals a vector store failure.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrRerankUnavailable signals a reranker failure or misconfiguration.
	ErrRerankUnavailable = errors.New("rerank unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationUnavailable signals a generation failure before streaming started.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrUnsupportedFile signals an unreadable or unsupported document format.
	ErrUnsupportedFile = errors.New("unsupported file format")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// InputRejectedError wraps ErrInputRejected with the detector verdict.
type InputRejectedError struct {
	Reason string
}

func (e *InputRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInputRejected.Error(), e.Reason)
}

func (e *InputRejectedError) Unwrap() error { return ErrInputRejected }

// NewInputRejected creates an input rejection error carrying the verdict reason.
func NewInputRejected(reason string) error {
	return &InputRejectedError{Reason: reason}
}
