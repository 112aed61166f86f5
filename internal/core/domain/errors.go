package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrEmbeddingFailure marks a failed embedding call during semantic
	// grouping. Grouping is all-or-nothing: the caller either falls back to
	// sentence-window chunking or propagates this.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrRetrievalFailure marks a query where every enabled retrieval
	// source failed. Single-source failures degrade the context instead.
	ErrRetrievalFailure = errors.New("retrieval failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
