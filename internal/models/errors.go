package models

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap them with WrapError or NewError and test with IsKind.
var (
	ErrConfig        = errors.New("configuration error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrIndexNotFound = errors.New("knowledge index not found")
	ErrIndexLoad     = errors.New("failed to load knowledge index")
	ErrDocumentLoad  = errors.New("failed to load document")
	ErrEmptyDocument = errors.New("document has no extractable text")
	ErrProvider      = errors.New("provider request failed")
	ErrIndexBuild    = errors.New("failed to build knowledge index")
	ErrPersist       = errors.New("failed to persist knowledge index")
)

// WrapError preserves the error kind with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// NewError returns an error of the given kind with a plain message.
func NewError(kind error, operation, message string) error {
	return fmt.Errorf("%s: %w: %s", operation, kind, message)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns a short label for the kind of err, used in ingestion results and metrics.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrConfig), IsKind(err, ErrInvalidInput):
		return "config"
	case IsKind(err, ErrEmptyDocument):
		return "empty"
	case IsKind(err, ErrDocumentLoad):
		return "load"
	case IsKind(err, ErrProvider):
		return "embed"
	case IsKind(err, ErrIndexBuild):
		return "build"
	case IsKind(err, ErrPersist):
		return "persist"
	case IsKind(err, ErrIndexNotFound):
		return "not_found"
	case IsKind(err, ErrIndexLoad):
		return "index_load"
	default:
		return "unknown"
	}
}
