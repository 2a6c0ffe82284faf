package database

import (
	"errors"
	"strings"
)

var (
	// ErrDocumentNotFound is returned when a document path has no stored document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("invalid document path")

	// ErrInvalidDocument is returned when a document body is not a JSON object.
	ErrInvalidDocument = errors.New("document must be a JSON object")
)

// SplitPath validates a path and returns its segments.
func SplitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}

// IsCollectionPath reports whether path addresses a collection (odd segment count).
func IsCollectionPath(path string) bool {
	segments, err := SplitPath(path)
	return err == nil && len(segments)%2 == 1
}

// IsDocumentPath reports whether path addresses a single document (even segment count).
func IsDocumentPath(path string) bool {
	segments, err := SplitPath(path)
	return err == nil && len(segments)%2 == 0
}

// collectionOf returns the collection path that holds the document at path.
func collectionOf(path string) (string, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return "", err
	}
	if len(segments)%2 != 0 {
		return "", ErrInvalidPath
	}
	return strings.Join(segments[:len(segments)-1], "/"), nil
}
