// Package store defines the indexing collaborator that receives prepared
// chunk batches, and the errors shared by its backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dgallion1/statchunk/internal/chunker"
)

var (
	// ErrNotFound is returned when a document does not exist in a collection.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidName is returned for collection or document ids that cannot
	// be used as key segments.
	ErrInvalidName = errors.New("invalid name")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks a collection or document id.
func ValidateName(kind, name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// Document is the per-document record kept next to its chunks.
type Document struct {
	Collection  string    `json:"collection"`
	DocID       string    `json:"doc_id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// Index stores prepared chunk records grouped by collection and document.
// Implementations must be safe for concurrent use.
type Index interface {
	// UpsertChunks writes records under docID, replacing records with the
	// same id. Records are returned by Chunks in Position order.
	UpsertChunks(ctx context.Context, collection, docID string, records []chunker.Record) error

	// Chunks returns the records of one document in position order.
	Chunks(ctx context.Context, collection, docID string) ([]chunker.Record, error)

	// PutDocument writes the document record and its content-hash entry.
	PutDocument(ctx context.Context, doc Document) error

	// FindByHash returns the id of a document with the given content hash.
	FindByHash(ctx context.Context, collection, hash string) (docID string, ok bool, err error)

	ListDocuments(ctx context.Context, collection string) ([]Document, error)

	// DeleteDocument removes a document with all its chunks and returns the
	// number of chunks removed. It returns ErrNotFound when nothing existed.
	DeleteDocument(ctx context.Context, collection, docID string) (int, error)

	Close() error
}

// RetryableError marks a transient index failure worth retrying.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a RetryableError. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}
