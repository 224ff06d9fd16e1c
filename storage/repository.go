// Package storage provides the record storage abstraction used by the vault
// services. Values are opaque byte slices addressed by
// (namespace, recordType, recordID).
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by BatchTx.Create when the key is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// BatchTx provides reads and writes within an atomic transaction.
// The namespace is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Get(recordType, recordID string) ([]byte, error)
	Put(recordType, recordID string, value []byte) error
	// Create writes value only if no record exists under the key.
	Create(recordType, recordID string, value []byte) error
	Delete(recordType, recordID string) error
}

// Repository defines the interface for record storage.
type Repository interface {
	Put(namespace, recordType, recordID string, value []byte) error
	Get(namespace, recordType, recordID string) ([]byte, error)
	// List returns the record IDs of recordType in namespace in ascending
	// key order. An unknown namespace yields an empty list.
	List(namespace, recordType string) ([]string, error)
	Delete(namespace, recordType, recordID string) error
	// Batch runs fn atomically. If fn returns an error no write is applied.
	Batch(namespace string, fn func(tx BatchTx) error) error
}
