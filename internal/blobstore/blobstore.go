// Package blobstore provides content-addressed storage for document payloads.
// Two implementations exist: IPFSStore talks to a real IPFS HTTP API, and
// LocalStore simulates one on the local filesystem. Callers select one at
// startup and only ever see the Store interface.
package blobstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no blob exists under the given address.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidAddress is returned for addresses that fail format validation.
	ErrInvalidAddress = errors.New("invalid content address")
	// ErrKeyRequired is returned when decryption is requested without a key.
	ErrKeyRequired = errors.New("decryption key required")
)

// UploadOptions controls how Upload stores the payload.
type UploadOptions struct {
	// Encrypt seals the payload with a freshly generated key before storing.
	// The key is returned in UploadResult and never retained by the adapter.
	Encrypt bool
}

// DownloadOptions controls how Download returns the payload.
type DownloadOptions struct {
	Decrypt bool
	// Key is the hex encoded key returned by Upload. Required when Decrypt
	// is set.
	Key string
}

// UploadResult describes a stored blob.
type UploadResult struct {
	// Address is the content address of the stored bytes.
	Address string
	// Size is the number of bytes actually stored (ciphertext size when
	// encryption was requested).
	Size int64
	// Key holds the hex encoded encryption key when Encrypt was set,
	// otherwise it is empty.
	Key string
}

// Store is the uniform interface over a content-addressed backend.
type Store interface {
	// Upload stores data and returns its content address. Storing the same
	// bytes twice yields the same address.
	Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error)
	// Download fetches the blob under address, optionally decrypting it.
	Download(ctx context.Context, address string, opts DownloadOptions) ([]byte, error)
	// Pin marks the blob as retained. Reports whether the pin took effect.
	Pin(ctx context.Context, address string) (bool, error)
	// Unpin releases the blob for collection. Reports whether anything was
	// unpinned.
	Unpin(ctx context.Context, address string) (bool, error)
	// ValidAddress reports whether address has this backend's address shape.
	ValidAddress(address string) bool
	// Name identifies the backend in logs.
	Name() string
}
