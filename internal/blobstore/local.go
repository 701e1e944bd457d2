package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Simulated addresses carry the Qm prefix followed by 44 hex digits of the
// content digest, so they are the same length as real v0 addresses.
var localAddrPattern = regexp.MustCompile(`^Qm[0-9a-f]{44}$`)

// LocalStore simulates a content-addressed store on the local filesystem.
// Each blob is written to a single file named after its address. It is the
// development-mode stand-in selected when no storage credentials are present.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the backing directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local blob dir not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Name identifies the backend in logs.
func (s *LocalStore) Name() string { return "local-sim" }

// Upload writes the payload under its content address. Re-uploading the same
// bytes overwrites the same file, so the operation is idempotent.
func (s *LocalStore) Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	payload := data
	key := ""
	if opts.Encrypt {
		sealed, k, err := EncryptBytes(data)
		if err != nil {
			return nil, fmt.Errorf("encrypt payload: %w", err)
		}
		payload, key = sealed, k
	}
	addr := localAddress(payload)
	if err := os.WriteFile(filepath.Join(s.dir, addr), payload, 0o644); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	return &UploadResult{Address: addr, Size: int64(len(payload)), Key: key}, nil
}

// Download reads the blob back, decrypting when requested.
func (s *LocalStore) Download(ctx context.Context, address string, opts DownloadOptions) ([]byte, error) {
	if !s.ValidAddress(address) {
		return nil, ErrInvalidAddress
	}
	payload, err := os.ReadFile(filepath.Join(s.dir, address))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if !opts.Decrypt {
		return payload, nil
	}
	if opts.Key == "" {
		return nil, ErrKeyRequired
	}
	plain, err := DecryptBytes(payload, opts.Key)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// Pin reports whether the blob exists; local files are implicitly pinned by
// being written.
func (s *LocalStore) Pin(ctx context.Context, address string) (bool, error) {
	if !s.ValidAddress(address) {
		return false, ErrInvalidAddress
	}
	if _, err := os.Stat(filepath.Join(s.dir, address)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return true, nil
}

// Unpin removes the file. The simulation has no garbage collector, so unpin
// is the point where content actually disappears.
func (s *LocalStore) Unpin(ctx context.Context, address string) (bool, error) {
	if !s.ValidAddress(address) {
		return false, ErrInvalidAddress
	}
	if err := os.Remove(filepath.Join(s.dir, address)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove blob: %w", err)
	}
	return true, nil
}

// ValidAddress accepts only the simulation's fixed-prefix shape.
func (s *LocalStore) ValidAddress(address string) bool {
	return localAddrPattern.MatchString(address)
}

func localAddress(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "Qm" + hex.EncodeToString(sum[:])[:44]
}
