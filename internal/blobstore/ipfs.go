package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
)

// requestTimeout bounds every IPFS API call, including the content read on
// download. The upstream client applies it per request; inbound request
// contexts are not propagated further.
const requestTimeout = 2 * time.Minute

// IPFSStore talks to an IPFS HTTP API (a hosted gateway such as Infura, or a
// self-run node). Project credentials are sent as basic auth on every call.
type IPFSStore struct {
	sh *shell.Shell
}

type basicAuthTransport struct {
	projectID string
	secret    string
	base      http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.projectID, t.secret)
	return t.base.RoundTrip(r)
}

// NewIPFSStore builds the adapter for the given API endpoint.
func NewIPFSStore(apiURL, projectID, projectSecret string) (*IPFSStore, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("ipfs api url not set")
	}
	client := &http.Client{Timeout: requestTimeout}
	if projectID != "" {
		client.Transport = &basicAuthTransport{
			projectID: projectID,
			secret:    projectSecret,
			base:      http.DefaultTransport,
		}
	}
	return &IPFSStore{sh: shell.NewShellWithClient(apiURL, client)}, nil
}

// Name identifies the backend in logs.
func (s *IPFSStore) Name() string { return "ipfs" }

// Upload adds the payload to IPFS with pinning enabled and returns the CID
// reported by the node.
func (s *IPFSStore) Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	payload := data
	key := ""
	if opts.Encrypt {
		sealed, k, err := EncryptBytes(data)
		if err != nil {
			return nil, fmt.Errorf("encrypt payload: %w", err)
		}
		payload, key = sealed, k
	}
	addr, err := s.sh.Add(bytes.NewReader(payload), shell.Pin(true))
	if err != nil {
		return nil, fmt.Errorf("ipfs add: %w", err)
	}
	return &UploadResult{Address: addr, Size: int64(len(payload)), Key: key}, nil
}

// Download cats the blob by CID, decrypting when requested.
func (s *IPFSStore) Download(ctx context.Context, address string, opts DownloadOptions) ([]byte, error) {
	if !s.ValidAddress(address) {
		return nil, ErrInvalidAddress
	}
	rc, err := s.sh.Cat(address)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ipfs cat: %w", err)
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ipfs read: %w", err)
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

// Pin pins the CID on the node.
func (s *IPFSStore) Pin(ctx context.Context, address string) (bool, error) {
	if !s.ValidAddress(address) {
		return false, ErrInvalidAddress
	}
	if err := s.sh.Pin(address); err != nil {
		return false, fmt.Errorf("ipfs pin: %w", err)
	}
	return true, nil
}

// Unpin removes the pin. An already-unpinned CID is not an error.
func (s *IPFSStore) Unpin(ctx context.Context, address string) (bool, error) {
	if !s.ValidAddress(address) {
		return false, ErrInvalidAddress
	}
	if err := s.sh.Unpin(address); err != nil {
		if strings.Contains(err.Error(), "not pinned") {
			return false, nil
		}
		return false, fmt.Errorf("ipfs unpin: %w", err)
	}
	return true, nil
}

// ValidAddress accepts any decodable CID, which covers both the legacy
// Qm-prefixed v0 form and the v1 multibase form.
func (s *IPFSStore) ValidAddress(address string) bool {
	if address == "" {
		return false
	}
	_, err := cid.Decode(address)
	return err == nil
}
